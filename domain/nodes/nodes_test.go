package nodes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soldey/graph-api/internal/bulkload"
	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
	"github.com/soldey/graph-api/pkg/pgutils"
)

// ===== Entity Tests =====

func TestNodeType_Valid(t *testing.T) {
	for _, typ := range Types {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, NodeType("DRIVE").Valid())
	assert.False(t, NodeType("").Valid())
}

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"quotes stripped", `"12"`, "12"},
		{"ascii truncated", strings.Repeat("a", 60), strings.Repeat("a", 50)},
		{"runes truncated", strings.Repeat("ж", 55), strings.Repeat("ж", 50)},
		{"short kept", "Автобус 7", "Автобус 7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRoute(tt.in))
		})
	}
}

func TestRecord_Key(t *testing.T) {
	a := Record{Type: TypeStop, Point: geometry.New(orb.Point{30.5, 59.9}), Route: "7"}
	b := Record{Type: TypeStop, Point: geometry.New(orb.Point{30.5, 59.9}), Route: "7", Properties: map[string]any{"x": 1}}
	c := Record{Type: TypePlatform, Point: geometry.New(orb.Point{30.5, 59.9}), Route: "7"}

	assert.Equal(t, "STOP|POINT(30.5 59.9)|7", a.Key())
	assert.Equal(t, a.Key(), b.Key(), "properties are not part of the key")
	assert.NotEqual(t, a.Key(), c.Key())
}

// ===== DTO Tests =====

func TestCreateNodeRequest_Validate(t *testing.T) {
	req := CreateNodeRequest{Point: geometry.New(orb.Point{1, 2})}
	require.NoError(t, req.Validate())
	assert.Equal(t, TypeCrossroad, req.Type, "type defaults to CROSSROAD")

	bad := CreateNodeRequest{Type: "BOAT", Point: geometry.New(orb.Point{1, 2})}
	assert.ErrorIs(t, bad.Validate(), apperror.ErrValidation)

	line := CreateNodeRequest{Point: geometry.New(orb.LineString{{0, 0}, {1, 1}})}
	assert.ErrorIs(t, line.Validate(), apperror.ErrValidation)

	missing := CreateNodeRequest{}
	assert.ErrorIs(t, missing.Validate(), apperror.ErrValidation)
}

func TestCreateNodeRequest_RecordNormalizesRoute(t *testing.T) {
	req := CreateNodeRequest{Type: TypeStop, Point: geometry.New(orb.Point{1, 2}), Route: `"A"`}
	assert.Equal(t, "A", req.Record().Route)
}

func TestSelectNodesRequest_TypeForms(t *testing.T) {
	tests := []struct {
		name string
		body string
		want TypeList
	}{
		{"single", `{"type":"STOP"}`, TypeList{TypeStop}},
		{"list", `{"type":["STOP","PLATFORM"]}`, TypeList{TypeStop, TypePlatform}},
		{"absent", `{}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SelectNodesRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.want, req.Types)
			assert.NoError(t, req.Validate())
		})
	}

	var req SelectNodesRequest
	require.NoError(t, json.Unmarshal([]byte(`{"type":"WALK"}`), &req))
	assert.ErrorIs(t, req.Validate(), apperror.ErrValidation)
	assert.Error(t, json.Unmarshal([]byte(`{"type":7}`), &req))
}

// ===== Bulk Encoding Tests =====

func TestEncodeRecord(t *testing.T) {
	values, err := encodeRecord(Record{
		Type:  TypeStop,
		Point: geometry.New(orb.Point{1, 2}),
		Route: "12&B",
	})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, bulkload.WriteRow(&sb, values))
	assert.Equal(t, `STOP&SRID=4326;POINT(1 2)&12\&B&{}`+"\n", sb.String())
}

func TestConflictKey(t *testing.T) {
	rec := Record{Type: TypeCrossroad, Point: geometry.New(orb.Point{1, 2}), Route: ""}

	v := &pgutils.UniqueViolation{
		Constraint: "node_multiunique",
		Columns:    []string{"type", "point", "route"},
		Values:     []string{"CROSSROAD", "0101000020E6100000000000000000F03F0000000000000040", ""},
	}
	key, err := conflictKey(v)
	require.NoError(t, err)
	assert.Equal(t, rec.Key(), key)
}

func TestConflictKey_Errors(t *testing.T) {
	_, err := conflictKey(&pgutils.UniqueViolation{
		Constraint: "nodes_pkey",
		Columns:    []string{"id"},
		Values:     []string{"1"},
	})
	assert.Error(t, err)

	_, err = conflictKey(&pgutils.UniqueViolation{
		Columns: []string{"type", "point", "route"},
		Values:  []string{"STOP", "not-hex", ""},
	})
	assert.Error(t, err)
}

// ===== Handler Tests =====

func TestHandler_RejectsBadInput(t *testing.T) {
	h := NewHandler(nil)
	e := echo.New()

	tests := []struct {
		name    string
		method  string
		body    string
		handler echo.HandlerFunc
		param   string
		wantErr *apperror.Error
	}{
		{"non-numeric id", http.MethodGet, "", h.SelectOne, "abc", apperror.ErrBadRequest},
		{"zero id", http.MethodDelete, "", h.Delete, "0", apperror.ErrBadRequest},
		{"malformed body", http.MethodPost, `{"type":`, h.Create, "", apperror.ErrBadRequest},
		{"unknown type", http.MethodPost, `{"type":"BOAT","point":{"type":"Point","coordinates":[1,2]}}`, h.Create, "", apperror.ErrValidation},
		{"bad filter", http.MethodPost, `{"type":"WALK"}`, h.SelectMany, "", apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := e.NewContext(req, httptest.NewRecorder())
			if tt.param != "" {
				c.SetParamNames("id")
				c.SetParamValues(tt.param)
			}

			err := tt.handler(c)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
