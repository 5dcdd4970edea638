package bulkload

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soldey/graph-api/pkg/geometry"
)

// Delimiter separates fields in the COPY payload. It is not a character
// that occurs in WKT, which keeps geometry columns unescaped in practice.
const Delimiter = '&'

// Value is one field of a row in COPY text format.
type Value struct {
	text string
	null bool
}

func Null() Value { return Value{null: true} }

func Text(s string) Value { return Value{text: s} }

func Int(i int64) Value { return Value{text: strconv.FormatInt(i, 10)} }

func Float(f float64) Value { return Value{text: strconv.FormatFloat(f, 'g', -1, 64)} }

// Geom writes EWKT with the service SRID; a null geometry becomes NULL.
func Geom(g geometry.Geometry) Value {
	if g.IsNull() {
		return Null()
	}
	return Value{text: g.EWKT()}
}

// JSON writes v as a jsonb literal; nil becomes an empty object. HTML
// escaping is off so the literal keeps '&' and WriteRow escapes it.
func JSON(v map[string]any) (Value, error) {
	if v == nil {
		return Value{text: "{}"}, nil
	}
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return Value{}, fmt.Errorf("encode properties: %w", err)
	}
	return Value{text: strings.TrimSuffix(buf.String(), "\n")}, nil
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	string(Delimiter), `\`+string(Delimiter),
	"\n", `\n`,
	"\r", `\r`,
)

// WriteRow writes one COPY text line. NULL is written as \N.
func WriteRow(w io.StringWriter, values []Value) error {
	for i, v := range values {
		if i > 0 {
			if _, err := w.WriteString(string(Delimiter)); err != nil {
				return err
			}
		}
		s := `\N`
		if !v.null {
			s = escaper.Replace(v.text)
		}
		if _, err := w.WriteString(s); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}
