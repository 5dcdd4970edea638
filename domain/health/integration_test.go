package health

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/soldey/graph-api/domain/scheduler"
	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/internal/testutil"
)

type HealthSuite struct {
	testutil.BaseSuite
}

func TestHealthSuite(t *testing.T) {
	suite.Run(t, new(HealthSuite))
}

func (s *HealthSuite) SetupSuite() {
	s.SetDBSuffix("health")
	s.BaseSuite.SetupSuite()
}

func (s *HealthSuite) TestHealth_RealPool() {
	h := NewHandler(s.TestDB.Pool, s.Loader, &config.Config{})
	rec, err := get(h.Health)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HealthSuite) TestDebug_PoolStats() {
	h := NewHandler(s.TestDB.Pool, s.Loader, &config.Config{Environment: "local"})
	rec, err := get(h.Debug)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"acquired"`)
}

func (s *HealthSuite) TestTableMetrics() {
	m := NewMetricsHandler(s.DB(), scheduler.NewScheduler(s.Log), s.Log)
	rec, err := get(m.TableMetrics)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, rec.Code)

	var body AllTableMetrics
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))

	names := make([]string, 0, len(body.Tables))
	for _, t := range body.Tables {
		names = append(names, t.Table)
	}
	s.Equal([]string{"edges", "graph_edges", "graphs", "nodes"}, names)
}
