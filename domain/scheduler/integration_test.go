package scheduler

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/soldey/graph-api/internal/testutil"
)

type AnalyzeSuite struct {
	testutil.BaseSuite
}

func TestAnalyzeSuite(t *testing.T) {
	suite.Run(t, new(AnalyzeSuite))
}

func (s *AnalyzeSuite) SetupSuite() {
	s.SetDBSuffix("scheduler")
	s.BaseSuite.SetupSuite()
}

func (s *AnalyzeSuite) TestAnalyzeTablesTask_Run() {
	task := NewAnalyzeTablesTask(s.DB(), s.Log)
	s.NoError(task.Run(s.Ctx))
}

func (s *AnalyzeSuite) TestAnalyzeTablesTask_UnknownTable() {
	task := NewAnalyzeTablesTask(s.DB(), s.Log)
	task.tables = []string{"missing_table"}
	s.Error(task.Run(s.Ctx))
}
