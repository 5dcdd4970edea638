package bulkload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDeduplicated(t *testing.T) {
	table := newFakeTable()
	existing := table.persist(stop{"B", ""})
	l := newTestLoader(t, table)

	rows := []stop{{"A", ""}, {"B", ""}, {"A", ""}, {"C", "1"}, {"A", ""}}
	known := map[string]int64{"B|": existing}

	res, err := LoadDeduplicated(context.Background(), l, stopSpec(table, true), rows, known)
	require.NoError(t, err)

	assert.Equal(t, existing, res.IDs[1])
	assert.Equal(t, res.IDs[0], res.IDs[2])
	assert.Equal(t, res.IDs[0], res.IDs[4])
	assert.NotEqual(t, res.IDs[0], res.IDs[3])
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 2, res.Collapsed)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, table.copies)
}

func TestLoadDeduplicated_ConflictOutsideKnown(t *testing.T) {
	table := newFakeTable()
	existing := table.persist(stop{"B", ""})
	l := newTestLoader(t, table)

	// B is persisted but missing from the candidate set, so the loader resolves it.
	res, err := LoadDeduplicated(context.Background(), l, stopSpec(table, true), []stop{{"A", ""}, {"B", ""}}, nil)
	require.NoError(t, err)

	assert.Equal(t, existing, res.IDs[1])
	assert.Equal(t, 0, res.Matched)
	assert.Equal(t, 1, res.Resolved)
	assert.Equal(t, 1, res.Inserted)
}

func TestLoadDeduplicated_EmptyKeyIsNeverCollapsed(t *testing.T) {
	table := newFakeTable()
	l := newTestLoader(t, table)
	spec := stopSpec(table, true)
	spec.Key = func(s stop) string {
		if s.Route == "" {
			return ""
		}
		return stopKey(s)
	}

	rows := []stop{{"A", ""}, {"B", ""}, {"C", "1"}}
	res, err := LoadDeduplicated(context.Background(), l, spec, rows, map[string]int64{"": 99})
	require.NoError(t, err)

	assert.NotEqual(t, int64(99), res.IDs[0])
	assert.NotEqual(t, res.IDs[0], res.IDs[1])
	assert.Equal(t, 0, res.Collapsed)
	assert.Equal(t, 3, res.Inserted)
}

func TestLoadDeduplicated_AllKnown(t *testing.T) {
	table := newFakeTable()
	l := newTestLoader(t, table)

	res, err := LoadDeduplicated(context.Background(), l, stopSpec(table, true),
		[]stop{{"A", ""}, {"A", ""}}, map[string]int64{"A|": 5})
	require.NoError(t, err)

	assert.Equal(t, []int64{5, 5}, res.IDs)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 0, table.copies)
}
