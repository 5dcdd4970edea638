package bulkload

import (
	"context"
)

// BatchResult is the outcome of LoadDeduplicated. IDs is aligned with the
// input rows.
type BatchResult struct {
	IDs       []int64
	Matched   int // rows found among the known persisted rows
	Collapsed int // in-batch duplicates mapped onto their first occurrence
	Inserted  int
	Resolved  int
	Dropped   int
}

// LoadDeduplicated maps rows whose key is in known onto the persisted id,
// collapses in-batch duplicates onto their first occurrence and loads the
// remainder. Rows with an empty key are always loaded.
func LoadDeduplicated[R any](ctx context.Context, l *Loader, spec Spec[R], rows []R, known map[string]int64) (*BatchResult, error) {
	out := &BatchResult{IDs: make([]int64, len(rows))}

	first := make(map[string]int, len(rows))
	alias := make(map[int]int)
	var load []int

	for i, r := range rows {
		k := spec.Key(r)
		if k == "" {
			load = append(load, i)
			continue
		}
		if id, ok := known[k]; ok {
			out.IDs[i] = id
			out.Matched++
			continue
		}
		if j, ok := first[k]; ok {
			alias[i] = j
			out.Collapsed++
			continue
		}
		first[k] = i
		load = append(load, i)
	}

	if len(load) > 0 {
		subset := make([]R, len(load))
		for i, idx := range load {
			subset[i] = rows[idx]
		}
		res, err := Load(ctx, l, spec, subset)
		if err != nil {
			return nil, err
		}
		for i, idx := range load {
			if out.IDs[idx] == 0 {
				out.IDs[idx] = res.IDs[i]
			}
		}
		out.Inserted = res.Inserted
		out.Resolved = res.Resolved
		out.Dropped = res.Dropped
	}

	for i, j := range alias {
		out.IDs[i] = out.IDs[j]
	}
	return out, nil
}
