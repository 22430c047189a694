package buffer

import (
	"github.com/lakeflow/tablesink/pkg/record"
)

// dedupeRecords combines records that share a key within one flush batch.
//
// The merger is applied in insertion order and the merged record keeps
// the first occurrence's position, so the flushed sequence preserves the
// relative order of surviving keys. The merger receives no ordering key
// other than buffer arrival order; upstream ordering is the caller's
// responsibility.
func dedupeRecords(records []record.Record, merge record.Merger) []record.Record {
	if len(records) < 2 {
		return records
	}

	out := make([]record.Record, 0, len(records))
	index := make(map[string]int, len(records))

	for _, r := range records {
		if i, seen := index[r.Key]; seen {
			out[i] = merge(out[i], r)
			continue
		}
		index[r.Key] = len(out)
		out = append(out, r)
	}

	return out
}
