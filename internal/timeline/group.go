package timeline

import (
	"sort"

	"github.com/ariana-dev/timeline-gateway/internal/trace"
)

// groupRecords indexes raw records as filepath -> parent key -> trace id ->
// records. Grouping does not sort; ordering within each innermost group is
// established later by timestamp. Empty input yields an empty map.
func groupRecords(records []trace.Record) map[string]map[string]map[string][]trace.Record {
	files := map[string]map[string]map[string][]trace.Record{}
	for _, rec := range records {
		parents, ok := files[rec.StartPos.Filepath]
		if !ok {
			parents = map[string]map[string][]trace.Record{}
			files[rec.StartPos.Filepath] = parents
		}
		parentKey := rec.Parent().Key()
		traces, ok := parents[parentKey]
		if !ok {
			traces = map[string][]trace.Record{}
			parents[parentKey] = traces
		}
		traces[rec.TraceID] = append(traces[rec.TraceID], rec)
	}
	return files
}

// sortedKeys returns a map's string keys in lexicographic order. Every group
// traversal in the builder goes through this so map iteration order never
// leaks into output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
