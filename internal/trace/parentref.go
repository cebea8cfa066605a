package trace

import (
	"encoding/json"
	"strings"
)

// orphanPrefix is the sentinel the instrumentation emits for spans with no
// recorded caller. It is parsed into the tagged ParentRef form here and never
// string-matched anywhere else.
const orphanPrefix = "orphan_"

// ParentRef is a tagged parent reference: either a real trace id or an orphan
// marker carrying the synthetic key the instrumentation generated.
type ParentRef struct {
	id     string
	orphan bool
}

// RealTrace builds a ParentRef pointing at an actual trace id.
func RealTrace(traceID string) ParentRef {
	return ParentRef{id: traceID}
}

// Orphan builds a ParentRef that marks a timeline root.
func Orphan(syntheticKey string) ParentRef {
	return ParentRef{id: syntheticKey, orphan: true}
}

// ParseParentRef interprets a wire parent_id string.
func ParseParentRef(s string) ParentRef {
	if key, ok := strings.CutPrefix(s, orphanPrefix); ok {
		return Orphan(key)
	}
	return ParentRef{id: s}
}

// IsOrphan reports whether the reference marks a root (no real parent).
func (p ParentRef) IsOrphan() bool { return p.orphan }

// TraceID returns the referenced trace id. Empty for orphan refs.
func (p ParentRef) TraceID() string {
	if p.orphan {
		return ""
	}
	return p.id
}

// Key returns a stable grouping key, distinct between real and orphan refs.
func (p ParentRef) Key() string {
	if p.orphan {
		return orphanPrefix + p.id
	}
	return p.id
}

// MarshalJSON encodes the wire form (the orphan prefix reappears only here).
func (p ParentRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Key())
}

func (p *ParentRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParseParentRef(s)
	return nil
}

func (p ParentRef) String() string {
	if p.orphan {
		return "orphan(" + p.id + ")"
	}
	return p.id
}
