package trace

import (
	"encoding/json"
	"strings"
)

// Kind classifies a single instrumentation record within a trace group.
type Kind int

const (
	KindNormal Kind = iota
	KindEnter
	KindExit
	KindError
	KindAwaited
)

var kindNames = map[Kind]string{
	KindNormal:  "normal",
	KindEnter:   "enter",
	KindExit:    "exit",
	KindError:   "error",
	KindAwaited: "awaited",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "normal"
}

// ParseKind maps a wire trace_type string to a Kind. Unknown values map to
// KindNormal so a new record kind never drops a whole push batch.
func ParseKind(s string) Kind {
	switch strings.ToLower(s) {
	case "enter":
		return KindEnter
	case "exit":
		return KindExit
	case "error":
		return KindError
	case "awaited":
		return KindAwaited
	default:
		return KindNormal
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = ParseKind(s)
	return nil
}

// Position is a source location within an instrumented file.
type Position struct {
	Filepath string `json:"filepath"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// EndPosition is the closing location of a traced expression. The filepath is
// implied by the start position.
type EndPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Record is one raw instrumentation event as pushed by the CLI. Several
// records share a trace id: one enter, possibly an exit or error, possibly
// intermediate normal/awaited records. Records arrive in arbitrary order;
// consumers re-sort by Timestamp.
type Record struct {
	TraceID      string      `json:"trace_id"`
	ParentID     string      `json:"parent_id"`
	Kind         Kind        `json:"trace_type"`
	StartPos     Position    `json:"start_pos"`
	EndPos       EndPosition `json:"end_pos"`
	Timestamp    int64       `json:"timestamp"`
	DurationNs   *int64      `json:"duration_ns,omitempty"`
	ReturnValue  string      `json:"return_value,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Parent returns the record's parent reference in tagged form.
func (r Record) Parent() ParentRef {
	return ParseParentRef(r.ParentID)
}
