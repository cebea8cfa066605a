// Package timeline reconstructs a hierarchical, time-ordered timeline from a
// flat collection of instrumentation records. The build is a pure function:
// derived structures are freshly allocated per call and never mutated after
// Build returns.
package timeline

import (
	"strconv"

	"github.com/ariana-dev/timeline-gateway/internal/trace"
)

// Span is one reconstructed invocation: all records sharing a trace id,
// collapsed into a single interval.
type Span struct {
	TraceID   string `json:"trace_id"`
	Filepath  string `json:"filepath"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line"`
	EndColumn int    `json:"end_column"`
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	IsError   bool   `json:"is_error"`

	// Family is the index of the owning family. Set once during family
	// synthesis, never reassigned.
	Family int `json:"family"`
	// Children are families whose parent id is this span's trace id.
	Children []int `json:"children,omitempty"`
	// Inferred are families nested inside this span's interval without a
	// declared parent link, tightest fit first.
	Inferred []int `json:"inferred,omitempty"`
	// Label is the display location, shortened against workspace roots.
	Label string `json:"label"`
}

// Location returns the span's grouping identity for pattern detection.
func (s Span) Location() string {
	return s.Filepath + ":" + strconv.Itoa(s.Line)
}

// Family is the set of spans sharing a declared parent id within one file.
type Family struct {
	Parent   trace.ParentRef `json:"parent"`
	Filepath string          `json:"filepath"`
	// Spans are member span indices in start-timestamp order.
	Spans []int `json:"spans"`
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	// Patterns annotate repeated contiguous runs in the span sequence.
	Patterns []SpanPattern `json:"patterns,omitempty"`
}

// SpanPattern describes repeats consecutive repetitions of a length-Length
// span-location sequence starting at StartSpan within a family's span list.
type SpanPattern struct {
	StartSpan int      `json:"start_span_index"`
	Length    int      `json:"pattern_length"`
	Repeats   int      `json:"repeats"`
	Sequence  []string `json:"sequence"`
}

// Cluster groups the root families of one source file, highest encompassing
// score first.
type Cluster struct {
	Filepath string `json:"filepath"`
	Roots    []int  `json:"roots"`
}

// Timeline is the full derived structure. Spans and Families are arenas
// addressed by the integer indices stored in the cross-reference lists.
type Timeline struct {
	Spans    []Span    `json:"spans"`
	Families []Family  `json:"families"`
	Clusters []Cluster `json:"clusters"`
}
