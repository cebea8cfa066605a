package timeline

import (
	"reflect"
	"testing"

	"github.com/ariana-dev/timeline-gateway/internal/trace"
)

func rec(traceID, parentID string, kind trace.Kind, file string, line int, ts int64) trace.Record {
	return trace.Record{
		TraceID:   traceID,
		ParentID:  parentID,
		Kind:      kind,
		StartPos:  trace.Position{Filepath: file, Line: line, Column: 1},
		EndPos:    trace.EndPosition{Line: line, Column: 20},
		Timestamp: ts,
	}
}

// enterExit produces the minimal complete record pair for one span.
func enterExit(traceID, parentID, file string, line int, start, end int64) []trace.Record {
	return []trace.Record{
		rec(traceID, parentID, trace.KindEnter, file, line, start),
		rec(traceID, parentID, trace.KindExit, file, line, end),
	}
}

func TestBuildEmptyInput(t *testing.T) {
	tl := Build(nil, nil)
	if len(tl.Spans) != 0 || len(tl.Families) != 0 || len(tl.Clusters) != 0 {
		t.Fatalf("expected empty timeline, got %d spans, %d families, %d clusters",
			len(tl.Spans), len(tl.Families), len(tl.Clusters))
	}
}

func TestBuildSpanConservation(t *testing.T) {
	var records []trace.Record
	records = append(records, enterExit("t1", "orphan_a", "a.ts", 1, 0, 100)...)
	records = append(records, enterExit("t2", "orphan_a", "a.ts", 2, 10, 20)...)
	// Exit-only group: incomplete, must be dropped silently.
	records = append(records, rec("t3", "orphan_a", trace.KindExit, "a.ts", 3, 50))

	tl := Build(records, nil)
	if len(tl.Spans) != 2 {
		t.Fatalf("expected 2 spans (t3 has no enter record), got %d", len(tl.Spans))
	}
	for _, span := range tl.Spans {
		if span.TraceID == "t3" {
			t.Fatal("span t3 should have been dropped")
		}
	}
}

func TestBuildIdempotentUnderInputOrder(t *testing.T) {
	var records []trace.Record
	records = append(records, enterExit("t1", "orphan_a", "a.ts", 1, 0, 100)...)
	records = append(records, enterExit("t2", "t1", "a.ts", 2, 10, 40)...)
	records = append(records, enterExit("t3", "t1", "a.ts", 2, 50, 90)...)
	records = append(records, enterExit("t4", "orphan_b", "b.ts", 7, 20, 30)...)

	reversed := make([]trace.Record, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}

	first := Build(records, nil)
	second := Build(reversed, nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("builds differ under input reordering:\n%+v\nvs\n%+v", first, second)
	}
}

func TestBuildFamilyBackReferences(t *testing.T) {
	var records []trace.Record
	records = append(records, enterExit("t1", "orphan_a", "a.ts", 1, 0, 100)...)
	records = append(records, enterExit("t2", "t1", "a.ts", 2, 10, 40)...)

	tl := Build(records, nil)
	for si, span := range tl.Spans {
		if span.Family < 0 || span.Family >= len(tl.Families) {
			t.Fatalf("span %d has family index %d out of range", si, span.Family)
		}
		found := false
		for _, member := range tl.Families[span.Family].Spans {
			if member == si {
				found = true
			}
		}
		if !found {
			t.Fatalf("family %d does not list its member span %d", span.Family, si)
		}
	}
}

func TestBuildDirectChildren(t *testing.T) {
	var records []trace.Record
	records = append(records, enterExit("t1", "orphan_a", "a.ts", 1, 0, 100)...)
	records = append(records, enterExit("t2", "t1", "a.ts", 2, 10, 40)...)

	tl := Build(records, nil)
	parent := spanByID(t, tl, "t1")
	if len(parent.Children) != 1 {
		t.Fatalf("expected 1 direct child family, got %d", len(parent.Children))
	}
	child := tl.Families[parent.Children[0]]
	if child.Parent.TraceID() != "t1" {
		t.Fatalf("child family parent = %q, want t1", child.Parent)
	}
	if len(child.Spans) != 1 || tl.Spans[child.Spans[0]].TraceID != "t2" {
		t.Fatal("child family should contain exactly span t2")
	}
}

func TestBuildDirectIndirectExclusive(t *testing.T) {
	var records []trace.Record
	records = append(records, enterExit("t1", "orphan_a", "a.ts", 1, 0, 100)...)
	// Direct child, also strictly nested: must appear only in Children.
	records = append(records, enterExit("t2", "t1", "a.ts", 2, 10, 40)...)
	// No parent link, strictly nested: must appear only in Inferred.
	records = append(records, enterExit("t3", "orphan_x", "a.ts", 5, 50, 90)...)

	tl := Build(records, nil)
	for _, span := range tl.Spans {
		direct := map[int]bool{}
		for _, fi := range span.Children {
			direct[fi] = true
		}
		for _, fi := range span.Inferred {
			if direct[fi] {
				t.Fatalf("family %d listed as both direct and inferred child of span %s", fi, span.TraceID)
			}
		}
	}

	root := spanByID(t, tl, "t1")
	if len(root.Children) != 1 || len(root.Inferred) != 1 {
		t.Fatalf("expected 1 direct + 1 inferred child, got %d + %d", len(root.Children), len(root.Inferred))
	}
}

func TestBuildStrictNesting(t *testing.T) {
	var records []trace.Record
	records = append(records, enterExit("t1", "orphan_a", "a.ts", 1, 10, 80)...)
	// Shares the start bound with t1's interval: equal bounds must not qualify.
	records = append(records, enterExit("t2", "orphan_x", "a.ts", 2, 10, 50)...)
	// Strictly inside.
	records = append(records, enterExit("t3", "orphan_y", "a.ts", 3, 20, 70)...)

	tl := Build(records, nil)
	outer := spanByID(t, tl, "t1")
	for _, fi := range outer.Inferred {
		fam := tl.Families[fi]
		if fam.Start <= outer.Start || fam.End >= outer.End {
			t.Fatalf("inferred family [%d,%d] not strictly inside span [%d,%d]",
				fam.Start, fam.End, outer.Start, outer.End)
		}
	}
	if len(outer.Inferred) != 1 {
		t.Fatalf("expected exactly the strictly nested family, got %d inferred", len(outer.Inferred))
	}
}

func TestBuildInferredTightestFirst(t *testing.T) {
	var records []trace.Record
	records = append(records, enterExit("t1", "orphan_a", "a.ts", 1, 0, 100)...)
	// gap ((20-0)+(100-80))/2 = 20
	records = append(records, enterExit("t2", "orphan_x", "a.ts", 2, 20, 80)...)
	// gap ((40-0)+(100-60))/2 = 40
	records = append(records, enterExit("t3", "orphan_y", "a.ts", 3, 40, 60)...)

	tl := Build(records, nil)
	outer := spanByID(t, tl, "t1")

	// t3's family [40,60] is also strictly inside t2's span [20,80], so it is
	// attributed to both containers (multi-owner), ranked tighter under t2.
	inner := spanByID(t, tl, "t2")
	if len(inner.Inferred) != 1 {
		t.Fatalf("expected t3 family attributed to t2 as well, got %d inferred", len(inner.Inferred))
	}

	if len(outer.Inferred) != 2 {
		t.Fatalf("expected 2 inferred children of t1, got %d", len(outer.Inferred))
	}
	firstFam := tl.Families[outer.Inferred[0]]
	secondFam := tl.Families[outer.Inferred[1]]
	if firstFam.Start != 20 || secondFam.Start != 40 {
		t.Fatalf("inferred children not ordered tightest first: [%d,%d] before [%d,%d]",
			firstFam.Start, firstFam.End, secondFam.Start, secondFam.End)
	}
}

func TestBuildEncompassingScoreOrdersRoots(t *testing.T) {
	var records []trace.Record
	// Root discovered first (orphan_a sorts before orphan_r), score 1.
	records = append(records, enterExit("t9", "orphan_a", "a.ts", 9, 200, 210)...)
	// Root discovered second, but with one direct child family: score 2.
	records = append(records, enterExit("t1", "orphan_r", "a.ts", 1, 0, 100)...)
	records = append(records, enterExit("t2", "t1", "a.ts", 2, 10, 40)...)

	tl := Build(records, nil)
	if len(tl.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(tl.Clusters))
	}
	roots := tl.Clusters[0].Roots
	if len(roots) != 2 {
		t.Fatalf("expected 2 root families, got %d", len(roots))
	}
	best := tl.Families[roots[0]]
	if best.Parent.Key() != "orphan_r" {
		t.Fatalf("root with score 2 should rank first, got parent %q", best.Parent)
	}
}

func TestBuildClustersPerFile(t *testing.T) {
	var records []trace.Record
	records = append(records, enterExit("t1", "orphan_a", "a.ts", 1, 0, 10)...)
	records = append(records, enterExit("t2", "orphan_b", "b.ts", 1, 0, 10)...)
	// Non-root family (parent resolves) must not form a cluster entry.
	records = append(records, enterExit("t3", "t1", "a.ts", 2, 2, 8)...)

	tl := Build(records, nil)
	if len(tl.Clusters) != 2 {
		t.Fatalf("expected clusters for a.ts and b.ts, got %d", len(tl.Clusters))
	}
	for _, cluster := range tl.Clusters {
		for _, fi := range cluster.Roots {
			fam := tl.Families[fi]
			if fam.Filepath != cluster.Filepath {
				t.Fatalf("cluster %s lists family of %s", cluster.Filepath, fam.Filepath)
			}
		}
	}
}

func TestBuildUnresolvedParentIsRoot(t *testing.T) {
	// Parent id references a trace id nothing was synthesized for.
	records := enterExit("t1", "missing", "a.ts", 1, 0, 10)

	tl := Build(records, nil)
	if len(tl.Clusters) != 1 || len(tl.Clusters[0].Roots) != 1 {
		t.Fatal("family with unresolvable parent should be a cluster root")
	}
}

func TestBuildErrorFlag(t *testing.T) {
	records := []trace.Record{
		rec("t1", "orphan_a", trace.KindEnter, "a.ts", 1, 0),
		rec("t1", "orphan_a", trace.KindError, "a.ts", 1, 5),
	}
	tl := Build(records, nil)
	if len(tl.Spans) != 1 || !tl.Spans[0].IsError {
		t.Fatal("span with an error record should carry the error flag")
	}
}

func TestBuildSpanBoundsAndEndPosition(t *testing.T) {
	first := rec("t1", "orphan_a", trace.KindEnter, "a.ts", 1, 10)
	first.EndPos = trace.EndPosition{Line: 3, Column: 7}
	last := rec("t1", "orphan_a", trace.KindExit, "a.ts", 1, 90)
	last.EndPos = trace.EndPosition{Line: 9, Column: 1}

	// Input deliberately out of timestamp order.
	tl := Build([]trace.Record{last, first}, nil)
	if len(tl.Spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(tl.Spans))
	}
	span := tl.Spans[0]
	if span.Start != 10 || span.End != 90 {
		t.Fatalf("span bounds [%d,%d], want [10,90]", span.Start, span.End)
	}
	if span.EndLine != 3 || span.EndColumn != 7 {
		t.Fatalf("end position should come from the earliest record, got %d:%d", span.EndLine, span.EndColumn)
	}
}

func TestBuildLabelsUseWorkspaceRoots(t *testing.T) {
	records := enterExit("t1", "orphan_a", "/home/u/proj/src/a.ts", 12, 0, 10)
	tl := Build(records, []string{"/home/u/proj"})
	if tl.Spans[0].Label != "src/a.ts:12" {
		t.Fatalf("label = %q, want src/a.ts:12", tl.Spans[0].Label)
	}
}

func spanByID(t *testing.T, tl *Timeline, traceID string) Span {
	t.Helper()
	for _, span := range tl.Spans {
		if span.TraceID == traceID {
			return span
		}
	}
	t.Fatalf("span %s not found", traceID)
	return Span{}
}
