package timeline

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/ariana-dev/timeline-gateway/internal/trace"
)

// Build reconstructs the timeline for one trace snapshot. workspaceRoots are
// used only to shorten span display labels. The result is deterministic for a
// given record set regardless of input order.
func Build(records []trace.Record, workspaceRoots []string) *Timeline {
	b := &builder{
		timeline:    &Timeline{},
		spanByTrace: map[string]int{},
		roots:       workspaceRoots,
	}
	groups := groupRecords(records)
	b.synthesize(groups)
	b.link()
	b.compress()
	b.assembleClusters()
	return b.timeline
}

type builder struct {
	timeline    *Timeline
	spanByTrace map[string]int
	roots       []string
	dropped     int
}

// synthesize runs the two allocation passes: spans per trace id, then
// families per (file, parent) group with back-references resolved.
func (b *builder) synthesize(groups map[string]map[string]map[string][]trace.Record) {
	t := b.timeline
	for _, file := range sortedKeys(groups) {
		parents := groups[file]
		for _, parentKey := range sortedKeys(parents) {
			traces := parents[parentKey]

			members := b.synthesizeSpans(traces)
			if len(members) == 0 {
				// Every member span was dropped upstream; the family is
				// never materialized.
				continue
			}

			familyIdx := len(t.Families)
			fam := Family{
				Parent:   trace.ParseParentRef(parentKey),
				Filepath: file,
				Spans:    members,
				Start:    t.Spans[members[0]].Start,
				End:      t.Spans[members[0]].End,
			}
			for _, si := range members {
				t.Spans[si].Family = familyIdx
				fam.Start = min(fam.Start, t.Spans[si].Start)
				fam.End = max(fam.End, t.Spans[si].End)
			}
			t.Families = append(t.Families, fam)
		}
	}
	if b.dropped > 0 {
		slog.Debug("incomplete trace groups dropped", "count", b.dropped)
	}
}

// synthesizeSpans collapses each trace-id group of one family into a span and
// returns the allocated span indices in start-timestamp order.
func (b *builder) synthesizeSpans(traces map[string][]trace.Record) []int {
	type candidate struct {
		traceID string
		span    Span
	}
	candidates := make([]candidate, 0, len(traces))
	for _, traceID := range sortedKeys(traces) {
		span, ok := b.synthesizeSpan(traceID, traces[traceID])
		if !ok {
			b.dropped++
			continue
		}
		candidates = append(candidates, candidate{traceID: traceID, span: span})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].span.Start != candidates[j].span.Start {
			return candidates[i].span.Start < candidates[j].span.Start
		}
		return candidates[i].traceID < candidates[j].traceID
	})

	members := make([]int, 0, len(candidates))
	for _, c := range candidates {
		idx := len(b.timeline.Spans)
		b.timeline.Spans = append(b.timeline.Spans, c.span)
		b.spanByTrace[c.traceID] = idx
		members = append(members, idx)
	}
	return members
}

// synthesizeSpan collapses one trace-id group. Groups without an enter record
// are incomplete and reported as not ok. A zero-record group cannot originate
// from grouping and is a fatal invariant violation.
func (b *builder) synthesizeSpan(traceID string, records []trace.Record) (Span, bool) {
	if len(records) == 0 {
		panic("timeline: span synthesized from zero records")
	}

	ordered := make([]trace.Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	hasEnter := false
	isError := false
	for _, rec := range ordered {
		switch rec.Kind {
		case trace.KindEnter:
			hasEnter = true
		case trace.KindError:
			isError = true
		}
	}
	if !hasEnter {
		return Span{}, false
	}

	first := ordered[0]
	last := ordered[len(ordered)-1]
	span := Span{
		TraceID:  traceID,
		Filepath: first.StartPos.Filepath,
		Line:     first.StartPos.Line,
		Column:   first.StartPos.Column,
		// End position comes from the first record, matching the shipped
		// renderer. See DESIGN.md before changing to the last record.
		EndLine:   first.EndPos.Line,
		EndColumn: first.EndPos.Column,
		Start:     first.Timestamp,
		End:       last.Timestamp,
		IsError:   isError,
		Family:    -1,
	}
	span.Label = shortenPath(span.Filepath, b.roots) + ":" + strconv.Itoa(span.Line)
	return span, true
}

// link computes each span's direct children (families declaring the span's
// trace id as parent) and inferred children (families strictly nested in the
// span's interval), tightest fit first.
func (b *builder) link() {
	t := b.timeline

	for fi := range t.Families {
		parent := t.Families[fi].Parent
		if parent.IsOrphan() {
			continue
		}
		if si, ok := b.spanByTrace[parent.TraceID()]; ok {
			t.Spans[si].Children = append(t.Spans[si].Children, fi)
		}
	}

	for si := range t.Spans {
		span := &t.Spans[si]

		direct := map[int]bool{}
		for _, fi := range span.Children {
			direct[fi] = true
		}

		type inferredChild struct {
			family int
			gap    float64
		}
		var inferred []inferredChild
		for fi := range t.Families {
			if direct[fi] {
				continue
			}
			fam := &t.Families[fi]
			if fam.Start > span.Start && fam.End < span.End {
				gap := (float64(fam.Start-span.Start) + float64(span.End-fam.End)) / 2
				inferred = append(inferred, inferredChild{family: fi, gap: gap})
			}
		}
		sort.SliceStable(inferred, func(i, j int) bool {
			if inferred[i].gap != inferred[j].gap {
				return inferred[i].gap < inferred[j].gap
			}
			return inferred[i].family < inferred[j].family
		})
		for _, c := range inferred {
			span.Inferred = append(span.Inferred, c.family)
		}
	}
}

// compress annotates every family with its repeated span-location patterns.
func (b *builder) compress() {
	t := b.timeline
	for fi := range t.Families {
		fam := &t.Families[fi]
		locations := make([]string, len(fam.Spans))
		for i, si := range fam.Spans {
			locations[i] = t.Spans[si].Location()
		}
		fam.Patterns = detectPatterns(locations)
	}
}

// assembleClusters groups root families per source file and orders them by
// encompassing score, descending, stable.
func (b *builder) assembleClusters() {
	t := b.timeline

	clusterByFile := map[string]int{}
	for fi := range t.Families {
		if !b.isRoot(fi) {
			continue
		}
		file := t.Families[fi].Filepath
		ci, ok := clusterByFile[file]
		if !ok {
			ci = len(t.Clusters)
			clusterByFile[file] = ci
			t.Clusters = append(t.Clusters, Cluster{Filepath: file})
		}
		t.Clusters[ci].Roots = append(t.Clusters[ci].Roots, fi)
	}

	for ci := range t.Clusters {
		roots := t.Clusters[ci].Roots
		scores := make(map[int]int, len(roots))
		for _, fi := range roots {
			scores[fi] = b.encompassingScore(fi, map[int]bool{})
		}
		sort.SliceStable(roots, func(i, j int) bool {
			return scores[roots[i]] > scores[roots[j]]
		})
	}
}

// isRoot reports whether a family has no real owning span: its parent is
// either the orphan marker or a trace id nothing was synthesized for.
func (b *builder) isRoot(fi int) bool {
	parent := b.timeline.Families[fi].Parent
	if parent.IsOrphan() {
		return true
	}
	_, owned := b.spanByTrace[parent.TraceID()]
	return !owned
}

// encompassingScore counts a family plus all families reachable through its
// member spans' direct and inferred child lists. The visited set is fresh per
// root: it guards against cycles and double counting within one root's
// subtree, while families shared between roots still count toward each.
func (b *builder) encompassingScore(fi int, visited map[int]bool) int {
	visited[fi] = true
	score := 1
	t := b.timeline
	for _, si := range t.Families[fi].Spans {
		for _, child := range t.Spans[si].Children {
			if !visited[child] {
				score += b.encompassingScore(child, visited)
			}
		}
		for _, child := range t.Spans[si].Inferred {
			if !visited[child] {
				score += b.encompassingScore(child, visited)
			}
		}
	}
	return score
}
