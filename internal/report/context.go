package report

// ContextBuilder assembles AnomalyContext windows from a single source's
// line stream in byte order, merging anomalies that lie within gap lines
// of each other per spec §4.5/§8. It must be fed lines in strictly
// increasing line-number order and Finish()ed once the source is exhausted.
//
// Open question resolved here (spec §9): the merge test is
// lineNo-lastAnomalyLine <= gap, so with a gap of 1 or more anomalies on
// consecutive lines merge, while a gap of 0 merges no anomalies at all.
type ContextBuilder struct {
	before        int
	after         int
	gap           int
	keepDuplicate bool

	ring []bufferedLine

	current         *AnomalyContext
	lastAnomalyLine int
	lastAnomalyText string
	pendingAfter    int

	out []AnomalyContext
}

type bufferedLine struct {
	lineNo int
	text   string
}

// NewContextBuilder constructs a builder with the given before/after window
// sizes and merge gap.
func NewContextBuilder(before, after, gap int, keepDuplicate bool) *ContextBuilder {
	return &ContextBuilder{before: before, after: after, gap: gap, keepDuplicate: keepDuplicate}
}

// Feed processes one line of the source. isAnomaly must already reflect the
// anomaly-threshold decision (distance >= threshold, non-empty tokens).
func (b *ContextBuilder) Feed(lineNo int, offset int64, text string, distance float32, isAnomaly bool) {
	if isAnomaly {
		b.feedAnomaly(lineNo, offset, text, distance)
	} else {
		b.feedPlain(lineNo, text)
	}
	b.pushRing(lineNo, text)
}

func (b *ContextBuilder) feedAnomaly(lineNo int, offset int64, text string, distance float32) {
	if b.current != nil && lineNo-b.lastAnomalyLine <= b.gap {
		// After only holds lines that follow the last anomaly of the
		// context, so lines gathered after an earlier one are dropped.
		b.current.After = nil
		b.appendAnomaly(lineNo, offset, text, distance)
		return
	}
	if b.current != nil {
		b.closeCurrent()
	}
	b.current = &AnomalyContext{Before: b.beforeWindow()}
	b.appendAnomaly(lineNo, offset, text, distance)
}

func (b *ContextBuilder) appendAnomaly(lineNo int, offset int64, text string, distance float32) {
	if !b.keepDuplicate && lineNo == b.lastAnomalyLine+1 && text == b.lastAnomalyText {
		b.lastAnomalyLine = lineNo
		b.pendingAfter = b.after
		return
	}
	b.current.Anomalies = append(b.current.Anomalies, Anomaly{
		Distance: distance, Offset: offset, LineNumber: lineNo, Text: text,
	})
	b.lastAnomalyLine = lineNo
	b.lastAnomalyText = text
	b.pendingAfter = b.after
}

func (b *ContextBuilder) feedPlain(lineNo int, text string) {
	if b.current == nil {
		return
	}
	if b.pendingAfter > 0 {
		b.current.After = append(b.current.After, text)
		b.pendingAfter--
	}
	if lineNo-b.lastAnomalyLine > b.gap && b.pendingAfter <= 0 {
		b.closeCurrent()
	}
}

func (b *ContextBuilder) closeCurrent() {
	b.out = append(b.out, *b.current)
	b.current = nil
}

func (b *ContextBuilder) beforeWindow() []string {
	if len(b.ring) == 0 {
		return nil
	}
	start := 0
	if len(b.ring) > b.before {
		start = len(b.ring) - b.before
	}
	out := make([]string, 0, len(b.ring)-start)
	for _, l := range b.ring[start:] {
		out = append(out, l.text)
	}
	return out
}

func (b *ContextBuilder) pushRing(lineNo int, text string) {
	b.ring = append(b.ring, bufferedLine{lineNo, text})
	if len(b.ring) > b.before {
		b.ring = b.ring[len(b.ring)-b.before:]
	}
}

// Finish flushes any open context and returns every AnomalyContext built,
// in increasing line-number order.
func (b *ContextBuilder) Finish() []AnomalyContext {
	if b.current != nil {
		b.closeCurrent()
	}
	return b.out
}
