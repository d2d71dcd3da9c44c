// Package layout turns styled runs of text into positioned glyph lines:
// word/character wrapping, hard break with greedy splitting, alignment,
// intra-buffer kerning, and baseline/line-height computation. The public
// entry point is Layout; a TextLayout is immutable once returned and may
// be walked by a renderer any number of times.
package layout

import (
	"math"
	"unicode"

	"golang.org/x/exp/constraints"

	"github.com/bloeys/glyphtext/glyphid"
	"github.com/bloeys/glyphtext/registry"
)

// HAlign is the horizontal alignment of each line within the layout's
// target width.
type HAlign int

const (
	HAlignLeft HAlign = iota
	HAlignCenter
	HAlignRight
)

// VAlign is the vertical alignment of the whole layout within its
// target height.
type VAlign int

const (
	VAlignTop VAlign = iota
	VAlignMiddle
	VAlignBottom
)

// WrapStyle selects how text wraps when it exceeds MaxWidth.
type WrapStyle int

const (
	WrapNone WrapStyle = iota
	WrapWord
	WrapChar
)

// Config holds the per-layout knobs. MaxWidth/MaxHeight are optional;
// nil means unbounded.
type Config struct {
	MaxWidth  *float64
	MaxHeight *float64

	HAlign HAlign
	VAlign VAlign

	LineHeightScale float64

	WrapStyle     WrapStyle
	WrapHardBreak bool

	WordSeparators map[rune]bool
	LineBreakChars map[rune]bool
}

// tabWidthFactor is the hardcoded tab-stop width, a multiple of the
// current run's space advance. Not configurable (see DESIGN.md).
const tabWidthFactor = 4

// DefaultConfig returns word wrapping with hard break enabled, a
// typical separator set, and '\n' as the only line break.
func DefaultConfig() Config {
	return Config{
		HAlign:          HAlignLeft,
		VAlign:          VAlignTop,
		LineHeightScale: 1,
		WrapStyle:       WrapWord,
		WrapHardBreak:   true,
		WordSeparators:  map[rune]bool{' ': true, '\t': true, ',': true, '.': true},
		LineBreakChars:  map[rune]bool{'\n': true},
	}
}

// StyledRun is one run of text bound to a face, point size, and an
// arbitrary per-run payload copied onto every glyph it produces.
type StyledRun[T any] struct {
	Face      glyphid.FaceID
	PointSize float64
	Content   string
	Payload   T
}

// PositionedGlyph is one glyph placed in layout coordinates: origin
// top-left, Y axis pointing down. (X,Y) is the top-left of the glyph
// bitmap.
type PositionedGlyph[T any] struct {
	ID      glyphid.ID
	X, Y    float64
	Payload T
}

// Line is one row of positioned glyphs plus its vertical extent.
type Line[T any] struct {
	Width, Height float64
	Top, Bottom   float64
	Glyphs        []PositionedGlyph[T]
}

// TextLayout is the immutable result of Layout.
type TextLayout[T any] struct {
	Config                 Config
	TotalWidth, TotalHeight float64
	Lines                   []Line[T]
}

func maxOf[V constraints.Ordered](a, b V) V {
	if a > b {
		return a
	}
	return b
}

func minOf[V constraints.Ordered](a, b V) V {
	if a < b {
		return a
	}
	return b
}

// glyphFrag is one shaped character: its identity, the metrics and line
// metrics active when it was shaped, and its x offset relative to the
// start of whatever sequence it was built in.
type glyphFrag[T any] struct {
	id          glyphid.ID
	faceID      glyphid.FaceID
	pointSize   float64
	glyphIndex  uint16
	metrics     registry.GlyphMetrics
	lineMetrics registry.LineMetrics
	payload     T
	x           float64
}

const sizeEpsilon = 1e-6

func kernBetween[T any](reg registry.Registry, prev, next *glyphFrag[T]) float64 {
	if prev == nil {
		return 0
	}
	if prev.faceID != next.faceID {
		return 0
	}
	if math.Abs(prev.pointSize-next.pointSize) > sizeEpsilon {
		return 0
	}
	face, ok := reg.Face(prev.faceID)
	if !ok {
		return 0
	}
	k, ok := face.Kerning(prev.glyphIndex, next.glyphIndex, prev.pointSize)
	if !ok {
		return 0
	}
	return k
}

// fragSeq is a left-to-right run of glyph fragments measured from its
// own start (first fragment at x=0), with kerning already applied
// between consecutive fragments that share face+size.
type fragSeq[T any] struct {
	frags []glyphFrag[T]
	pen   float64 // cursor after the last fragment's advance
	width float64 // ink extent: last fragment's x + its glyph width
}

func (fs *fragSeq[T]) append(reg registry.Registry, f glyphFrag[T]) {
	var prev *glyphFrag[T]
	if len(fs.frags) > 0 {
		prev = &fs.frags[len(fs.frags)-1]
	}
	kern := kernBetween(reg, prev, &f)
	x := fs.pen + kern
	f.x = x
	fs.frags = append(fs.frags, f)
	fs.pen = x + f.metrics.AdvanceWidth
	fs.width = x + f.metrics.Width
}

func singleFragSeq[T any](reg registry.Registry, f glyphFrag[T]) fragSeq[T] {
	var fs fragSeq[T]
	fs.append(reg, f)
	return fs
}

// lineRecord is the pass-1 buffer for one line: an in-progress fragSeq
// plus the line-height extents contributed by every fragment it has
// absorbed (or carried forward from a blank line's active run).
type lineRecord[T any] struct {
	fragSeq[T]
	maxAscent, maxDescent, maxLineGap float64
}

func (l *lineRecord[T]) trackExtents(lm registry.LineMetrics) {
	l.maxAscent = maxOf(l.maxAscent, lm.Ascent)
	l.maxDescent = minOf(l.maxDescent, lm.Descent) // descent is negative; more negative reaches further below the baseline
	l.maxLineGap = maxOf(l.maxLineGap, lm.LineGap)
}

type charClass int

const (
	classRegular charClass = iota
	classLineBreak
	classTab
	classWordBreak
	classIgnore
)

func classify(r rune, cfg Config) charClass {
	if cfg.LineBreakChars[r] {
		return classLineBreak
	}
	if r == '\t' {
		return classTab
	}
	if cfg.WordSeparators[r] {
		if unicode.IsControl(r) {
			return classIgnore
		}
		return classWordBreak
	}
	if unicode.IsControl(r) {
		return classIgnore
	}
	return classRegular
}

type state[T any] struct {
	cfg Config
	reg registry.Registry

	lines []lineRecord[T]
	cur   lineRecord[T]

	pendingWord fragSeq[T]

	// kerningBarrier suppresses kerning against the previous fragment
	// once, consumed by the next append. Set after a tab, since the
	// fragment before and after a tab stop are not visually adjacent.
	kerningBarrier bool

	anyContent bool
	lastLM     registry.LineMetrics
}

func (s *state[T]) lastFragPtr() *glyphFrag[T] {
	if s.kerningBarrier {
		s.kerningBarrier = false
		return nil
	}
	if len(s.cur.frags) == 0 {
		return nil
	}
	return &s.cur.frags[len(s.cur.frags)-1]
}

// concatSeq appends seq onto the current line, applying kerning only at
// the new boundary; seq's own internal offsets are preserved.
func (s *state[T]) concatSeq(seq fragSeq[T]) {
	if len(seq.frags) == 0 {
		return
	}
	prev := s.lastFragPtr()
	kern := kernBetween(s.reg, prev, &seq.frags[0])
	offset := s.cur.pen + kern

	for _, f := range seq.frags {
		f.x += offset
		s.cur.frags = append(s.cur.frags, f)
		s.cur.trackExtents(f.lineMetrics)
	}
	s.cur.pen = offset + seq.pen
	s.cur.width = offset + seq.width
}

func (s *state[T]) pushLine() {
	s.lines = append(s.lines, s.cur)
	s.cur = lineRecord[T]{}
}

// longestPrefixFit returns the longest leading prefix of frags (built
// fresh, starting at x=0) whose ink width fits cfg.MaxWidth, always
// including at least the first fragment even if it alone overflows.
func (s *state[T]) longestPrefixFit(frags []glyphFrag[T]) (fragSeq[T], int) {
	var built, accepted fragSeq[T]
	count := 0
	for idx, f := range frags {
		built.append(s.reg, f)
		if built.width > *s.cfg.MaxWidth && idx > 0 {
			break
		}
		accepted = built
		count++
	}
	return accepted, count
}

func (s *state[T]) greedySplit(seq fragSeq[T]) {
	remaining := seq.frags
	for len(remaining) > 0 {
		accepted, count := s.longestPrefixFit(remaining)
		s.concatSeq(accepted)
		remaining = remaining[count:]
		if len(remaining) > 0 {
			s.pushLine()
		}
	}
}

// appendSeq runs the fragment-append algorithm (steps 1-6): try to fit
// seq onto the current line, else wrap to a new line, else greedily
// split it across as many new lines as needed.
func (s *state[T]) appendSeq(seq fragSeq[T]) {
	if len(seq.frags) == 0 {
		return
	}

	if s.cfg.WrapStyle == WrapNone || s.cfg.MaxWidth == nil {
		s.concatSeq(seq)
		return
	}

	// Peek at the tail without consuming kerningBarrier: concatSeq below
	// consumes it when the sequence is actually placed.
	var prev *glyphFrag[T]
	if !s.kerningBarrier && len(s.cur.frags) > 0 {
		prev = &s.cur.frags[len(s.cur.frags)-1]
	}
	kern := kernBetween(s.reg, prev, &seq.frags[0])
	projected := s.cur.pen + kern + seq.width
	if projected <= *s.cfg.MaxWidth {
		s.concatSeq(seq)
		return
	}

	if len(s.cur.frags) > 0 {
		s.pushLine()
	}

	if seq.width <= *s.cfg.MaxWidth {
		s.concatSeq(seq)
		return
	}

	if !s.cfg.WrapHardBreak {
		s.concatSeq(seq)
		return
	}

	s.greedySplit(seq)
}

func (s *state[T]) flushPendingWord() {
	if len(s.pendingWord.frags) == 0 {
		return
	}
	seq := s.pendingWord
	s.pendingWord = fragSeq[T]{}
	s.appendSeq(seq)
}

// Layout shapes runs into a TextLayout under cfg, resolving faces and
// glyphs through reg. Runs referencing an unknown face or a face with
// no metrics at the requested size are skipped; empty runs are skipped.
func Layout[T any](runs []StyledRun[T], cfg Config, reg registry.Registry) TextLayout[T] {

	s := &state[T]{cfg: cfg, reg: reg}

	for _, run := range runs {
		if len(run.Content) == 0 {
			continue
		}

		face, ok := reg.Face(run.Face)
		if !ok {
			continue
		}
		lm, ok := face.LineMetrics(run.PointSize)
		if !ok {
			continue
		}

		s.anyContent = true
		s.lastLM = lm
		runes := []rune(run.Content)

		for _, r := range runes {
			switch classify(r, cfg) {

			case classLineBreak:
				s.flushPendingWord()
				if len(s.cur.frags) == 0 {
					s.cur.trackExtents(lm)
				}
				s.pushLine()
				s.kerningBarrier = true

			case classTab:
				s.flushPendingWord()
				spaceIdx := face.GlyphIndex(' ')
				spaceAdvance := face.Metrics(spaceIdx, run.PointSize).AdvanceWidth
				tabWidth := tabWidthFactor * spaceAdvance
				if tabWidth > 0 {
					target := math.Ceil(s.cur.pen/tabWidth) * tabWidth
					if target > s.cur.pen {
						s.cur.pen = target
					}
				}
				s.kerningBarrier = true

			case classWordBreak:
				s.flushPendingWord()
				if len(s.cur.frags) > 0 {
					gi := face.GlyphIndex(r)
					f := glyphFrag[T]{
						id:          glyphid.New(run.Face, gi, run.PointSize),
						faceID:      run.Face,
						pointSize:   run.PointSize,
						glyphIndex:  gi,
						metrics:     face.Metrics(gi, run.PointSize),
						lineMetrics: lm,
						payload:     run.Payload,
					}
					s.appendSeq(singleFragSeq(reg, f))
				}

			case classIgnore:
				// skip silently

			default: // classRegular
				gi := face.GlyphIndex(r)
				f := glyphFrag[T]{
					id:          glyphid.New(run.Face, gi, run.PointSize),
					faceID:      run.Face,
					pointSize:   run.PointSize,
					glyphIndex:  gi,
					metrics:     face.Metrics(gi, run.PointSize),
					lineMetrics: lm,
					payload:     run.Payload,
				}
				if cfg.WrapStyle == WrapChar {
					s.appendSeq(singleFragSeq(reg, f))
				} else {
					s.pendingWord.append(reg, f)
				}
			}
		}

		s.flushPendingWord()
	}

	if s.anyContent {
		s.flushPendingWord()
		if len(s.cur.frags) == 0 {
			s.cur.trackExtents(s.lastLM)
		}
		s.pushLine()
	}

	return finalize(s.lines, cfg)
}

// Measure runs the same pipeline as Layout and reports only the
// resulting bounds, for callers sizing a container before committing to
// a full layout.
func Measure[T any](runs []StyledRun[T], cfg Config, reg registry.Registry) (width, height float64) {
	tl := Layout(runs, cfg, reg)
	return tl.TotalWidth, tl.TotalHeight
}

func finalize[T any](records []lineRecord[T], cfg Config) TextLayout[T] {

	scale := cfg.LineHeightScale

	type built struct {
		width, height float64
		glyphs        []PositionedGlyph[T]
	}

	lines := make([]built, len(records))
	var totalHeight float64
	var totalWidth float64

	cumTop := 0.0
	for i, rec := range records {
		raw := rec.maxAscent - rec.maxDescent + rec.maxLineGap
		scaled := maxOf(0, raw*scale)
		baseline := cumTop + rec.maxAscent

		glyphs := make([]PositionedGlyph[T], len(rec.frags))
		for gi, f := range rec.frags {
			y := baseline - (f.metrics.YMin + f.metrics.Height)
			glyphs[gi] = PositionedGlyph[T]{ID: f.id, X: f.x, Y: y, Payload: f.payload}
		}

		lines[i] = built{width: rec.width, height: scaled, glyphs: glyphs}
		if rec.width > totalWidth {
			totalWidth = rec.width
		}
		cumTop += scaled
	}
	totalHeight = cumTop

	targetWidth := totalWidth
	if cfg.MaxWidth != nil {
		targetWidth = *cfg.MaxWidth
	}
	targetHeight := totalHeight
	if cfg.MaxHeight != nil {
		targetHeight = *cfg.MaxHeight
	}

	vOffset := 0.0
	switch cfg.VAlign {
	case VAlignMiddle:
		vOffset = (targetHeight - totalHeight) / 2
	case VAlignBottom:
		vOffset = targetHeight - totalHeight
	}

	outLines := make([]Line[T], len(lines))
	top := 0.0
	for i, b := range lines {
		hOffset := 0.0
		switch cfg.HAlign {
		case HAlignCenter:
			hOffset = (targetWidth - b.width) / 2
		case HAlignRight:
			hOffset = targetWidth - b.width
		}

		for gi := range b.glyphs {
			b.glyphs[gi].X += hOffset
			b.glyphs[gi].Y += vOffset
		}

		lineTop := top + vOffset
		lineBottom := lineTop + b.height
		outLines[i] = Line[T]{
			Width:  b.width,
			Height: b.height,
			Top:    lineTop,
			Bottom: lineBottom,
			Glyphs: b.glyphs,
		}
		top += b.height
	}

	return TextLayout[T]{
		Config:      cfg,
		TotalWidth:  totalWidth,
		TotalHeight: totalHeight,
		Lines:       outLines,
	}
}
