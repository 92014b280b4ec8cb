// Package span implements the Span Tree & Rewriter (C6): a
// whitespace-preserving tree laid over a syntax node's source range, with
// a mutable Modification per span that the review file generator (C7)
// uses to skip, replace, rename, or reorder pieces of source text while
// guaranteeing untouched spans reproduce the original bytes exactly.
package span

import (
	"sort"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// Modification carries every mutation the review generator can apply to a
// Span before emission.
type Modification struct {
	PrefixOverride *string
	SuffixOverride *string
	OmitChildren   bool
	OmitSeparator  bool
	SortChildren   bool
	SortKey        *string // nil sorts last, per §4.7's "missing keys ... emitted last"
}

// Skip marks the span to contribute nothing at all to emitted text: empty
// prefix/suffix, no children, no separator. Used for JSDoc comments and
// the `export`/`default` keywords, which the review file drops entirely.
func (m *Modification) Skip() {
	empty := ""
	m.PrefixOverride = &empty
	m.SuffixOverride = &empty
	m.OmitChildren = true
	m.OmitSeparator = true
}

// Span wraps one syntax node's source range: a startIndex/endIndex pair,
// the ordered children covering parts of that range, and four virtual
// text segments (prefix, children, suffix, separator) that together
// reproduce the node's exact original text when unmodified.
type Span struct {
	Node       *ts.Node
	buffer     []byte
	startIndex int
	endIndex   int

	prefixEnd   int // startIndex..prefixEnd is the prefix segment
	suffixStart int // suffixStart..endIndex is the suffix segment
	children    []*Span
	separator   string // trivia between endIndex and the next lexical token

	Modification Modification
}

// Build constructs the Span tree for node against buffer, attaching one
// child Span per named child, and computing separators by pushing each
// node's trailing inter-token gap down into the deepest preceding span
// that has no non-empty suffix of its own, per §4.6.
func Build(node *ts.Node, buffer []byte) *Span {
	return buildSpan(node, buffer, int(node.StartByte()), int(node.EndByte()))
}

func buildSpan(node *ts.Node, buffer []byte, start, end int) *Span {
	s := &Span{
		Node:        node,
		buffer:      buffer,
		startIndex:  start,
		endIndex:    end,
		prefixEnd:   start,
		suffixStart: end,
	}

	count := int(node.NamedChildCount())
	if count == 0 {
		return s
	}

	first := node.NamedChild(0)
	s.prefixEnd = int(first.StartByte())

	last := node.NamedChild(uint(count - 1))
	s.suffixStart = int(last.EndByte())

	for i := 0; i < count; i++ {
		c := node.NamedChild(uint(i))
		childEnd := int(c.EndByte())
		gapEnd := s.suffixStart
		if i < count-1 {
			gapEnd = int(node.NamedChild(uint(i + 1)).StartByte())
		}
		child := buildSpan(c, buffer, int(c.StartByte()), childEnd)
		if gapEnd > childEnd {
			assignSeparator(child, string(buffer[childEnd:gapEnd]))
		}
		s.children = append(s.children, child)
	}

	return s
}

// assignSeparator implements "pushing trailing inter-child gaps down into
// the deepest preceding span that has no non-empty suffix": a span whose
// own suffix segment is empty delegates its separator responsibility to
// its own last child, recursively, so that a reordering later on moves
// the whitespace along with the innermost content it actually belongs to.
func assignSeparator(s *Span, gap string) {
	if s.suffixStart < s.endIndex || len(s.children) == 0 {
		s.separator = gap
		return
	}
	assignSeparator(s.children[len(s.children)-1], gap)
}

// Children returns sp's child spans in source order.
func (s *Span) Children() []*Span { return s.children }

// lastInnerSeparator is a span's own separator if non-empty, else
// recursively that of its last child.
func (s *Span) lastInnerSeparator() string {
	if s.separator != "" {
		return s.separator
	}
	if len(s.children) == 0 {
		return ""
	}
	return s.children[len(s.children)-1].lastInnerSeparator()
}

func (s *Span) prefix() string {
	if s.Modification.PrefixOverride != nil {
		return *s.Modification.PrefixOverride
	}
	if len(s.children) == 0 {
		return string(s.buffer[s.startIndex:s.endIndex])
	}
	return string(s.buffer[s.startIndex:s.prefixEnd])
}

func (s *Span) suffix() string {
	if s.Modification.SuffixOverride != nil {
		return *s.Modification.SuffixOverride
	}
	if len(s.children) == 0 {
		return ""
	}
	return string(s.buffer[s.suffixStart:s.endIndex])
}

// GetText emits this span's modified text: prefix, children (in order,
// possibly sorted, with separator overrides), suffix, then its own
// separator unless suppressed. separatorOverride, when non-nil, is
// inherited from an ancestor's sortChildren pass per step 4 of §4.6.
func (s *Span) GetText() string {
	return s.getText(nil)
}

func (s *Span) getText(separatorOverride *string) string {
	var b strings.Builder
	b.WriteString(s.prefix())

	if !s.Modification.OmitChildren && len(s.children) > 0 {
		children := s.children
		if s.Modification.SortChildren && len(children) >= 2 {
			children = sortedChildren(children)
			b.WriteString(s.renderSortedChildren(children))
		} else {
			for _, c := range children {
				b.WriteString(c.getText(nil))
			}
		}
	}

	b.WriteString(s.suffix())

	if separatorOverride != nil {
		if s.separator != "" || len(s.children) == 0 {
			b.WriteString(*separatorOverride)
			return b.String()
		}
	}
	if !s.Modification.OmitSeparator {
		b.WriteString(s.separator)
	}
	return b.String()
}

// sortedChildren stable-sorts by Modification.SortKey; children with no
// key keep relative order and sort after every keyed child.
func sortedChildren(children []*Span) []*Span {
	out := make([]*Span, len(children))
	copy(out, children)
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := out[i].Modification.SortKey, out[j].Modification.SortKey
		if ki == nil && kj == nil {
			return false
		}
		if ki == nil {
			return false
		}
		if kj == nil {
			return true
		}
		return *ki < *kj
	})
	return out
}

// renderSortedChildren implements step 2's indentation fixup: every
// sorted child but the last emits with the *first* child's last inner
// separator; the last sorted child emits with the *last* child's own
// last inner separator, so trailing whitespace/closing-brace indent is
// unaffected by reordering.
func (s *Span) renderSortedChildren(sorted []*Span) string {
	if len(sorted) == 0 {
		return ""
	}
	firstSep := sorted[0].lastInnerSeparator()
	lastSep := sorted[len(sorted)-1].lastInnerSeparator()

	var b strings.Builder
	for i, c := range sorted {
		if i == len(sorted)-1 {
			b.WriteString(c.getText(&lastSep))
		} else {
			b.WriteString(c.getText(&firstSep))
		}
	}
	return b.String()
}

// AreEquivalentApiFileContents implements §4.7's equivalence check: two
// review files are equivalent iff collapsing every run of whitespace
// (including CR, LF, tab) to a single space yields identical strings.
func AreEquivalentApiFileContents(a, b string) bool {
	return collapseWhitespace(a) == collapseWhitespace(b)
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	inWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !inWS {
				b.WriteByte(' ')
				inWS = true
			}
			continue
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}
