// Package doccomment locates and parses the JSDoc-style comment attached
// to a declaration, recognizing the modifier and block tag set the
// metadata pass (C5) needs. It knows nothing about release-tag resolution
// or semantic warnings — it only turns a "/** ... */" block into a
// structured Comment.
package doccomment

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// ModifierTag is a doc-comment tag that toggles a boolean flag on the
// declaration rather than carrying free text.
type ModifierTag string

const (
	TagPublic             ModifierTag = "public"
	TagBeta               ModifierTag = "beta"
	TagAlpha              ModifierTag = "alpha"
	TagInternal           ModifierTag = "internal"
	TagSealed             ModifierTag = "sealed"
	TagVirtual            ModifierTag = "virtual"
	TagOverride           ModifierTag = "override"
	TagEventProperty      ModifierTag = "eventProperty"
	TagReadonly           ModifierTag = "readonly"
	TagPackageDocumentation ModifierTag = "packageDocumentation"
	TagPreapproved        ModifierTag = "preapproved"
	TagBetaDocumentation  ModifierTag = "betaDocumentation"
)

// modifierTagSet is every recognized modifier tag, used to validate that a
// parsed "@word" is a known modifier rather than a typo or block tag.
var modifierTagSet = map[string]ModifierTag{
	"@public":               TagPublic,
	"@beta":                 TagBeta,
	"@alpha":                TagAlpha,
	"@internal":             TagInternal,
	"@sealed":               TagSealed,
	"@virtual":              TagVirtual,
	"@override":             TagOverride,
	"@eventProperty":        TagEventProperty,
	"@readonly":             TagReadonly,
	"@packageDocumentation": TagPackageDocumentation,
	"@preapproved":          TagPreapproved,
	"@betaDocumentation":    TagBetaDocumentation,
}

// blockTagSet is every recognized block tag: one that introduces a run of
// free-form text extending to the next recognized tag or comment end.
var blockTagSet = map[string]bool{
	"@remarks": true, "@param": true, "@returns": true, "@example": true,
	"@deprecated": true, "@privateRemarks": true, "@internalRemarks": true,
	"@defaultValue": true, "@link": true, "@inheritDoc": true,
}

// BlockTag is one "@tag text..." run within a doc comment.
type BlockTag struct {
	Tag  string
	Text string
}

// Comment is a parsed "/** ... */" doc comment.
type Comment struct {
	// Raw is the untouched comment text, including delimiters.
	Raw string

	// Summary is the leading free text before the first recognized tag —
	// the AEDoc "summary block". The review file does not reproduce it;
	// its synopsis lines carry tag tokens only.
	Summary string

	Modifiers map[ModifierTag]bool
	Blocks    []BlockTag
}

// HasModifier reports whether tag was present in the comment.
func (c *Comment) HasModifier(tag ModifierTag) bool {
	return c != nil && c.Modifiers[tag]
}

// ReleaseTags returns every release-family modifier tag present
// (@public/@beta/@alpha/@internal), always in that fixed order regardless
// of where each appeared in the comment. More than
// one is the "incompatible release tags" condition the metadata pass
// checks for.
func (c *Comment) ReleaseTags() []ModifierTag {
	if c == nil {
		return nil
	}
	var out []ModifierTag
	for _, t := range []ModifierTag{TagPublic, TagBeta, TagAlpha, TagInternal} {
		if c.Modifiers[t] {
			out = append(out, t)
		}
	}
	return out
}

// HasSummary reports whether the comment has non-empty leading free text.
func (c *Comment) HasSummary() bool {
	return c != nil && strings.TrimSpace(c.Summary) != ""
}

// Find locates the doc comment immediately preceding node: either node's
// own previous sibling, or — when node sits inside an `export_statement`
// wrapper — the export statement's previous sibling, since the comment
// attaches to the export, not the inner declaration.
func Find(node *ts.Node, source []byte) *Comment {
	if node == nil {
		return nil
	}
	if c := commentBefore(node, source); c != nil {
		return c
	}
	if parent := node.Parent(); parent != nil && parent.GrammarName() == "export_statement" {
		return commentBefore(parent, source)
	}
	return nil
}

func commentBefore(node *ts.Node, source []byte) *Comment {
	prev := node.PrevSibling()
	if prev == nil || prev.GrammarName() != "comment" {
		return nil
	}
	raw := string(prev.Utf8Text(source))
	if !strings.HasPrefix(raw, "/**") {
		return nil
	}
	return Parse(raw)
}

// Parse turns a raw "/** ... */" block into a Comment: strips the comment
// delimiters and leading " * " continuation markers from each line, then
// splits on lines beginning with a recognized tag.
func Parse(raw string) *Comment {
	body := strings.TrimSuffix(strings.TrimPrefix(raw, "/**"), "*/")
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		lines[i] = strings.TrimSpace(line)
	}

	c := &Comment{Raw: raw, Modifiers: make(map[ModifierTag]bool)}

	var summaryLines []string
	var curTag string
	var curText []string
	flush := func() {
		if curTag != "" {
			c.Blocks = append(c.Blocks, BlockTag{Tag: curTag, Text: strings.TrimSpace(strings.Join(curText, " "))})
		}
		curTag, curText = "", nil
	}

	inBody := false
	for _, line := range lines {
		word, rest := firstWord(line)
		if mod, ok := modifierTagSet[word]; ok {
			flush()
			c.Modifiers[mod] = true
			inBody = true
			continue
		}
		if blockTagSet[word] {
			flush()
			curTag = word
			if rest != "" {
				curText = append(curText, rest)
			}
			inBody = true
			continue
		}
		if inBody {
			if curTag != "" {
				curText = append(curText, line)
			}
			continue
		}
		summaryLines = append(summaryLines, line)
	}
	flush()

	c.Summary = strings.TrimSpace(strings.Join(summaryLines, "\n"))
	return c
}

func firstWord(line string) (word, rest string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "@") {
		return "", line
	}
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx+1:])
}
