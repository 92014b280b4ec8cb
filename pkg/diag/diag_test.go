package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBag_WarnfAndAll(t *testing.T) {
	var b Bag
	b.Warnf(CodeMissingReleaseTag, "Foo", "foo.ts", 3, 4, "%q needs a tag", "Foo")

	all := b.All()
	require.Len(t, all, 1)
	assert.Equal(t, SeverityWarning, all[0].Severity)
	assert.Equal(t, CodeMissingReleaseTag, all[0].Code)
	assert.Equal(t, `"Foo" needs a tag`, all[0].Message)
	assert.False(t, b.HasErrors())
}

func TestBag_Escalate_PromotesMatchingCodes(t *testing.T) {
	var b Bag
	b.Warnf(CodeMissingReleaseTag, "Foo", "foo.ts", 0, 0, "missing")
	b.Warnf(CodeTypeLeak, "Bar", "bar.ts", 0, 0, "leak")

	b.Escalate(CodeMissingReleaseTag)

	all := b.All()
	require.Len(t, all, 2)
	assert.Equal(t, SeverityError, all[0].Severity)
	assert.Equal(t, SeverityWarning, all[1].Severity)
	assert.True(t, b.HasErrors())
}

func TestDiagnostic_String(t *testing.T) {
	d := Diagnostic{
		Code:            CodeTypeLeak,
		Severity:        SeverityWarning,
		Message:         "leaks a less-public type",
		File:            "foo.ts",
		Line:            5,
		Column:          1,
		DeclarationName: "Foo",
	}
	s := d.String()
	assert.Contains(t, s, "foo.ts:5:1")
	assert.Contains(t, s, "[type-leak]")
	assert.Contains(t, s, "Foo")
}
