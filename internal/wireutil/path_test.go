package wireutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPathElidesEmptySegments(t *testing.T) {
	assert.Equal(t, "a.b", JoinPath("a", "", "b"))
	assert.Equal(t, "a", JoinPath("", "a", ""))
	assert.Equal(t, "", JoinPath("", ""))
}

func TestSplitPathEmpty(t *testing.T) {
	assert.Nil(t, SplitPath(""))
	assert.Equal(t, []string{"a", "b"}, SplitPath("a.b"))
}

func TestSubjectToRegexWildcards(t *testing.T) {
	re := SubjectToRegex("system.test.*.dev.>")
	m := re.FindStringSubmatch("system.test.h1.dev.scan.set")
	require.NotNil(t, m)
	assert.Equal(t, "h1", m[1])
	assert.Equal(t, "scan.set", m[2])

	assert.Nil(t, re.FindStringSubmatch("system.test.h1.other.scan"))
}

func TestSubjectToRegexLiteralSegmentsEscaped(t *testing.T) {
	re := SubjectToRegex("a.b+c")
	assert.True(t, re.MatchString("a.b+c"))
}

func TestGetPathInDict(t *testing.T) {
	root := map[string]any{
		"dev": map[string]any{
			"name": map[string]any{"schema": map[string]any{"type": "string"}, "value": "X"},
		},
	}
	assert.NotNil(t, GetPathInDict(root, "dev", "name"))
	assert.Nil(t, GetPathInDict(root, "dev", "absent"))
	assert.Nil(t, GetPathInDict(root, "dev", "name", "value", "extra"))
}
