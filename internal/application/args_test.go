package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallArgsSplitsPositionalAndKeyword(t *testing.T) {
	t.Parallel()

	positional, keyword, err := ParseCallArgs([]string{"first", "second", "bar=apple sauce", "boom=bang"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, positional)
	assert.Equal(t, map[string]string{"bar": "apple sauce", "boom": "bang"}, keyword)
}

func TestParseCallArgsAllPositional(t *testing.T) {
	t.Parallel()

	positional, keyword, err := ParseCallArgs([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, positional)
	assert.Empty(t, keyword)
}

func TestParseCallArgsEmptyValueAllowed(t *testing.T) {
	t.Parallel()

	_, keyword, err := ParseCallArgs([]string{"late="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"late": ""}, keyword)
}

func TestParseCallArgsPositionalAfterKeywordIsError(t *testing.T) {
	t.Parallel()

	_, _, err := ParseCallArgs([]string{"first", "bar=1", "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second")
}

func TestParseCallArgsUppercaseTokenStaysPositional(t *testing.T) {
	t.Parallel()

	// Keyword names are lowercase identifiers; anything else is a value.
	positional, keyword, err := ParseCallArgs([]string{"X=1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"X=1"}, positional)
	assert.Empty(t, keyword)
}
