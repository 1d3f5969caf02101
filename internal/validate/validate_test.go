package validate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresent(t *testing.T) {
	fields := map[string]any{
		"empty":  "",
		"text":   "x",
		"space":  " ",
		"list":   []any{"a"},
		"none":   []any{},
		"number": 3.0,
		"nil":    nil,
	}

	assert.False(t, Present(fields, "empty"))
	assert.True(t, Present(fields, "text"))
	assert.True(t, Present(fields, "space"))
	assert.True(t, Present(fields, "list"))
	assert.False(t, Present(fields, "none"))
	assert.True(t, Present(fields, "number"))
	assert.False(t, Present(fields, "nil"))
	assert.False(t, Present(fields, "absent"))
}

func TestMissing(t *testing.T) {
	fields := map[string]any{"title": "T", "author": ""}
	assert.Equal(t, []string{"content", "author"}, Missing(fields, "title", "content", "author"))
	assert.Nil(t, Missing(fields, "title"))
}

func TestRequired(t *testing.T) {
	assert.NoError(t, Required())
	assert.EqualError(t, Required("image"), "image is required")
	assert.EqualError(t, Required("title", "content", "image"), "title, content and image are required")
}

func TestIsError(t *testing.T) {
	err := fmt.Errorf("create blog: %w", Errorf("bad %s", "input"))
	require.True(t, IsError(err))
	assert.EqualError(t, err, "create blog: bad input")
	assert.False(t, IsError(fmt.Errorf("boom")))
}
