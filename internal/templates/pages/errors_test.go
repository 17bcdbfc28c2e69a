package pages

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorPage(404, `<b>gone</b>`).Render(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, "404 Not Found")
	assert.Contains(t, out, "&lt;b&gt;gone&lt;/b&gt;")
	assert.NotContains(t, out, "<b>gone")
}
