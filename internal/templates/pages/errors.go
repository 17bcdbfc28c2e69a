// Package pages holds full-page templates that belong to no plugin.
package pages

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/edugate/internal/templates/layouts"
)

// ErrorPage renders a browser error with its status and a safe message.
func ErrorPage(code int, message string) templ.Component {
	title := http.StatusText(code)
	if title == "" {
		title = "Error"
	}
	return layouts.Base(title, templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<section class="error-page"><h1>`+strconv.Itoa(code)+` `+
			templ.EscapeString(title)+`</h1><p>`+templ.EscapeString(message)+`</p>`+
			`<p><a href="/">Back to the home page</a></p></section>`)
		return err
	}))
}
