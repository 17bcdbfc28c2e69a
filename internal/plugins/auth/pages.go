package auth

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/edugate/internal/templates/layouts"
)

// fragment renders markup built by write.
func fragment(write func(b *strings.Builder)) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		write(&b)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func field(b *strings.Builder, label, name, kind, value string) {
	b.WriteString(`<label>` + label + ` <input type="` + kind + `" name="` + name + `"`)
	if value != "" {
		b.WriteString(` value="` + templ.EscapeString(value) + `"`)
	}
	b.WriteString(`></label>`)
}

func formError(b *strings.Builder, msg string) {
	if msg != "" {
		b.WriteString(`<p role="alert" class="error">` + templ.EscapeString(msg) + `</p>`)
	}
}

// LoginForm is the login form fragment, also returned alone to HTMX.
func LoginForm(csrfToken, email, errMsg, redirectTo string) templ.Component {
	return fragment(func(b *strings.Builder) {
		b.WriteString(`<form id="login-form" method="post" action="/login">`)
		b.WriteString(`<input type="hidden" name="csrf_token" value="` + templ.EscapeString(csrfToken) + `">`)
		if redirectTo != "" {
			b.WriteString(`<input type="hidden" name="redirect" value="` + templ.EscapeString(redirectTo) + `">`)
		}
		formError(b, errMsg)
		field(b, "Email", "email", "email", email)
		field(b, "Password", "password", "password", "")
		b.WriteString(`<button type="submit">Log in</button></form>`)
		b.WriteString(`<p>No account? <a href="/register">Register</a></p>`)
	})
}

// LoginPage is the full login page.
func LoginPage(csrfToken, email, errMsg, redirectTo string) templ.Component {
	return layouts.Base("Log in", LoginForm(csrfToken, email, errMsg, redirectTo))
}

// RegisterForm is the registration form fragment. The password is never
// echoed back.
func RegisterForm(csrfToken string, in RegisterInput, errMsg string) templ.Component {
	return fragment(func(b *strings.Builder) {
		b.WriteString(`<form id="register-form" method="post" action="/register">`)
		b.WriteString(`<input type="hidden" name="csrf_token" value="` + templ.EscapeString(csrfToken) + `">`)
		formError(b, errMsg)
		field(b, "Email", "email", "email", in.Email)
		field(b, "Username", "username", "text", in.Username)
		field(b, "First name", "first_name", "text", in.FirstName)
		field(b, "Last name", "last_name", "text", in.LastName)
		field(b, "Password", "password", "password", "")
		field(b, "Confirm password", "password_confirm", "password", "")
		b.WriteString(`<button type="submit">Create account</button></form>`)
		b.WriteString(`<p>Already registered? <a href="/login">Log in</a></p>`)
	})
}

// RegisterPage is the full registration page.
func RegisterPage(csrfToken string, in RegisterInput, errMsg string) templ.Component {
	return layouts.Base("Register", RegisterForm(csrfToken, in, errMsg))
}

// LoadingPage is shown while the session is still resolving. It reloads
// itself after a second.
func LoadingPage() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta http-equiv="refresh" content="1"><title>Loading · edugate</title></head>`+
			`<body><main aria-busy="true"><p>Loading your session…</p></main></body></html>`)
		return err
	})
}
