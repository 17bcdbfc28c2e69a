package layouts

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// nav is the link bar shown to signed-in visitors.
var nav = []struct{ Path, Label string }{
	{"/dashboard", "Dashboard"},
	{"/courses", "Courses"},
	{"/quizzes", "Quizzes"},
	{"/nfts", "NFTs"},
	{"/subscription", "Subscription"},
	{"/profile", "Profile"},
}

// Base wraps body in the HTML document shell.
func Base(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>` + templ.EscapeString(title) + ` · edugate</title></head><body>`)
		writeHeader(ctx, &b)
		b.WriteString(`<main>`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

func writeHeader(ctx context.Context, b *strings.Builder) {
	b.WriteString(`<header><a href="/">edugate</a>`)
	if !IsAuthenticated(ctx) {
		b.WriteString(` <a href="/login">Log in</a> <a href="/register">Register</a></header>`)
		return
	}

	active := ActivePath(ctx)
	b.WriteString(`<nav>`)
	for _, item := range nav {
		if item.Path == active {
			b.WriteString(` <a href="` + item.Path + `" aria-current="page">` + item.Label + `</a>`)
			continue
		}
		b.WriteString(` <a href="` + item.Path + `">` + item.Label + `</a>`)
	}
	if IsAdmin(ctx) {
		b.WriteString(` <a href="/admin">Admin</a>`)
	}
	b.WriteString(`</nav><span>` + templ.EscapeString(UserEmail(ctx)) + `</span>`)
	b.WriteString(`<form method="post" action="/logout">`)
	b.WriteString(`<input type="hidden" name="csrf_token" value="` + templ.EscapeString(CSRFToken(ctx)) + `">`)
	b.WriteString(`<button type="submit">Log out</button></form></header>`)
}
