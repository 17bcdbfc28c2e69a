// Package pages serves the HTML shells of the platform. Each shell is a
// titled mount point whose data-source names the proxy route the client
// script loads its content from, so the gateway never renders backend data.
package pages

import (
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/edugate/internal/templates/layouts"
)

// Shell describes one page.
type Shell struct {
	Title   string
	Heading string

	// Source is the proxy route the page's script loads data from.
	Source string
}

// Component renders the shell inside the base layout.
func (s Shell) Component() templ.Component {
	return layouts.Base(s.Title, templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		markup := `<h1>` + templ.EscapeString(s.Heading) + `</h1>`
		if s.Source != "" {
			markup += `<section id="app" data-source="` + templ.EscapeString(s.Source) + `" aria-busy="true"></section>`
		}
		_, err := io.WriteString(w, markup)
		return err
	}))
}

var (
	homeShell         = Shell{Title: "Learn Web3", Heading: "Learn Web3, earn rewards", Source: "/api/stats"}
	catalogShell      = Shell{Title: "Courses", Heading: "Courses", Source: "/api/courses"}
	dashboardShell    = Shell{Title: "Dashboard", Heading: "Dashboard", Source: "/api/analytics/dashboard"}
	profileShell      = Shell{Title: "Profile", Heading: "Your profile", Source: "/api/auth-proxy/profile"}
	quizzesShell      = Shell{Title: "Quizzes", Heading: "Quizzes", Source: "/api/quizzes"}
	nftsShell         = Shell{Title: "NFTs", Heading: "Your NFTs", Source: "/api/nfts"}
	subscriptionShell = Shell{Title: "Subscription", Heading: "Subscription", Source: "/api/subscriptions/current"}
	adminShell        = Shell{Title: "Admin", Heading: "Administration", Source: "/api/admin/auth-events"}
)

// courseShell is the detail page of one course.
func courseShell(id string) Shell {
	return Shell{Title: "Course", Heading: "Course", Source: "/api/courses/" + url.PathEscape(id)}
}
