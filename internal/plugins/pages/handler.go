package pages

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/apperror"
	"github.com/keyxmakerx/edugate/internal/middleware"
	"github.com/keyxmakerx/edugate/internal/plugins/auth"
)

// Handler serves the page shells. Gating happens in auth.Guard before any
// handler here runs.
type Handler struct{}

// NewHandler creates a page handler.
func NewHandler() *Handler {
	return &Handler{}
}

// render answers 200 with shell.
func render(c echo.Context, shell Shell) error {
	return middleware.Render(c, http.StatusOK, shell.Component())
}

func (h *Handler) Home(c echo.Context) error         { return render(c, homeShell) }
func (h *Handler) Catalog(c echo.Context) error      { return render(c, catalogShell) }
func (h *Handler) Dashboard(c echo.Context) error    { return render(c, dashboardShell) }
func (h *Handler) Profile(c echo.Context) error      { return render(c, profileShell) }
func (h *Handler) Quizzes(c echo.Context) error      { return render(c, quizzesShell) }
func (h *Handler) NFTs(c echo.Context) error         { return render(c, nftsShell) }
func (h *Handler) Subscription(c echo.Context) error { return render(c, subscriptionShell) }
func (h *Handler) Admin(c echo.Context) error        { return render(c, adminShell) }

// Course renders the detail shell for /courses/:id.
func (h *Handler) Course(c echo.Context) error {
	return render(c, courseShell(c.Param("id")))
}

// requireAdminPage rejects signed-in non-admins. It runs after Guard(true),
// so a user is always present.
func requireAdminPage(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !auth.GetUser(c).IsAdmin() {
			return apperror.NewForbidden("Admin access required")
		}
		return next(c)
	}
}
