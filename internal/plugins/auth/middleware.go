package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/middleware"
	"github.com/keyxmakerx/edugate/internal/plugins/session"
)

// Context keys for the per-request auth state. Other plugins read them
// through the exported getters below.
const (
	contextKeyState    = "auth_state"
	contextKeyNavigate = "auth_navigate"
)

// Provider builds the State for each request from the session manager.
type Provider struct {
	manager *session.Manager
	service *Service
}

// NewProvider creates a provider.
func NewProvider(manager *session.Manager, service *Service) *Provider {
	return &Provider{manager: manager, service: service}
}

// Middleware attaches an unhydrated State to every request. Hydration is
// explicit: Guard and the handlers call State.Hydrate when they need it.
// Logout's navigation is recorded on the context and read back with
// NavigatedTo.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			store := p.manager.ForRequest(c, middleware.IsSecureRequest(c.Request()))
			c.Set(contextKeyState, NewState(p.service, store, func(path string) {
				c.Set(contextKeyNavigate, path)
			}))
			return next(c)
		}
	}
}

// --- Exported getters for other plugins ---

// GetState returns the request's auth state, or nil when Provider's
// middleware is not applied.
func GetState(c echo.Context) *State {
	state, _ := c.Get(contextKeyState).(*State)
	return state
}

// GetUser returns the hydrated user of the request, or nil.
func GetUser(c echo.Context) *session.User {
	if state := GetState(c); state != nil {
		return state.User()
	}
	return nil
}

// NavigatedTo returns the path the State navigated to during this
// request, or "".
func NavigatedTo(c echo.Context) string {
	path, _ := c.Get(contextKeyNavigate).(string)
	return path
}
