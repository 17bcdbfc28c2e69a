package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler serves the auth event log to admins.
type Handler struct {
	recorder Recorder
}

// NewHandler creates a new audit handler.
func NewHandler(recorder Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// List returns recent auth events
// (GET /api/admin/auth-events?action=auth.login_failed&limit=N).
func (h *Handler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	events, err := h.recorder.Recent(c.Request().Context(), c.QueryParam("action"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}
