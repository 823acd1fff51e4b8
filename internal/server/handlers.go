// Package server provides the HTTP surface of the safety layer.
package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"askmom/internal/core"
	"askmom/internal/orchestrator"
)

// Handler holds the HTTP handlers.
type Handler struct {
	orch *orchestrator.Orchestrator
}

// NewHandler creates a handler backed by the orchestrator.
func NewHandler(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Ask handles POST /v1/ask, the single write entry point for a user turn.
func (h *Handler) Ask(c echo.Context) error {
	var req orchestrator.AskRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error()))
	}

	reply, err := h.orch.ProcessTurn(c.Request().Context(), req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

// ListConversations handles GET /v1/conversations.
func (h *Handler) ListConversations(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return handleError(c, core.NewValidationError("user_id is required"))
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return handleError(c, core.NewValidationError("limit must be an integer"))
		}
		limit = n
	}

	convs, err := h.orch.ListConversations(c.Request().Context(), userID, c.QueryParam("q"), limit)
	if err != nil {
		return handleError(c, err)
	}
	if convs == nil {
		convs = []core.Conversation{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"conversations": convs})
}

// GetConversation handles GET /v1/conversations/:id.
func (h *Handler) GetConversation(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return handleError(c, core.NewValidationError("user_id is required"))
	}

	conv, turns, err := h.orch.GetConversation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	if turns == nil {
		turns = []core.Turn{}
	}

	resp := map[string]interface{}{
		"conversation": conv,
		"turns":        turns,
	}
	if snap, err := h.orch.LatestReply(c.Request().Context(), conv.ID); err == nil && snap != nil {
		resp["latest_reply"] = snap.Reply
	}
	return c.JSON(http.StatusOK, resp)
}

// ContactDraft handles POST /v1/conversations/:id/contact-draft. An
// optional risk_level in the body overrides the conversation's stored level.
func (h *Handler) ContactDraft(c echo.Context) error {
	var req struct {
		RiskLevel string `json:"risk_level"`
	}
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error()))
	}

	var riskLevel core.RiskLevel
	if req.RiskLevel != "" {
		riskLevel = core.ParseRiskLevel(req.RiskLevel, core.RiskMedium)
	}

	draft, err := h.orch.BuildContactDraft(c.Request().Context(), c.Param("id"), riskLevel)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"contact_draft": draft})
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleError converts orchestrator errors to appropriate HTTP responses.
func handleError(c echo.Context, err error) error {
	var oe *core.OrchestratorError
	if errors.As(err, &oe) {
		return c.JSON(oe.HTTPStatusCode(), oe.ToJSON())
	}

	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
