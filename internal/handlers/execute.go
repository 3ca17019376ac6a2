package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/storepilotai/storepilot/internal/actions"
	"github.com/storepilotai/storepilot/internal/executor"
	"github.com/storepilotai/storepilot/internal/generator"
	"github.com/storepilotai/storepilot/internal/session"
)

// ExecuteHandler turns prompts into previewed action batches and runs
// confirmed batches against the connected store.
type ExecuteHandler struct {
	generator *generator.Service
	executor  *executor.Service
	sessions  *session.Service
	clients   StoreClientFactory
	logger    *slog.Logger
}

// PreviewRequest is the body for POST /api/execute.
type PreviewRequest struct {
	Prompt string `json:"prompt"`
}

// StoreContextCounts reports how much of the store the generator saw.
type StoreContextCounts struct {
	Products    int `json:"products"`
	Pages       int `json:"pages"`
	Collections int `json:"collections"`
	Themes      int `json:"themes"`
}

// PreviewResponse is the proposed batch plus its validation outcome. Nothing
// has been executed when this is returned.
type PreviewResponse struct {
	Summary      string             `json:"summary"`
	Model        string             `json:"model,omitempty"`
	Usage        generator.Usage    `json:"usage"`
	Validation   actions.Result     `json:"validation"`
	StoreContext StoreContextCounts `json:"store_context"`
}

// ConfirmRequest is the body for POST /api/execute/confirm: the batch the
// user approved, echoed back verbatim.
type ConfirmRequest struct {
	Prompt  string              `json:"prompt"`
	Actions []actions.Candidate `json:"actions"`
}

// NewExecuteHandler creates the execute handler.
func NewExecuteHandler(log *slog.Logger, gen *generator.Service, exec *executor.Service, sessions *session.Service, clients StoreClientFactory) *ExecuteHandler {
	return &ExecuteHandler{
		generator: gen,
		executor:  exec,
		sessions:  sessions,
		clients:   clients,
		logger:    log.With(slog.String("handler", "execute")),
	}
}

// Register mounts the execute routes on the Echo instance.
func (h *ExecuteHandler) Register(e *echo.Echo) {
	e.POST("/api/execute", h.Preview)
	e.POST("/api/execute/confirm", h.Confirm)
}

// Preview generates candidate actions for the prompt and validates them
// without touching the store.
func (h *ExecuteHandler) Preview(c echo.Context) error {
	sess, err := RequireConnectedSession(c, h.sessions)
	if err != nil {
		return err
	}

	var req PreviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	ctx := c.Request().Context()
	client := h.clients(sess)
	products, pages, collections, themes := h.executor.CaptureStoreContext(ctx, client)

	proposal, err := h.generator.Generate(ctx, req.Prompt, generator.StoreContext{
		Products:    products,
		Pages:       pages,
		Collections: collections,
		Themes:      themes,
	})
	if err != nil {
		if errors.Is(err, generator.ErrNotConfigured) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "generation is not configured")
		}
		h.logger.Error("generation failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadGateway, "generation failed")
	}

	return c.JSON(http.StatusOK, PreviewResponse{
		Summary:    proposal.Summary,
		Model:      proposal.Model,
		Usage:      proposal.Usage,
		Validation: actions.ValidateJSON(proposal.Actions),
		StoreContext: StoreContextCounts{
			Products:    len(products),
			Pages:       len(pages),
			Collections: len(collections),
			Themes:      len(themes),
		},
	})
}

// Confirm executes the approved batch. The batch is re-validated in full
// before any mutation is sent.
func (h *ExecuteHandler) Confirm(c echo.Context) error {
	sess, err := RequireConnectedSession(c, h.sessions)
	if err != nil {
		return err
	}

	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Actions) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "actions are required")
	}

	result, err := h.executor.ExecuteBatch(c.Request().Context(), h.clients(sess), sess.Shop, req.Prompt, req.Actions)
	if err != nil {
		var invalid *executor.ValidationError
		if errors.As(err, &invalid) {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"valid":  false,
				"errors": invalid.Errors,
			})
		}
		h.logger.Error("batch execution failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, result)
}
