package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/storepilotai/storepilot/internal/history"
	"github.com/storepilotai/storepilot/internal/replay"
	"github.com/storepilotai/storepilot/internal/session"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryHandler serves the execution log and the undo/redo operations on it.
type HistoryHandler struct {
	store    history.Store
	replay   *replay.Service
	sessions *session.Service
	clients  StoreClientFactory
	logger   *slog.Logger
}

// ReplayResponse is the body for undo/redo: the new status plus per-action outcomes.
type ReplayResponse struct {
	ID      string          `json:"id"`
	Status  history.Status  `json:"status"`
	Results []replay.Result `json:"results"`
}

// NewHistoryHandler creates the history handler.
func NewHistoryHandler(log *slog.Logger, store history.Store, replayService *replay.Service, sessions *session.Service, clients StoreClientFactory) *HistoryHandler {
	return &HistoryHandler{
		store:    store,
		replay:   replayService,
		sessions: sessions,
		clients:  clients,
		logger:   log.With(slog.String("handler", "history")),
	}
}

// Register mounts the history routes on the Echo instance.
func (h *HistoryHandler) Register(e *echo.Echo) {
	group := e.Group("/api/history")
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.POST("/:id/undo", h.Undo)
	group.POST("/:id/redo", h.Redo)
}

// List returns entries newest first with the total count for paging.
func (h *HistoryHandler) List(c echo.Context) error {
	if _, err := RequireConnectedSession(c, h.sessions); err != nil {
		return err
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = min(parsed, maxHistoryLimit)
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		offset = parsed
	}

	ctx := c.Request().Context()
	entries, err := h.store.List(ctx, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	total, err := h.store.Count(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, history.ListResponse{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// Get returns one entry by id.
func (h *HistoryHandler) Get(c echo.Context) error {
	if _, err := RequireConnectedSession(c, h.sessions); err != nil {
		return err
	}
	entry, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "history entry not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entry)
}

// Undo reverts the entry's update-style actions to their before-snapshot values.
func (h *HistoryHandler) Undo(c echo.Context) error {
	sess, err := RequireConnectedSession(c, h.sessions)
	if err != nil {
		return err
	}
	id := c.Param("id")
	results, err := h.replay.Undo(c.Request().Context(), h.clients(sess), id)
	if err != nil {
		return h.replayError(err)
	}
	return c.JSON(http.StatusOK, ReplayResponse{ID: id, Status: history.StatusUndone, Results: results})
}

// Redo re-applies the entry's update-style actions from the after snapshot.
func (h *HistoryHandler) Redo(c echo.Context) error {
	sess, err := RequireConnectedSession(c, h.sessions)
	if err != nil {
		return err
	}
	id := c.Param("id")
	results, err := h.replay.Redo(c.Request().Context(), h.clients(sess), id)
	if err != nil {
		return h.replayError(err)
	}
	return c.JSON(http.StatusOK, ReplayResponse{ID: id, Status: history.StatusExecuted, Results: results})
}

func (h *HistoryHandler) replayError(err error) error {
	switch {
	case errors.Is(err, replay.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "history entry not found")
	case errors.Is(err, replay.ErrAlreadyUndone):
		return echo.NewHTTPError(http.StatusConflict, "entry is already undone")
	case errors.Is(err, replay.ErrNotUndone):
		return echo.NewHTTPError(http.StatusConflict, "entry has not been undone")
	case errors.Is(err, replay.ErrNoSnapshot):
		return echo.NewHTTPError(http.StatusBadRequest, "entry has no snapshot to replay")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
