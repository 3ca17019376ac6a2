// Package executor runs validated action batches against the store,
// capturing before/after snapshots and persisting each batch to history.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/storepilotai/storepilot/internal/actions"
	"github.com/storepilotai/storepilot/internal/history"
	"github.com/storepilotai/storepilot/internal/images"
	"github.com/storepilotai/storepilot/internal/shopify"
)

// ValidationError carries the validator's error list when a batch is
// rejected before anything executes.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// ActionResult is the outcome of one action within a batch.
type ActionResult struct {
	Action  actions.Action  `json:"action"`
	Success bool            `json:"success"`
	Result  *shopify.Record `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// BatchResult reports the whole batch: per-action outcomes, aggregate
// counts, and the id of the history entry recording it.
type BatchResult struct {
	HistoryID    string         `json:"history_id"`
	Results      []ActionResult `json:"results"`
	SuccessCount int            `json:"success_count"`
	FailureCount int            `json:"failure_count"`
}

// Service orchestrates batch execution. It is the only component that issues
// forward mutations against the store.
type Service struct {
	store  history.Store
	images images.Acquirer
	logger *slog.Logger
}

// NewService builds the executor on top of the history store and the image
// acquirer.
func NewService(log *slog.Logger, store history.Store, acquirer images.Acquirer) *Service {
	return &Service{
		store:  store,
		images: acquirer,
		logger: log.With(slog.String("service", "executor")),
	}
}

// ExecuteBatch re-validates the candidates, snapshots the store, executes
// each action in order (one failure does not stop the rest), snapshots
// again, and appends a history entry. Validation failure returns a
// *ValidationError before any mutation or persistence happens.
func (s *Service) ExecuteBatch(ctx context.Context, client shopify.StoreClient, storeDomain, prompt string, candidates []actions.Candidate) (BatchResult, error) {
	// Candidates may have been tampered with between preview and confirm,
	// so the trust boundary is enforced again here.
	validation := actions.Validate(candidates)
	if !validation.Valid {
		return BatchResult{}, &ValidationError{Errors: validation.Errors}
	}

	before := s.captureSnapshot(ctx, client)

	results := make([]ActionResult, 0, len(validation.Actions))
	executed := make([]actions.Action, 0, len(validation.Actions))
	for _, action := range validation.Actions {
		action = s.enrich(ctx, action)
		record, err := dispatch(ctx, client, action)
		stored := action.Without("images", "image_prompts")
		executed = append(executed, stored)
		if err != nil {
			s.logger.Warn("action failed",
				slog.String("kind", string(action.Kind)), slog.Any("error", err))
			results = append(results, ActionResult{Action: stored, Success: false, Error: err.Error()})
			continue
		}
		results = append(results, ActionResult{Action: stored, Success: true, Result: &record})
	}

	after := s.captureSnapshot(ctx, client)

	successes := 0
	for _, r := range results {
		if r.Success {
			successes++
		}
	}

	entry, err := s.store.Append(ctx, history.NewEntry{
		Prompt:      prompt,
		Actions:     executed,
		Before:      before,
		After:       after,
		Summary:     fmt.Sprintf("Executed %d/%d actions", successes, len(results)),
		StoreDomain: storeDomain,
	})
	if err != nil {
		// The mutations already landed remotely; there is no rollback.
		return BatchResult{}, fmt.Errorf("persist history entry: %w", err)
	}

	return BatchResult{
		HistoryID:    entry.ID,
		Results:      results,
		SuccessCount: successes,
		FailureCount: len(results) - successes,
	}, nil
}

// CaptureStoreContext reads all four collections for the generator's store
// context. Each read degrades independently to an empty slice.
func (s *Service) CaptureStoreContext(ctx context.Context, client shopify.StoreClient) (products, pages, collections, themes []shopify.Record) {
	products = s.readCollection(ctx, "products", client.ListProducts)
	pages = s.readCollection(ctx, "pages", client.ListPages)
	collections = s.readCollection(ctx, "collections", client.ListCollections)
	themes = s.readCollection(ctx, "themes", client.ListThemes)
	return products, pages, collections, themes
}

// captureSnapshot reads the collections undo/redo replays from. A failed
// read leaves the slice empty and marks the snapshot degraded so callers can
// surface it instead of mistaking the failure for an empty store.
func (s *Service) captureSnapshot(ctx context.Context, client shopify.StoreClient) *history.Snapshot {
	snapshot := &history.Snapshot{Products: []shopify.Record{}, Pages: []shopify.Record{}}

	if products, err := client.ListProducts(ctx); err != nil {
		s.logger.Warn("snapshot read degraded", slog.String("collection", "products"), slog.Any("error", err))
		snapshot.Degraded = append(snapshot.Degraded, "products")
	} else {
		snapshot.Products = products
	}

	if pages, err := client.ListPages(ctx); err != nil {
		s.logger.Warn("snapshot read degraded", slog.String("collection", "pages"), slog.Any("error", err))
		snapshot.Degraded = append(snapshot.Degraded, "pages")
	} else {
		snapshot.Pages = pages
	}

	return snapshot
}

func (s *Service) readCollection(ctx context.Context, name string, list func(context.Context) ([]shopify.Record, error)) []shopify.Record {
	records, err := list(ctx)
	if err != nil {
		s.logger.Warn("store context read degraded", slog.String("collection", name), slog.Any("error", err))
		return []shopify.Record{}
	}
	return records
}

// enrich attaches generated images to create_product actions that arrived
// without any, deriving a prompt from the title when the generator supplied
// none.
func (s *Service) enrich(ctx context.Context, action actions.Action) actions.Action {
	if action.Kind != actions.KindCreateProduct || s.images == nil {
		return action
	}
	if existing, ok := action.Fields["images"].([]any); ok && len(existing) > 0 {
		return action
	}
	prompts := action.Strings("image_prompts")
	if len(prompts) == 0 {
		prompts = []string{images.DefaultPrompt(action.Str("title"))}
	}
	acquired := s.images.Acquire(ctx, prompts)
	if len(acquired) == 0 {
		return action
	}
	s.logger.Info("attached generated images",
		slog.String("title", action.Str("title")), slog.Int("count", len(acquired)))
	enriched := action.Without("image_prompts")
	raw := make([]any, len(acquired))
	for i, img := range acquired {
		raw[i] = img
	}
	enriched.Fields["images"] = raw
	return enriched
}
