// Package replay reverses or re-applies an executed batch by pushing
// snapshot field values back through the store client and toggling the
// history entry's status.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/storepilotai/storepilot/internal/actions"
	"github.com/storepilotai/storepilot/internal/history"
	"github.com/storepilotai/storepilot/internal/shopify"
)

var (
	// ErrNotFound mirrors the store's not-found for the HTTP edge.
	ErrNotFound = errors.New("history entry not found")
	// ErrAlreadyUndone is returned by Undo on an entry already undone.
	ErrAlreadyUndone = errors.New("entry has already been undone")
	// ErrNotUndone is returned by Redo on an entry that is not undone.
	ErrNotUndone = errors.New("entry has not been undone")
	// ErrNoSnapshot means the entry lacks the snapshot the replay needs.
	ErrNoSnapshot = errors.New("no snapshot available")
)

// Result is the per-action outcome of one undo/redo replay.
type Result struct {
	Action    actions.Kind `json:"action"`
	ProductID int64        `json:"product_id,omitempty"`
	Done      bool         `json:"done"`
	Reason    string       `json:"reason,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Service drives the executed/undone state machine over history entries.
type Service struct {
	store  history.Store
	logger *slog.Logger
}

// NewService builds the replay engine on top of the history store.
func NewService(log *slog.Logger, store history.Store) *Service {
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "replay")),
	}
}

// Undo restores the before-snapshot values for every update-style action in
// the entry and transitions the entry to undone. Creation actions cannot be
// reversed (no delete capability is ever granted) and are reported as such.
// A record missing from the snapshot is a per-action failure, not an abort.
func (s *Service) Undo(ctx context.Context, client shopify.StoreClient, id string) ([]Result, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if entry.Status == history.StatusUndone {
		return nil, ErrAlreadyUndone
	}
	if entry.Before == nil {
		return nil, ErrNoSnapshot
	}

	results := s.replay(ctx, client, entry.Actions, entry.Before, true)

	if err := s.store.Transition(ctx, id, history.StatusExecuted, history.StatusUndone); err != nil {
		if errors.Is(err, history.ErrStatusConflict) {
			// A concurrent undo won the compare-and-set.
			return results, ErrAlreadyUndone
		}
		return results, fmt.Errorf("transition status: %w", err)
	}
	s.logger.Info("entry undone", slog.String("id", id), slog.Int("actions", len(results)))
	return results, nil
}

// Redo re-applies the after-snapshot values for update-style actions and
// transitions the entry back to executed. Creations have no redo semantics:
// they were never reversed, so there is nothing to replay.
func (s *Service) Redo(ctx context.Context, client shopify.StoreClient, id string) ([]Result, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if entry.Status != history.StatusUndone {
		return nil, ErrNotUndone
	}
	if entry.After == nil {
		return nil, ErrNoSnapshot
	}

	results := s.replay(ctx, client, entry.Actions, entry.After, false)

	if err := s.store.Transition(ctx, id, history.StatusUndone, history.StatusExecuted); err != nil {
		if errors.Is(err, history.ErrStatusConflict) {
			return results, ErrNotUndone
		}
		return results, fmt.Errorf("transition status: %w", err)
	}
	s.logger.Info("entry redone", slog.String("id", id), slog.Int("actions", len(results)))
	return results, nil
}

// isUpdateStyle reports whether the kind mutates a single product in place
// and can therefore be replayed from a snapshot.
func isUpdateStyle(kind actions.Kind) bool {
	switch kind {
	case actions.KindUpdateProduct, actions.KindAdjustPrice, actions.KindGenerateSEO:
		return true
	default:
		return false
	}
}

// creationNoun returns the plural record noun for a creation kind, or "" for
// non-creation kinds.
func creationNoun(kind actions.Kind) string {
	switch kind {
	case actions.KindCreateProduct:
		return "products"
	case actions.KindCreatePage:
		return "pages"
	case actions.KindCreateCollection:
		return "collections"
	default:
		return ""
	}
}

func (s *Service) replay(ctx context.Context, client shopify.StoreClient, batch []actions.Action, snapshot *history.Snapshot, undoing bool) []Result {
	results := make([]Result, 0, len(batch))
	for _, action := range batch {
		switch {
		case isUpdateStyle(action.Kind):
			results = append(results, s.replayProduct(ctx, client, action, snapshot))
		case creationNoun(action.Kind) != "" && undoing:
			results = append(results, Result{
				Action: action.Kind,
				Done:   false,
				Reason: fmt.Sprintf("cannot undo: created %s are not deleted (safety)", creationNoun(action.Kind)),
			})
		}
		// set_active_theme and creations under redo have no replay semantics.
	}
	return results
}

func (s *Service) replayProduct(ctx context.Context, client shopify.StoreClient, action actions.Action, snapshot *history.Snapshot) Result {
	productID := action.ID("product_id")
	result := Result{Action: action.Kind, ProductID: productID}

	record, ok := snapshot.FindProduct(productID)
	if !ok {
		// Dangling reference: the record vanished out-of-band.
		result.Reason = "record not present in snapshot"
		return result
	}

	input := shopify.ProductInput{
		Title:       record.Title,
		Description: record.BodyHTML,
	}
	if price := record.Price(); price != "" {
		if value, err := strconv.ParseFloat(price, 64); err == nil {
			input.Price = &value
		}
	}

	if _, err := client.UpdateProduct(ctx, productID, input); err != nil {
		s.logger.Warn("replay failed",
			slog.String("kind", string(action.Kind)),
			slog.Int64("product_id", productID),
			slog.Any("error", err))
		result.Error = err.Error()
		return result
	}
	result.Done = true
	return result
}
