package history

import (
	"time"

	"github.com/storepilotai/storepilot/internal/actions"
	"github.com/storepilotai/storepilot/internal/shopify"
)

// Status is the lifecycle state of a history entry. It is the only mutable
// field of an entry and toggles between the two values via undo/redo.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusUndone   Status = "undone"
)

// Snapshot captures the affected record collections at one point in time.
// Degraded lists collections whose read failed; their slice stays empty
// rather than aborting the batch.
type Snapshot struct {
	Products []shopify.Record `json:"products"`
	Pages    []shopify.Record `json:"pages"`
	Degraded []string         `json:"degraded,omitempty"`
}

// FindProduct returns the snapshot product with the given id.
func (s *Snapshot) FindProduct(id int64) (shopify.Record, bool) {
	if s == nil {
		return shopify.Record{}, false
	}
	for _, record := range s.Products {
		if record.ID == id {
			return record, true
		}
	}
	return shopify.Record{}, false
}

// Entry is one executed batch: prompt, validated actions, both snapshots,
// and a reversible status. Everything except Status is immutable once written.
type Entry struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	Prompt      string           `json:"prompt"`
	Actions     []actions.Action `json:"actions"`
	Before      *Snapshot        `json:"before_snapshot,omitempty"`
	After       *Snapshot        `json:"after_snapshot,omitempty"`
	Summary     string           `json:"summary"`
	StoreDomain string           `json:"store_domain"`
	Status      Status           `json:"status"`
}

// NewEntry holds the fields of an entry about to be appended; the store
// assigns id, timestamp, and the initial executed status.
type NewEntry struct {
	Prompt      string
	Actions     []actions.Action
	Before      *Snapshot
	After       *Snapshot
	Summary     string
	StoreDomain string
}

// ListResponse is the paginated history listing body.
type ListResponse struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}
