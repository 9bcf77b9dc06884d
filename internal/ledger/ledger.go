// Package ledger records published posts and the URLs still waiting for
// search-engine indexing.
package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("ledger entry not found")

type IndexState string

const (
	IndexNone    IndexState = "none"
	IndexPending IndexState = "pending"
	IndexIndexed IndexState = "indexed"
)

type Entry struct {
	ID         int64      `json:"id"`
	RunID      string     `json:"run_id"`
	Platform   string     `json:"platform"`
	TargetID   string     `json:"target_id"`
	Keyword    string     `json:"keyword"`
	Title      string     `json:"title"`
	PostID     string     `json:"post_id"`
	Status     string     `json:"status"`
	URL        string     `json:"url"`
	PublishAt  *time.Time `json:"publish_at,omitempty"`
	IndexState IndexState `json:"index_state"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Ledger interface {
	Record(ctx context.Context, e Entry) (int64, error)
	MarkPending(ctx context.Context, id int64) error
	MarkIndexed(ctx context.Context, id int64) error
	// Pending returns up to limit entries waiting for indexing, oldest first.
	Pending(ctx context.Context, limit int) ([]Entry, error)
}
