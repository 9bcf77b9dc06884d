package pipeline

import (
	"context"
	"sync"

	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
)

// ErrBusy is returned when another caller holds the browser session.
var ErrBusy = errors.New("the browser session is busy")

// Exclusive guards the one browser tab shared by batches and ad-hoc product
// searches. Only one of them runs at a time across every caller sharing it;
// losers fail fast with ErrBusy instead of queueing.
type Exclusive struct {
	mu     sync.Mutex
	runner interface {
		Run(ctx context.Context, job Job) (*Report, error)
	}
	disc interface {
		Discover(ctx context.Context, keyword string, limit int, rocketOnly bool) ([]models.ProductCandidate, error)
	}
}

func NewExclusive(r *Runner) *Exclusive { return &Exclusive{runner: r, disc: r.disc} }

func (e *Exclusive) Run(ctx context.Context, job Job) (*Report, error) {
	if !e.mu.TryLock() {
		return nil, ErrBusy
	}
	defer e.mu.Unlock()
	return e.runner.Run(ctx, job)
}

// Discover runs one product search while no batch is using the tab.
func (e *Exclusive) Discover(ctx context.Context, keyword string, limit int, rocketOnly bool) ([]models.ProductCandidate, error) {
	if !e.mu.TryLock() {
		return nil, ErrBusy
	}
	defer e.mu.Unlock()
	return e.disc.Discover(ctx, keyword, limit, rocketOnly)
}
