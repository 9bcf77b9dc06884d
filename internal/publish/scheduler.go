// Package publish turns composed posts into platform calls and owns the
// DRAFT / SCHEDULED / LIVE state machine together with the schedule cursor.
package publish

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/indexing"
	"github.com/lukman83/autopost/internal/ledger"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/platform"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=scheduler.go -destination=mocks/mock_indexer.go -package=mocks

type State string

const (
	StateDraft     State = "DRAFT"
	StateScheduled State = "SCHEDULED"
	StateLive      State = "LIVE"
)

// ParseState maps a platform status case-insensitively. Unknown statuses
// count as drafts.
func ParseState(status string) State {
	switch State(strings.ToUpper(strings.TrimSpace(status))) {
	case StateLive:
		return StateLive
	case StateScheduled:
		return StateScheduled
	default:
		return StateDraft
	}
}

// MinLead is how far in the future a scheduled post must be.
const MinLead = time.Minute

var intervalPattern = regexp.MustCompile(`^\s*(\d+)\s*(?:시간|h|$)`)

// ParseInterval reads the hour count at the start of strings like "3시간마다".
// A bare number means hours; any other unit ("30m") is rejected.
func ParseInterval(s string) (time.Duration, error) {
	m := intervalPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.Wrapf(ErrInvalidInterval, "%q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, errors.Wrapf(ErrInvalidInterval, "%q", s)
	}
	return time.Duration(n) * time.Hour, nil
}

// Indexer submits LIVE URLs.
type Indexer interface {
	Submit(ctx context.Context, url string) error
}

// Outcome is the result of one successful publish.
type Outcome struct {
	Keyword    string            `json:"keyword"`
	Title      string            `json:"title"`
	State      State             `json:"state"`
	Post       *platform.Post    `json:"post"`
	PublishAt  *time.Time        `json:"publish_at,omitempty"`
	IndexState ledger.IndexState `json:"index_state"`
	LedgerID   int64             `json:"ledger_id,omitempty"`
}

// Scheduler is owned by one batch run and is not safe for concurrent use.
type Scheduler struct {
	adapter platform.Adapter
	cfg     config.Schedule
	indexer Indexer
	ledger  ledger.Ledger
	now     func() time.Time

	cursor models.ScheduleCursor
}

type Option func(*Scheduler)

// WithIndexer enables indexing of LIVE posts.
func WithIndexer(i Indexer) Option { return func(s *Scheduler) { s.indexer = i } }

func WithLedger(l ledger.Ledger) Option { return func(s *Scheduler) { s.ledger = l } }

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

func NewScheduler(adapter platform.Adapter, cfg config.Schedule, opts ...Option) *Scheduler {
	s := &Scheduler{adapter: adapter, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login authenticates the adapter. Failures are returned unchanged so
// callers can tell authentication problems apart.
func (s *Scheduler) Login(ctx context.Context) error {
	return s.adapter.Login(ctx)
}

// Cursor returns a copy of the schedule cursor.
func (s *Scheduler) Cursor() models.ScheduleCursor {
	if s.cursor.NextAvailable == nil {
		return models.ScheduleCursor{}
	}
	t := *s.cursor.NextAvailable
	return models.ScheduleCursor{NextAvailable: &t}
}

// nextSlot returns the publish time for the next post, or nil to publish
// immediately.
func (s *Scheduler) nextSlot(log *logrus.Entry) *time.Time {
	if !s.cfg.Enabled {
		return nil
	}
	if !s.adapter.Capabilities().Schedule {
		log.Debug("platform cannot schedule, publishing immediately")
		return nil
	}
	interval, err := ParseInterval(s.cfg.Interval)
	if err != nil {
		log.WithError(err).Warn("scheduling disabled for this post")
		return nil
	}

	now := s.now().UTC()
	base := now
	if c := s.cursor.NextAvailable; c != nil && c.After(now) {
		base = *c
	}
	at := base.Add(interval)
	if floor := now.Add(MinLead); at.Before(floor) {
		at = floor
	}
	at = at.Truncate(time.Second).UTC()
	return &at
}

// Publish runs MovePage, CreatePost and FinishWriting for req. The cursor
// only advances after a successful scheduled publish.
func (s *Scheduler) Publish(ctx context.Context, req models.PublishRequest) (*Outcome, error) {
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"platform": s.adapter.Name(),
		"title":    req.Title,
	})

	if at := s.nextSlot(log); at != nil {
		req.Draft = false
		req.PublishAt = at
	} else {
		req.PublishAt = nil
	}

	if err := s.adapter.MovePage(ctx); err != nil {
		return nil, errors.Wrapf(ErrPublishFailed, "move page: %v", err)
	}
	post, err := s.adapter.CreatePost(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(ErrPublishFailed, "create post: %v", err)
	}
	if err := s.adapter.FinishWriting(ctx, post); err != nil {
		return nil, errors.Wrapf(ErrPublishFailed, "finish writing: %v", err)
	}

	if req.PublishAt != nil {
		t := *req.PublishAt
		s.cursor.NextAvailable = &t
	}

	out := &Outcome{
		Keyword:    req.Keyword,
		Title:      req.Title,
		State:      ParseState(post.Status),
		Post:       post,
		PublishAt:  req.PublishAt,
		IndexState: ledger.IndexNone,
	}
	log = log.WithFields(logrus.Fields{"state": out.State, "url": post.URL})
	if out.PublishAt != nil {
		log = log.WithField("publish_at", out.PublishAt.Format(time.RFC3339))
	}
	log.Info("post published")

	s.record(ctx, log, req, out)
	s.index(ctx, log, out)
	return out, nil
}

func (s *Scheduler) record(ctx context.Context, log *logrus.Entry, req models.PublishRequest, out *Outcome) {
	if s.ledger == nil {
		return
	}
	id, err := s.ledger.Record(ctx, ledger.Entry{
		RunID:      logging.RunID(ctx),
		Platform:   s.adapter.Name(),
		TargetID:   req.TargetID,
		Keyword:    req.Keyword,
		Title:      req.Title,
		PostID:     out.Post.ID,
		Status:     string(out.State),
		URL:        out.Post.URL,
		PublishAt:  out.PublishAt,
		IndexState: ledger.IndexNone,
	})
	if err != nil {
		log.WithError(err).Warn("ledger record failed")
		return
	}
	out.LedgerID = id
}

func (s *Scheduler) index(ctx context.Context, log *logrus.Entry, out *Outcome) {
	if out.State != StateLive || s.indexer == nil || out.Post.URL == "" {
		return
	}
	url := strings.Replace(out.Post.URL, "http://", "https://", 1)

	err := s.indexer.Submit(ctx, url)
	switch {
	case err == nil:
		out.IndexState = ledger.IndexIndexed
	case errors.Is(err, indexing.ErrQuotaExceeded):
		out.IndexState = ledger.IndexPending
		log.WithError(err).Warn("indexing quota reached, queued for retry")
	default:
		log.WithError(err).Warn("indexing failed")
		return
	}

	if s.ledger == nil || out.LedgerID == 0 {
		return
	}
	if out.IndexState == ledger.IndexPending {
		err = s.ledger.MarkPending(ctx, out.LedgerID)
	} else {
		err = s.ledger.MarkIndexed(ctx, out.LedgerID)
	}
	if err != nil {
		log.WithError(err).Warn("ledger update failed")
	}
}
