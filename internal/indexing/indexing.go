// Package indexing notifies the Google Indexing API about published URLs.
package indexing

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/ledger"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/lukman83/autopost/internal/stealth"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	indexingapi "google.golang.org/api/indexing/v3"
	"google.golang.org/api/option"
)

var (
	ErrInvalidURL    = errors.New("url must be absolute https")
	ErrQuotaExceeded = errors.New("indexing quota exceeded")
	ErrForbidden     = errors.New("indexing forbidden for this property")
)

const notificationType = "URL_UPDATED"

// Submitter is anything that can submit a single URL.
type Submitter interface {
	Submit(ctx context.Context, url string) error
}

type Indexer struct {
	svc   *indexingapi.Service
	delay *stealth.HumanDelay
}

// New authenticates with the service account file. Extra client options are
// appended after the credentials.
func New(ctx context.Context, cfg config.Indexing, opts ...option.ClientOption) (*Indexer, error) {
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(indexingapi.IndexingScope),
		}
	}
	svc, err := indexingapi.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrapf(config.ErrInvalidConfig, "indexing service: %v", err)
	}
	return NewWithService(svc, stealth.NewRange(1500*time.Millisecond, 3*time.Second, nil)), nil
}

func NewWithService(svc *indexingapi.Service, delay *stealth.HumanDelay) *Indexer {
	return &Indexer{svc: svc, delay: delay}
}

func validate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return errors.Wrapf(ErrInvalidURL, "%q", raw)
	}
	return nil
}

func (i *Indexer) Submit(ctx context.Context, raw string) error {
	if err := validate(raw); err != nil {
		return err
	}
	_, err := i.svc.UrlNotifications.Publish(&indexingapi.UrlNotification{
		Url:  raw,
		Type: notificationType,
	}).Context(ctx).Do()
	if err == nil {
		logging.FromContext(ctx).WithField("url", raw).Info("url submitted for indexing")
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return errors.Wrap(ErrQuotaExceeded, apiErr.Message)
		case http.StatusForbidden:
			return errors.Wrap(ErrForbidden, apiErr.Message)
		}
	}
	return errors.Wrapf(err, "submit %s", raw)
}

// Summary counts the results of a multi-URL submission.
type Summary struct {
	Submitted int      `json:"submitted"`
	Failed    int      `json:"failed"`
	Skipped   []string `json:"skipped,omitempty"`
}

// SubmitAll submits urls in order with a pause between calls. It stops at
// the first quota error and returns it; remaining URLs are listed as skipped.
func (i *Indexer) SubmitAll(ctx context.Context, urls []string) (Summary, error) {
	log := logging.FromContext(ctx)
	var sum Summary
	for n, u := range urls {
		if n > 0 {
			if err := i.delay.Wait(ctx); err != nil {
				return sum, err
			}
		}
		err := i.Submit(ctx, u)
		switch {
		case err == nil:
			sum.Submitted++
		case errors.Is(err, ErrQuotaExceeded):
			sum.Failed++
			sum.Skipped = append(sum.Skipped, urls[n+1:]...)
			return sum, err
		default:
			sum.Failed++
			log.WithError(err).WithField("url", u).Warn("indexing failed")
		}
	}
	log.WithFields(logrus.Fields{"submitted": sum.Submitted, "failed": sum.Failed}).Info("indexing finished")
	return sum, nil
}

// RetryPending resubmits up to n pending ledger entries. Entries are marked
// indexed on success; a quota error stops the pass and leaves the rest
// pending.
func RetryPending(ctx context.Context, sub Submitter, l ledger.Ledger, n int) (Summary, error) {
	log := logging.FromContext(ctx)
	entries, err := l.Pending(ctx, n)
	if err != nil {
		return Summary{}, errors.Wrap(err, "load pending entries")
	}

	var sum Summary
	for k, e := range entries {
		err := sub.Submit(ctx, e.URL)
		switch {
		case err == nil:
			sum.Submitted++
			if err := l.MarkIndexed(ctx, e.ID); err != nil {
				log.WithError(err).WithField("entry", e.ID).Warn("could not mark entry indexed")
			}
		case errors.Is(err, ErrQuotaExceeded):
			for _, rest := range entries[k:] {
				sum.Skipped = append(sum.Skipped, rest.URL)
			}
			return sum, err
		default:
			sum.Failed++
			log.WithError(err).WithField("url", e.URL).Warn("retry failed")
		}
	}
	return sum, nil
}
