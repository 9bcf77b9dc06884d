package publish_test

import (
	"context"
	"testing"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/indexing"
	"github.com/lukman83/autopost/internal/ledger"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/platform"
	platformmocks "github.com/lukman83/autopost/internal/platform/mocks"
	"github.com/lukman83/autopost/internal/publish"
	publishmocks "github.com/lukman83/autopost/internal/publish/mocks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func scheduled(interval string) config.Schedule {
	return config.Schedule{Enabled: true, Interval: interval}
}

func expectPublish(a *platformmocks.MockAdapter, status, url string, check func(models.PublishRequest)) *gomock.Call {
	a.EXPECT().MovePage(gomock.Any()).Return(nil)
	call := a.EXPECT().CreatePost(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req models.PublishRequest) (*platform.Post, error) {
			if check != nil {
				check(req)
			}
			return &platform.Post{ID: "p", Status: status, URL: url}, nil
		})
	a.EXPECT().FinishWriting(gomock.Any(), gomock.Any()).Return(nil)
	return call
}

func newAdapter(ctrl *gomock.Controller, canSchedule bool) *platformmocks.MockAdapter {
	a := platformmocks.NewMockAdapter(ctrl)
	a.EXPECT().Name().Return("blogger").AnyTimes()
	a.EXPECT().Capabilities().Return(platform.Capabilities{Schedule: canSchedule}).AnyTimes()
	return a
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"3시간마다", 3 * time.Hour, false},
		{"  12시간마다", 12 * time.Hour, false},
		{"1", time.Hour, false},
		{"2h", 2 * time.Hour, false},
		{"30m", 0, true},
		{"5분마다", 0, true},
		{"0시간마다", 0, true},
		{"매시간", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := publish.ParseInterval(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, publish.ErrInvalidInterval, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseState(t *testing.T) {
	assert.Equal(t, publish.StateLive, publish.ParseState("live"))
	assert.Equal(t, publish.StateScheduled, publish.ParseState("Scheduled"))
	assert.Equal(t, publish.StateDraft, publish.ParseState("DRAFT"))
	assert.Equal(t, publish.StateDraft, publish.ParseState("pending-review"))
}

func TestPublish_ScheduleAdvancesCursor(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newAdapter(ctrl, true)
	s := publish.NewScheduler(a, scheduled("3시간마다"), publish.WithClock(func() time.Time { return t0 }))

	var got []time.Time
	record := func(req models.PublishRequest) {
		require.NotNil(t, req.PublishAt)
		assert.False(t, req.Draft)
		got = append(got, *req.PublishAt)
	}
	expectPublish(a, "SCHEDULED", "", record)
	expectPublish(a, "SCHEDULED", "", record)

	for i := 0; i < 2; i++ {
		out, err := s.Publish(context.Background(), models.PublishRequest{Title: "t"})
		require.NoError(t, err)
		assert.Equal(t, publish.StateScheduled, out.State)
	}

	assert.Equal(t, []time.Time{t0.Add(3 * time.Hour), t0.Add(6 * time.Hour)}, got)
	require.NotNil(t, s.Cursor().NextAvailable)
	assert.Equal(t, t0.Add(6*time.Hour), *s.Cursor().NextAvailable)
}

func TestPublish_FailureKeepsCursor(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newAdapter(ctrl, true)
	s := publish.NewScheduler(a, scheduled("3시간마다"), publish.WithClock(func() time.Time { return t0 }))

	a.EXPECT().MovePage(gomock.Any()).Return(nil)
	a.EXPECT().CreatePost(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

	_, err := s.Publish(context.Background(), models.PublishRequest{Title: "t"})
	assert.ErrorIs(t, err, publish.ErrPublishFailed)
	assert.Nil(t, s.Cursor().NextAvailable)

	var at time.Time
	expectPublish(a, "SCHEDULED", "", func(req models.PublishRequest) { at = *req.PublishAt })
	_, err = s.Publish(context.Background(), models.PublishRequest{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(3*time.Hour), at)
}

func TestPublish_StaleCursorUsesNow(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newAdapter(ctrl, true)
	now := t0
	s := publish.NewScheduler(a, scheduled("1시간마다"), publish.WithClock(func() time.Time { return now }))

	var got []time.Time
	record := func(req models.PublishRequest) { got = append(got, *req.PublishAt) }
	expectPublish(a, "SCHEDULED", "", record)
	expectPublish(a, "SCHEDULED", "", record)

	_, err := s.Publish(context.Background(), models.PublishRequest{})
	require.NoError(t, err)
	now = t0.Add(5*time.Hour + 500*time.Millisecond)
	_, err = s.Publish(context.Background(), models.PublishRequest{})
	require.NoError(t, err)

	assert.Equal(t, t0.Add(time.Hour), got[0])
	assert.Equal(t, t0.Add(6*time.Hour), got[1], "truncated to seconds from now, not cursor")
}

func TestPublish_ImmediateWhenDisabledOrInvalid(t *testing.T) {
	for name, cfg := range map[string]config.Schedule{
		"disabled": {Enabled: false, Interval: "3시간마다"},
		"invalid":  {Enabled: true, Interval: "매시간"},
	} {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			a := newAdapter(ctrl, true)
			s := publish.NewScheduler(a, cfg, publish.WithClock(func() time.Time { return t0 }))
			expectPublish(a, "LIVE", "", func(req models.PublishRequest) {
				assert.Nil(t, req.PublishAt)
				assert.False(t, req.Draft)
			})

			out, err := s.Publish(context.Background(), models.PublishRequest{PublishAt: &t0})
			require.NoError(t, err)
			assert.Equal(t, publish.StateLive, out.State)
			assert.Nil(t, s.Cursor().NextAvailable)
		})
	}
}

func TestPublish_ForcedDraftSurvivesWithoutScheduling(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newAdapter(ctrl, false)
	s := publish.NewScheduler(a, scheduled("3시간마다"))
	expectPublish(a, "draft", "", func(req models.PublishRequest) {
		assert.True(t, req.Draft)
		assert.Nil(t, req.PublishAt)
	})

	out, err := s.Publish(context.Background(), models.PublishRequest{Draft: true})
	require.NoError(t, err)
	assert.Equal(t, publish.StateDraft, out.State)
}

func TestPublish_IndexesLiveURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newAdapter(ctrl, true)
	idx := publishmocks.NewMockIndexer(ctrl)
	l := ledger.NewMemory()
	s := publish.NewScheduler(a, config.Schedule{}, publish.WithIndexer(idx), publish.WithLedger(l))

	expectPublish(a, "LIVE", "http://deals.blogspot.com/p.html", nil)
	idx.EXPECT().Submit(gomock.Any(), "https://deals.blogspot.com/p.html").Return(nil)

	out, err := s.Publish(context.Background(), models.PublishRequest{Title: "t", Keyword: "텐트"})
	require.NoError(t, err)
	assert.Equal(t, ledger.IndexIndexed, out.IndexState)

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.IndexIndexed, entries[0].IndexState)
	assert.Equal(t, "텐트", entries[0].Keyword)
	assert.Equal(t, "LIVE", entries[0].Status)
}

func TestPublish_QuotaMarksPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newAdapter(ctrl, true)
	idx := publishmocks.NewMockIndexer(ctrl)
	l := ledger.NewMemory()
	s := publish.NewScheduler(a, config.Schedule{}, publish.WithIndexer(idx), publish.WithLedger(l))

	expectPublish(a, "LIVE", "https://deals.blogspot.com/p.html", nil)
	idx.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(errors.Wrap(indexing.ErrQuotaExceeded, "daily"))

	out, err := s.Publish(context.Background(), models.PublishRequest{})
	require.NoError(t, err)
	assert.Equal(t, ledger.IndexPending, out.IndexState)

	pending, _ := l.Pending(context.Background(), 0)
	assert.Len(t, pending, 1)
}

func TestPublish_NoIndexingForDraftsOrOtherErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newAdapter(ctrl, true)
	idx := publishmocks.NewMockIndexer(ctrl)
	s := publish.NewScheduler(a, config.Schedule{}, publish.WithIndexer(idx))

	expectPublish(a, "DRAFT", "https://deals.blogspot.com/p.html", nil)
	out, err := s.Publish(context.Background(), models.PublishRequest{})
	require.NoError(t, err)
	assert.Equal(t, ledger.IndexNone, out.IndexState)

	expectPublish(a, "LIVE", "https://deals.blogspot.com/q.html", nil)
	idx.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(indexing.ErrForbidden)
	out, err = s.Publish(context.Background(), models.PublishRequest{})
	require.NoError(t, err)
	assert.Equal(t, ledger.IndexNone, out.IndexState)
}
