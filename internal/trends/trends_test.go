package trends

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/browser/browsertest"
	"github.com/lukman83/autopost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bestPage = `<html><body><div><ul>
<li><span><strong>1</strong><strong> 선풍기 </strong></span></li>
<li><span><strong>2</strong><strong>제습기</strong></span></li>
<li><span><strong>3</strong><strong></strong></span></li>
<li><span><strong>4</strong><strong>선풍기</strong></span></li>
</ul></div></body></html>`

const datalabPage = `<html><body>
<div class="rank_scroll"><a class="title">지난주</a></div>
<div class="rank_scroll">
  <a class="title">캠핑의자</a>
  <a class="title"> 텐트 </a>
  <a class="title"></a>
</div></body></html>`

func TestParseBest(t *testing.T) {
	names, err := ParseBest(bestPage)
	require.NoError(t, err)
	assert.Equal(t, []string{"선풍기", "제습기", "선풍기"}, names)
}

func TestParseDatalab(t *testing.T) {
	names, err := ParseDatalab(datalabPage)
	require.NoError(t, err)
	assert.Equal(t, []string{"캠핑의자", "텐트"}, names)
}

func TestManual_DedupesAndTrims(t *testing.T) {
	m := NewManual([]string{" 텐트", "텐트", "", "의자"})
	items, err := m.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"텐트", "의자"}, Names(items))
	assert.Equal(t, models.TrendManual, items[0].Source)

	_, err = NewManual(nil).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoTrends)
}

func TestNaver_DatalabCategory(t *testing.T) {
	fake := browsertest.New()
	fake.RouteJSON("select_list", true)
	fake.Document = datalabPage

	n := NewNaver(nil, fake, "스포츠/레저")
	n.settle = time.Millisecond
	items, err := n.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"캠핑의자", "텐트"}, Names(items))
	assert.Equal(t, []string{datalabURL}, fake.Navigations)
	assert.Equal(t, 1, fake.Calls("스포츠/레저"))
}

func TestNaver_UnknownCategory(t *testing.T) {
	fake := browsertest.New()
	fake.RouteJSON("select_list", false)

	n := NewNaver(nil, fake, "없는분류")
	_, err := n.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoTrends)
}

func TestFeed_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>KR</title>
<item><title>올림픽</title></item><item><title>태풍</title></item><item><title>올림픽</title></item>
</channel></rss>`))
	}))
	defer srv.Close()

	f := NewFeed(srv.Client(), srv.URL, 10)
	items, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"올림픽", "태풍"}, Names(items))
	assert.Equal(t, models.TrendFeed, f.Kind())
}

func TestNew(t *testing.T) {
	s, err := New(config.Trends{Source: "manual", Keywords: []string{"a"}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TrendManual, s.Kind())

	_, err = New(config.Trends{Source: "feed"}, nil, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = New(config.Trends{Source: "bogus"}, nil, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
