// Package textgen asks an OpenAI-compatible chat completions endpoint for the
// optional decorations of a post: review summaries, descriptions, buying
// guides and titles.
package textgen

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/httputil"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("empty completion")

const (
	systemAssistant = "You are a helpful assistant."
	systemBlogger   = "You are a helpful blog specialist."

	promptSummary = "이 리뷰내용에서 중요한 부분만 추출하여 상품에 대한 분석을 리뷰어의 개인적이고 주관적인 정보(배송날짜, 구매의사등)는 제외하고 상품에 대한 정보만 이모지도 섞어서 200자 내로 리스트 형태로 새로 작성해줘. 리스트는 반드시! html <ul><li> 형태로 출력해줘. 너의 메세지는 제외하고 오로지 가공된 리스트만 출력해줘. : \n %s"
	promptGuide   = "이 상품에 대한 전문적인 상품 구매 가이드를 어떤 기준으로 구매해야 좋은 제품을 구매 할 수 있는지, 이모지도 섞어서 태그제외 200자 내외의 리스트 형태로 새로 작성해줘. 리스트는 html <ul><li> 형태로 출력해줘. 너의 메세지는 제외하고 오로지 가공된 리스트만 출력해줘. : \n %s"
	promptDescribe = "다음 상품 키워드를 활용해서 자연스럽고 설득력 있는 블로그 소개 멘트를 작성해줘. " +
		"상품에 대한 설명이나 기능, 특징을 추측하거나 소개하지 마. " +
		"단지 오늘 어떤 상품을 소개할지, 사람들이 많이 찾고 있다는 점, 지금 확인해보자는 안내 등으로 구성해줘. " +
		"마치 쇼핑 전문 블로거가 쓴 것처럼 친근하면서도 분위기 있게 써줘. " +
		"이모지도 적절히 활용하고, 500자 내외의 자연스러운 문장으로 구성해. " +
		"출력은 HTML 코드블록 형태로 태그를 포함해서 출력해줘. " +
		"태그 안에는 순수한 소개 문장만 들어가야 해. " +
		"출력 외의 설명은 하지 말고, 완성된 소개 멘트만 보여줘. " +
		"상품 키워드: %s"
	promptTitle = "다음 상품 키워드와 상품수를 이용해 상품을 소개하는 블로그 제목을 만들어줘. " +
		"제목은 매번 새로운 스타일로 작성하고, 예시처럼 반복하지 마. " +
		"매번 다양하게 현실적으로 사람들이 많이 검색 할 만한 문구를 사용해줘. 1개의 제목이면 되" +
		"(예: 트렌디한 상품명 탑5등) " +
		"길지 않고 눈에 띄는 문구로 구성해. " +
		"출력은 html 코드블록으로, 아무 태그도 포함하지 마. " +
		"설명 없이 제목만 출력해. " +
		"상품 키워드: %s 상품수: %d"
)

var fence = regexp.MustCompile("```html|```")

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client calls POST {BaseURL}/v1/chat/completions.
type Client struct {
	cfg  config.OpenAI
	http *http.Client
}

func New(cfg config.OpenAI, client *http.Client) *Client {
	if client == nil {
		client = httputil.NewHTTPClient(nil, cfg.Timeout)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &Client{cfg: cfg, http: client}
}

func (c *Client) Summarize(ctx context.Context, reviews string) (string, error) {
	return c.complete(ctx, systemAssistant, fmt.Sprintf(promptSummary, reviews))
}

func (c *Client) Guide(ctx context.Context, keyword string) (string, error) {
	return c.complete(ctx, systemAssistant, fmt.Sprintf(promptGuide, keyword))
}

func (c *Client) Describe(ctx context.Context, keyword string) (string, error) {
	return c.complete(ctx, systemBlogger, fmt.Sprintf(promptDescribe, keyword))
}

func (c *Client) Title(ctx context.Context, keyword string, nth int) (string, error) {
	return c.complete(ctx, systemBlogger, fmt.Sprintf(promptTitle, keyword, nth))
}

func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "encode chat request")
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build chat request")
	}
	httputil.Apply(req, httputil.JSONHeaders(c.cfg.APIKey))

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 1)
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	defer resp.Body.Close()

	raw, err := httputil.ReadBody(resp)
	var out chatResponse
	if jerr := json.Unmarshal(raw, &out); jerr == nil && out.Error != nil {
		return "", errors.Errorf("openai %s: %s", out.Error.Type, out.Error.Message)
	}
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(fence.ReplaceAllString(out.Choices[0].Message.Content, ""))
	logging.FromContext(ctx).WithField("chars", len([]rune(text))).Debug("completion received")
	return text, nil
}
