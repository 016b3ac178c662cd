// Package llm talks to an OpenAI-compatible chat completion API (DeepSeek by
// default) and classifies its failures.
package llm

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ShixuDing/32933-project-match/internal/interfaces"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

var logger = loggo.GetLogger("projmatch.clients.llm")

const (
	ErrNotConfigured  = errors.ConstError("completion service is not configured")
	ErrAuthentication = errors.ConstError("completion service rejected the credentials")
	ErrConnection     = errors.ConstError("completion service unreachable")
	ErrRateLimited    = errors.ConstError("completion service rate limit reached")
	ErrMalformedJSON  = errors.ConstError("completion service returned malformed output")
	ErrUpstream       = errors.ConstError("completion service call failed")
)

const (
	temperature = 0.3
	maxTokens   = 1500
	topP        = 0.9
)

type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
}

type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

// New builds a client. With an empty API key the client is returned anyway
// and every call fails with ErrNotConfigured.
func New(cfg Config) *Client {
	c := &Client{
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), cfg.RequestsPerMinute)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		logger.Warningf("no API key set, AI analysis and ranking are disabled")
		return c
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: c.timeout}
	c.api = openai.NewClientWithConfig(oc)
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.api != nil
}

func (c *Client) Complete(ctx context.Context, messages []interfaces.ChatMessage, expectJSON bool) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return "", errors.Annotate(ErrRateLimited, "local request budget exhausted")
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        topP,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if expectJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		classified := classify(err)
		logger.Warningf("chat completion failed after %s: %v", time.Since(start), err)
		return "", classified
	}
	logger.Debugf("chat completion took %s, %d tokens", time.Since(start), resp.Usage.TotalTokens)

	if len(resp.Choices) == 0 {
		return "", errors.Annotate(ErrMalformedJSON, "no choices")
	}
	content := resp.Choices[0].Message.Content
	if expectJSON {
		content = StripCodeFence(content)
	}
	if strings.TrimSpace(content) == "" {
		return "", errors.Annotate(ErrMalformedJSON, "empty content")
	}
	return content, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return byStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return byStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}

	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr),
		errors.As(err, &urlErr):
		return errors.Annotate(ErrConnection, err.Error())
	}
	return errors.Annotate(ErrUpstream, err.Error())
}

func byStatus(status int, msg string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Annotatef(ErrAuthentication, "status %d: %s", status, msg)
	case http.StatusTooManyRequests:
		return errors.Annotatef(ErrRateLimited, "status %d: %s", status, msg)
	default:
		return errors.Annotatef(ErrUpstream, "status %d: %s", status, msg)
	}
}

// StripCodeFence removes one optional ``` or ```json wrapper.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
