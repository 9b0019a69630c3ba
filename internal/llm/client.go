// Package llm is a streaming client for Ollama-compatible model servers.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"project0/internal/middleware"
	"project0/internal/observability"

	"github.com/ollama/ollama/api"
)

// Upstream endpoints.
const (
	EndpointChat     = "chat"
	EndpointGenerate = "generate"
)

// ErrEmptyModel is returned when a request names no model.
var ErrEmptyModel = errors.New("llm: model is required")

// errDone stops the upstream reader once the done marker has been relayed.
var errDone = errors.New("llm: stream done")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are sampling parameters forwarded to the server.
type Options struct {
	Temperature float64
	TopP        float64
	NumCtx      int
}

func (o *Options) toMap() map[string]any {
	if o == nil {
		return nil
	}
	m := map[string]any{}
	if o.Temperature != 0 {
		m["temperature"] = o.Temperature
	}
	if o.TopP != 0 {
		m["top_p"] = o.TopP
	}
	if o.NumCtx != 0 {
		m["num_ctx"] = o.NumCtx
	}
	return m
}

// ChatRequest describes a streamed /api/chat call.
type ChatRequest struct {
	Model    string
	Messages []Message
	Options  *Options
}

// GenerateRequest describes a streamed /api/generate call. Format is passed
// through as a JSON string such as "json".
type GenerateRequest struct {
	Model   string
	Prompt  string
	Format  string
	Options *Options
}

// Streamer produces model output incrementally. The chunk channel is closed
// when the stream ends; the error channel then yields at most one error.
type Streamer interface {
	StreamChat(ctx context.Context, req ChatRequest) (<-chan string, <-chan error)
	StreamGenerate(ctx context.Context, req GenerateRequest) (<-chan string, <-chan error)
	Ping(ctx context.Context) error
}

// bearerTransport adds an API key to every upstream request.
type bearerTransport struct {
	key  string
	base http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.key)
	return t.base.RoundTrip(req)
}

// Client talks to an Ollama HTTP endpoint.
type Client struct {
	api     *api.Client
	initErr error
}

// NewClient builds a client. timeout bounds a whole streamed response.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return &Client{initErr: fmt.Errorf("llm: invalid base url: %w", err)}
	}

	httpClient := &http.Client{Timeout: timeout}
	if apiKey != "" {
		httpClient.Transport = &bearerTransport{key: apiKey, base: http.DefaultTransport}
	}
	return &Client{api: api.NewClient(base, httpClient)}
}

// StreamChat posts to /api/chat and relays message contents.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (<-chan string, <-chan error) {
	msgs := make([]api.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = api.Message{Role: m.Role, Content: m.Content}
	}
	streaming := true
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   &streaming,
		Options:  req.Options.toMap(),
	}

	return c.stream(ctx, EndpointChat, req.Model, func(ctx context.Context, emit func(string, bool) error) error {
		return c.api.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			return emit(resp.Message.Content, resp.Done)
		})
	})
}

// StreamGenerate posts to /api/generate and relays response fragments.
func (c *Client) StreamGenerate(ctx context.Context, req GenerateRequest) (<-chan string, <-chan error) {
	streaming := true
	genReq := &api.GenerateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Stream:  &streaming,
		Options: req.Options.toMap(),
	}
	if req.Format != "" {
		format, err := json.Marshal(req.Format)
		if err == nil {
			genReq.Format = format
		}
	}

	return c.stream(ctx, EndpointGenerate, req.Model, func(ctx context.Context, emit func(string, bool) error) error {
		return c.api.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
			return emit(resp.Response, resp.Done)
		})
	})
}

// Ping checks that the server answers /api/tags.
func (c *Client) Ping(ctx context.Context) error {
	if c.initErr != nil {
		return c.initErr
	}
	if _, err := c.api.List(ctx); err != nil {
		return fmt.Errorf("llm ping: %w", err)
	}
	return nil
}

type streamCall func(ctx context.Context, emit func(text string, done bool) error) error

func (c *Client) stream(ctx context.Context, endpoint, model string, call streamCall) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		span, ctx := observability.StartLLMSpan(ctx, endpoint, model)
		defer span.End()
		finish := observability.TrackLLMStream(endpoint)

		chunks, err := c.relay(ctx, endpoint, model, call, out)
		outcome := observability.OutcomeOK
		switch {
		case err != nil && ctx.Err() != nil:
			outcome = observability.OutcomeCanceled
			err = ctx.Err()
		case err != nil:
			outcome = observability.OutcomeError
		}
		finish(outcome)

		log := middleware.Logger.With(
			slog.String("endpoint", endpoint),
			slog.String("model", model),
			slog.Int("chunks", chunks),
		)
		if err != nil {
			span.SetError(err)
			log.WarnContext(ctx, "llm stream failed", slog.String("outcome", outcome), slog.String("error", err.Error()))
			errs <- err
			return
		}
		log.DebugContext(ctx, "llm stream finished")
	}()

	return out, errs
}

func (c *Client) relay(ctx context.Context, endpoint, model string, call streamCall, out chan<- string) (int, error) {
	if c.initErr != nil {
		return 0, c.initErr
	}
	if model == "" {
		return 0, ErrEmptyModel
	}

	chunks := 0
	err := call(ctx, func(text string, done bool) error {
		if text != "" {
			select {
			case out <- text:
				chunks++
				observability.LLMStreamChunks.WithLabelValues(endpoint).Inc()
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if done {
			return errDone
		}
		return nil
	})
	if err == nil || errors.Is(err, errDone) {
		// A body that ends without a done marker is treated as complete.
		return chunks, nil
	}

	var status api.StatusError
	if errors.As(err, &status) {
		return chunks, fmt.Errorf("%s request: status %d: %s", endpoint, status.StatusCode, status.ErrorMessage)
	}
	return chunks, fmt.Errorf("%s stream: %w", endpoint, err)
}

// Collect drains a stream into a single string. It returns the text gathered
// so far together with the first error.
func Collect(chunks <-chan string, errs <-chan error) (string, error) {
	var sb strings.Builder
	for chunk := range chunks {
		sb.WriteString(chunk)
	}
	if err := <-errs; err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}
