// Package gemini adapts the Google Gen AI SDK to ports.LanguageModel.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/pkg/telemetry"
)

const service = "gemini"

// Options configures a Client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string // empty for the public endpoint
	Timeout time.Duration
}

// Client implements ports.LanguageModel against the Gemini API.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	tracer  trace.Tracer
}

// New creates a Gemini client. An empty API key is a configuration error.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, domain.ErrNotConfigured
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(opts.BaseURL, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		client:  client,
		model:   opts.Model,
		timeout: opts.Timeout,
		tracer:  otel.Tracer(telemetry.TracerGemini),
	}, nil
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string { return c.model }

// Generate sends the conversation and returns the model's text answer.
// Failures are reported as *domain.UpstreamError carrying the HTTP status
// when the API returned one.
func (c *Client) Generate(ctx context.Context, turns []domain.Turn) (string, error) {
	ctx, span := c.tracer.Start(ctx, "gemini.generate_content",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.request.model", c.model),
			attribute.Int("gen_ai.request.turns", len(turns)),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		upstream := toUpstream(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, upstream.Error())
		if upstream.Status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", upstream.Status))
		}
		return "", upstream
	}

	return resp.Text(), nil
}

func toUpstream(err error) *domain.UpstreamError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Status
		}
		return &domain.UpstreamError{Service: service, Status: apiErr.Code, Err: errors.New(msg)}
	}
	return &domain.UpstreamError{Service: service, Err: err}
}
