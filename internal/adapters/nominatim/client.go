// Package nominatim resolves place names through a Nominatim-compatible
// search endpoint.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/pkg/telemetry"
)

const service = "nominatim"

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Limit     int
}

// Client implements ports.Geocoder.
type Client struct {
	http    *fasthttp.Client
	base    string
	agent   string
	timeout time.Duration
	limit   int
	tracer  trace.Tracer
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Limit <= 0 {
		opts.Limit = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "groundwatch/1.0"
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                     opts.UserAgent,
			ReadTimeout:              opts.Timeout,
			WriteTimeout:             opts.Timeout,
			MaxIdleConnDuration:      time.Minute,
			NoDefaultUserAgentHeader: true,
		},
		base:    strings.TrimRight(opts.BaseURL, "/"),
		agent:   opts.UserAgent,
		timeout: opts.Timeout,
		limit:   opts.Limit,
		tracer:  otel.Tracer(telemetry.TracerGeocoder),
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Search looks query up and returns the matches in upstream order.
// No match is an empty slice, not an error.
func (c *Client) Search(ctx context.Context, query string) ([]domain.GeocodeResult, error) {
	ctx, span := c.tracer.Start(ctx, "nominatim.search",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("geocode.query_length", len(query))),
	)
	defer span.End()

	results, status, err := c.search(ctx, query)
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("geocode.results", len(results)))
	return results, nil
}

func (c *Client) search(ctx context.Context, query string) ([]domain.GeocodeResult, int, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(c.limit))

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + "/search?" + params.Encode())
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(c.agent)
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{&req.Header})

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) && ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &domain.UpstreamError{Service: service, Err: err}
	}
	// The request may have outlived a cancelled caller; the answer is stale.
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return nil, status, &domain.UpstreamError{
			Service: service,
			Status:  status,
			Err:     fmt.Errorf("HTTP %d", status),
		}
	}

	var places []place
	if err := json.Unmarshal(resp.Body(), &places); err != nil {
		return nil, status, &domain.UpstreamError{Service: service, Status: status, Err: fmt.Errorf("decode: %w", err)}
	}

	results := make([]domain.GeocodeResult, 0, len(places))
	for _, p := range places {
		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			continue
		}
		results = append(results, domain.GeocodeResult{
			Location:    domain.GeoPoint{Lat: lat, Lon: lon},
			DisplayName: p.DisplayName,
		})
	}
	return results, status, nil
}

// headerCarrier lets the otel propagator write trace headers onto a fasthttp
// request.
type headerCarrier struct{ h *fasthttp.RequestHeader }

var _ propagation.TextMapCarrier = headerCarrier{}

func (c headerCarrier) Get(key string) string { return string(c.h.Peek(key)) }

func (c headerCarrier) Set(key, value string) { c.h.Set(key, value) }

func (c headerCarrier) Keys() []string {
	var keys []string
	c.h.VisitAll(func(k, _ []byte) { keys = append(keys, string(k)) })
	return keys
}
