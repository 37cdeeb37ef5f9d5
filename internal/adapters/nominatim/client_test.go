package nominatim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/samirrijal/groundwatch/internal/core/domain"
)

func TestSearch_ParsesStringCoordinates(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.UserAgent()
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"15.3694","lon":"44.1910","display_name":"Sana'a, Yemen"}]`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL + "/", UserAgent: "groundwatch-test"})
	results, err := c.Search(context.Background(), "Sana'a")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 15.3694, results[0].Location.Lat, 1e-9)
	assert.InDelta(t, 44.1910, results[0].Location.Lon, 1e-9)
	assert.Equal(t, "Sana'a, Yemen", results[0].DisplayName)
	assert.Equal(t, "Sana'a", gotQuery)
	assert.Equal(t, "groundwatch-test", gotAgent)
}

func TestSearch_NoMatchIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	results, err := New(Options{BaseURL: srv.URL}).Search(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_SkipsUnparseableEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"x","lon":"1"},{"lat":"1.5","lon":"2.5"}]`))
	}))
	defer srv.Close()

	results, err := New(Options{BaseURL: srv.URL, Limit: 2}).Search(context.Background(), "somewhere")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.GeoPoint{Lat: 1.5, Lon: 2.5}, results[0].Location)
}

func TestSearch_Non2xxIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).Search(context.Background(), "Ibb")
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusServiceUnavailable, upstream.Status)
	assert.Equal(t, "nominatim", upstream.Service)
}

func TestSearch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{BaseURL: srv.URL, Timeout: time.Second}).Search(ctx, "Ibb")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_CancelledWhileInFlightDiscardsAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`[{"lat":"1","lon":"2","display_name":"late"}]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	results, err := New(Options{BaseURL: srv.URL, Timeout: time.Second}).Search(ctx, "Ibb")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestSearch_PropagatesSearchSpan(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		_, _ = w.Write([]byte(`[{"lat":"15.3694","lon":"44.191","display_name":"Sana'a"}]`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	c.tracer = tp.Tracer("test")

	ctx, parent := tp.Tracer("test").Start(context.Background(), "lookup")
	_, err := c.Search(ctx, "Sana'a")
	parent.End()
	require.NoError(t, err)

	var search sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "nominatim.search" {
			search = s
		}
	}
	require.NotNil(t, search)
	assert.Equal(t, parent.SpanContext().SpanID(), search.Parent().SpanID())
	assert.Contains(t, search.Attributes(), attribute.Int("http.response.status_code", 200))
	assert.Contains(t, search.Attributes(), attribute.Int("geocode.results", 1))

	// The upstream sees the search span, not its parent.
	sc := search.SpanContext()
	assert.Equal(t, "00-"+sc.TraceID().String()+"-"+sc.SpanID().String()+"-01", traceparent)
}
