package http

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		path, pattern string
		want          bool
	}{
		{"/api/gemini/predict", "/api/gemini/predict", true},
		{"/api/gemini/predict/", "/api/gemini/predict", true},
		{"/v1/sessions/abc", "/v1/sessions/:id", true},
		{"/v1/sessions/abc/chat", "/v1/sessions/:id", false},
		{"/v1/sessions/", "/v1/sessions/:id", false},
		{"/api/chat", "/api/gemini/predict", false},
	}
	for _, tc := range cases {
		if got := matchPattern(tc.path, tc.pattern); got != tc.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tc.path, tc.pattern, got, tc.want)
		}
	}
}

func TestETagMatches(t *testing.T) {
	etag := `W/"abc123"`
	cases := []struct {
		header string
		want   bool
	}{
		{"", false},
		{`W/"abc123"`, true},
		{`"abc123"`, true},
		{`"zzz", W/"abc123"`, true},
		{`"zzz"`, false},
		{"*", true},
	}
	for _, tc := range cases {
		if got := etagMatches(tc.header, etag); got != tc.want {
			t.Errorf("etagMatches(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestNoStore(t *testing.T) {
	for _, p := range []string{"/v1/sessions", "/v1/sessions/x/chat", "/v1/predictions", "/v1/analyses", "/v1/dashboard", "/api/chat"} {
		if !noStore(p) {
			t.Errorf("expected %s to be no-store", p)
		}
	}
	for _, p := range []string{"/v1/layers", "/v1/geocode", "/v1/health"} {
		if noStore(p) {
			t.Errorf("expected %s to be cacheable", p)
		}
	}
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestVerifier(t *testing.T) {
	v := NewVerifier("secret", "groundwatch")
	exp := time.Now().Add(time.Hour).Unix()

	sub, err := v.Verify(sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
		"sub": "analyst", "iss": "groundwatch", "exp": exp,
	}))
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if sub != "analyst" {
		t.Errorf("expected subject analyst, got %q", sub)
	}

	rejected := map[string]string{
		"wrong issuer": sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "a", "iss": "other", "exp": exp}),
		"no expiry":    sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "a", "iss": "groundwatch"}),
		"expired":      sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "a", "iss": "groundwatch", "exp": time.Now().Add(-time.Hour).Unix()}),
		"wrong key":    sign(t, jwt.SigningMethodHS256, []byte("nope"), jwt.MapClaims{"sub": "a", "iss": "groundwatch", "exp": exp}),
		"wrong method": sign(t, jwt.SigningMethodHS512, []byte("secret"), jwt.MapClaims{"sub": "a", "iss": "groundwatch", "exp": exp}),
		"garbage":      "not-a-token",
	}
	for name, tok := range rejected {
		if _, err := v.Verify(tok); err == nil {
			t.Errorf("%s: expected rejection", name)
		}
	}
}
