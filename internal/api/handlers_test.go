// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consensus/internal/cache"
	"github.com/tomtom215/consensus/internal/models"
	"github.com/tomtom215/consensus/internal/ratelimit"
)

// fakeResolver rates every item whose ID is in known and records what it
// was asked.
type fakeResolver struct {
	mu    sync.Mutex
	known map[string]float64
	calls [][]models.MediaItem
}

func (f *fakeResolver) Resolve(_ context.Context, items []models.MediaItem) map[string]*models.ConsolidatedRating {
	f.mu.Lock()
	f.calls = append(f.calls, items)
	f.mu.Unlock()

	out := make(map[string]*models.ConsolidatedRating)
	for _, it := range items {
		if v, ok := f.known[it.ID]; ok {
			out[it.ID] = &models.ConsolidatedRating{ItemID: it.ID, Rating: v, SourceCount: 1, Color: models.ColorGreat}
		}
	}
	return out
}

func (f *fakeResolver) lastCall() []models.MediaItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

type pingerFunc func(ctx context.Context) error

func (p pingerFunc) Ping(ctx context.Context) error { return p(ctx) }

// envelope mirrors models.APIResponse with a raw data field.
type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func newTestRouter(t *testing.T, res Resolver, cfg *ChiMiddlewareConfig, opts ...func(*HandlerConfig)) http.Handler {
	t.Helper()
	hc := HandlerConfig{Resolver: res, Version: "test", MaxItems: 5}
	for _, o := range opts {
		o(&hc)
	}
	if cfg == nil {
		cfg = &ChiMiddlewareConfig{}
	}
	return NewRouter(NewHandler(hc), cfg).SetupChi()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, env
}

func TestParseItemParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		wantID  string
		want    models.MediaType
		season  int
		episode int
		wantErr bool
	}{
		{raw: "tt0111161:movie", wantID: "tt0111161", want: models.MediaTypeMovie},
		{raw: "tt0903747:series", wantID: "tt0903747", want: models.MediaTypeSeries},
		{raw: "tt0903747:tv", wantID: "tt0903747", want: models.MediaTypeSeries},
		{raw: "tt0944947:1:1", wantID: "tt0944947:1:1", want: models.MediaTypeEpisode, season: 1, episode: 1},
		{raw: "tt0944947:3:9:episode", wantID: "tt0944947:3:9", want: models.MediaTypeEpisode, season: 3, episode: 9},
		{raw: "mal:5114:series", wantID: "mal:5114", want: models.MediaTypeSeries},
		{raw: " tt1:movie ", wantID: "tt1", want: models.MediaTypeMovie},
		{raw: "tt0111161", wantErr: true},
		{raw: "tt0111161:", wantErr: true},
		{raw: ":movie", wantErr: true},
		{raw: "tt0111161:podcast", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := parseItemParam(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedItem) {
					t.Fatalf("err = %v, want ErrMalformedItem", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != tt.wantID || got.Type != tt.want {
				t.Errorf("got %s/%s, want %s/%s", got.ID, got.Type, tt.wantID, tt.want)
			}
			if got.Season != tt.season || got.Episode != tt.episode {
				t.Errorf("season/episode = %d/%d, want %d/%d", got.Season, got.Episode, tt.season, tt.episode)
			}
		})
	}
}

func TestGetRatings(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{known: map[string]float64{"tt0111161": 9.1, "mal:5114": 8.8}}
	h := newTestRouter(t, res, nil)

	rec, env := do(t, h, http.MethodGet, "/api/v1/ratings?item=tt0111161:movie&item=tt9999999:movie&item=mal:5114:series", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.Status != "success" {
		t.Errorf("status field = %q", env.Status)
	}
	if env.Metadata.Requested != 3 || env.Metadata.Resolved != 2 {
		t.Errorf("metadata = %+v, want requested 3 resolved 2", env.Metadata)
	}

	var data map[string]models.ConsolidatedRating
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["tt0111161"].Rating != 9.1 {
		t.Errorf("tt0111161 rating = %v, want 9.1", data["tt0111161"].Rating)
	}
	if _, ok := data["tt9999999"]; ok {
		t.Error("unknown item should be absent, not an error")
	}
	if _, ok := data["mal:5114"]; !ok {
		t.Error("foreign id should be keyed by the id the caller sent")
	}
}

func TestGetRatings_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
	}{
		{"no items", "/api/v1/ratings"},
		{"malformed item", "/api/v1/ratings?item=tt0111161"},
		{"unknown type", "/api/v1/ratings?item=tt0111161:podcast"},
		{"too many items", "/api/v1/ratings?item=tt1:movie&item=tt2:movie&item=tt3:movie&item=tt4:movie&item=tt5:movie&item=tt6:movie"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := &fakeResolver{}
			h := newTestRouter(t, res, nil)

			rec, env := do(t, h, http.MethodGet, tt.target, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
			}
			if res.lastCall() != nil {
				t.Error("resolver must not be called for an invalid request")
			}
		})
	}
}

func TestPostRatings(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{known: map[string]float64{"tt0386676": 9.0}}
	h := newTestRouter(t, res, nil)

	body := `{"items":[{"id":"tt0386676","type":"series","title":"The Office","year":2005},{"id":"tt0944947:1:1","type":"episode"}]}`
	rec, env := do(t, h, http.MethodPost, "/api/v1/ratings", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.Metadata.Resolved != 1 {
		t.Errorf("resolved = %d, want 1", env.Metadata.Resolved)
	}

	items := res.lastCall()
	if len(items) != 2 {
		t.Fatalf("resolver got %d items", len(items))
	}
	if items[0].Title != "The Office" || items[0].Year != 2005 {
		t.Errorf("title/year not passed through: %+v", items[0])
	}
	if items[1].Season != 1 || items[1].Episode != 1 {
		t.Errorf("episode id not normalized: %+v", items[1])
	}
}

func TestPostRatings_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"invalid json", `{"items":`, http.StatusBadRequest},
		{"empty list", `{"items":[]}`, http.StatusBadRequest},
		{"missing type", `{"items":[{"id":"tt1"}]}`, http.StatusBadRequest},
		{"bad year", `{"items":[{"id":"tt1","type":"movie","year":1500}]}`, http.StatusBadRequest},
		{"too large", `{"items":[{"id":"` + strings.Repeat("x", maxBodyBytes) + `","type":"movie"}]}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newTestRouter(t, &fakeResolver{}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/ratings", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestGetRating(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{known: map[string]float64{"tt0386676": 9.0}}
	h := newTestRouter(t, res, nil)

	rec, env := do(t, h, http.MethodGet, "/api/v1/ratings/tt0386676?type=series&title=The+Office&year=2005", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var rating models.ConsolidatedRating
	if err := json.Unmarshal(env.Data, &rating); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rating.Rating != 9.0 {
		t.Errorf("rating = %v, want 9.0", rating.Rating)
	}
	if got := res.lastCall()[0]; got.Title != "The Office" || got.Year != 2005 {
		t.Errorf("resolver item = %+v", got)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/ratings/tt0000001?type=movie", "")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("unknown item: status %d error %+v", rec.Code, env.Error)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/ratings/tt0000001", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing type: status %d, want 400", rec.Code)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/ratings/tt0944947:1:1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("episode id without type: status %d, want 404 from resolver", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	lim := ratelimit.New(ratelimit.Config{MaxConcurrent: 1})
	lim.Register("tmdb", ratelimit.Config{MaxConcurrent: 4})
	store := cache.NewStore(nil, nil, cache.Options{})

	tests := []struct {
		name       string
		mirror     Pinger
		wantStatus string
		wantMirror bool
	}{
		{"mirror up", pingerFunc(func(context.Context) error { return nil }), "healthy", true},
		{"mirror down", pingerFunc(func(context.Context) error { return errors.New("database is locked") }), "degraded", false},
		{"mirror disabled", nil, "healthy", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newTestRouter(t, &fakeResolver{}, nil, func(c *HandlerConfig) {
				c.Mirror = tt.mirror
				c.Store = store
				c.Limiter = lim
			})

			rec, env := do(t, h, http.MethodGet, "/health", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var health models.HealthStatus
			if err := json.Unmarshal(env.Data, &health); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if health.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", health.Status, tt.wantStatus)
			}
			if health.MirrorConnected != tt.wantMirror {
				t.Errorf("mirror connected = %v, want %v", health.MirrorConnected, tt.wantMirror)
			}
			if health.Version != "test" {
				t.Errorf("version = %q", health.Version)
			}
			if _, ok := health.RateLimits["tmdb"]; !ok {
				t.Errorf("rate limits missing tmdb: %+v", health.RateLimits)
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("security headers missing")
			}
		})
	}
}

func TestRouter_MetricsAndFallbacks(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeResolver{}, nil)

	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "consensus_") {
		t.Errorf("metrics: status %d", rec.Code)
	}

	rec, env := do(t, h, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("unknown route: status %d error %+v", rec.Code, env.Error)
	}

	rec, env = do(t, h, http.MethodDelete, "/api/v1/ratings", "")
	if rec.Code != http.StatusMethodNotAllowed || env.Error == nil {
		t.Errorf("wrong method: status %d error %+v", rec.Code, env.Error)
	}

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("every response should carry X-Request-ID")
	}
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeResolver{}, &ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Hour})

	for i := 0; i < 2; i++ {
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/ratings?item=tt1:movie", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}

	rec, env := do(t, h, http.MethodGet, "/api/v1/ratings?item=tt1:movie", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d, want 429", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "RATE_LIMITED" {
		t.Errorf("error = %+v", env.Error)
	}

	if rec, _ := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health is not rate limited, got %d", rec.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeResolver{}, &ChiMiddlewareConfig{CORSAllowedOrigins: []string{"https://app.example"}})

	tests := []struct {
		origin string
		want   string
	}{
		{"https://app.example", "https://app.example"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/ratings", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: Access-Control-Allow-Origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}
