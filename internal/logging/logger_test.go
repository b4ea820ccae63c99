// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	l := WithComponent("cache")
	l.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"cache"`) {
		t.Errorf("missing component field: %s", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("missing message: %s", out)
	}
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithBatchID(ctx, "b1")

	Ctx(ctx).Info().Msg("resolved")

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"batch_id":"b1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}

	if RequestIDFromContext(context.Background()) != "" {
		t.Error("expected empty request id")
	}
	if id := NewBatchID(); len(id) != 8 {
		t.Errorf("NewBatchID length = %d", len(id))
	}
}

func TestUpstreamLogger(t *testing.T) {
	var buf bytes.Buffer
	u := NewUpstreamLoggerWithLogger(NewTestLogger(&buf).With().Str("source", "rt").Logger())
	ctx := ContextWithBatchID(context.Background(), "b2")

	u.LogTransient(ctx, "tt1", errors.New("boom"))
	u.LogParseFailed(ctx, "tt1", "https://example.test/tv/x")
	u.LogRateLimited(ctx, "tt1", 2*time.Second)

	out := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"error":"boom"`,
		`"message":"scrape page had no parsable score"`,
		`"retry_after":2000`,
		`"batch_id":"b2"`,
		`"source":"rt"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(NewTestLogger(&buf)))

	logger.WithGroup("svc").With("layer", "api").Warn("restarting", "attempt", 2, "err", errors.New("x"))

	out := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"svc.layer":"api"`,
		`"svc.attempt":2`,
		`"svc.err":"x"`,
		`"message":"restarting"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	t.Parallel()

	h := NewSlogHandler(zerolog.New(nil).Level(zerolog.WarnLevel))
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}
