package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck/config"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/store"
)

func testSettings() config.Settings {
	s := config.DefaultSettings()
	s.Store.Driver = "memory"
	return s
}

func TestWire_Memory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := wire(context.Background(), testSettings(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.close(logger) })

	assert.IsType(t, &store.MemoryStore{}, a.backend)
	assert.NotNil(t, a.deps.Dispatcher)
	assert.NotNil(t, a.deps.Limits)
	assert.NotNil(t, a.deps.Bus)
	assert.Nil(t, a.deps.Chat)
	assert.Nil(t, a.redis)
}

func TestWire_SQLiteAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := testSettings()
	s.Store.Driver = "sqlite"
	s.Store.SQLitePath = filepath.Join(t.TempDir(), "flowdeck.db")
	s.Redis.URL = "redis://" + mr.Addr()
	s.OpenAI.APIKey = "sk-test"

	a, err := wire(context.Background(), s, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.close(logger) })

	assert.IsType(t, &store.SQLiteStore{}, a.backend)
	assert.NotNil(t, a.redis)
	assert.NotNil(t, a.deps.Chat)
}

func TestWire_BadRedis(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := testSettings()
	s.Redis.URL = "not a url"

	_, err := wire(context.Background(), s, logger)
	require.Error(t, err)
}

func TestWire_StdoutTelemetry(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := testSettings()
	s.Observability.Tracing = true
	s.Observability.Exporter = "stdout"

	original := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	a, err := wire(context.Background(), s, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.close(logger) })

	require.NotNil(t, a.providers)
	assert.NotNil(t, a.providers.Tracer)
	assert.Nil(t, a.providers.Meter)
}
