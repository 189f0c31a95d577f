package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ml-server/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		ServerPort:    "0",
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "ml_db",
		RedisHost:     "localhost",
		RedisPort:     6379,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	a, err := newApp(cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNewApp_FromEnvironment(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("MONGO_DATABASE", "")
	t.Setenv("REDIS_DB", "")

	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	a := newTestApp(t, cfg)

	require.NotNil(t, a.Router())
	require.NotNil(t, a.Mongo())
	require.NotNil(t, a.Cache())
	assert.Equal(t, "ml_db", a.Mongo().Database().Name())
	assert.Equal(t, "localhost:6379", a.Cache().Client().Options().Addr)
}

func TestNewApp_HandlesAreDistinct(t *testing.T) {
	a := newTestApp(t, testConfig())

	handles := []any{a.Router(), a.Mongo(), a.Mongo().Client(), a.Cache(), a.Cache().Client()}
	for i, h := range handles {
		require.NotNil(t, h)
		for j := i + 1; j < len(handles); j++ {
			assert.NotSame(t, h, handles[j])
		}
	}
}

func TestNewApp_MongoURIUnset(t *testing.T) {
	prev, ok := os.LookupEnv("MONGO_URI")
	require.NoError(t, os.Unsetenv("MONGO_URI"))
	t.Cleanup(func() {
		if ok {
			_ = os.Setenv("MONGO_URI", prev)
		}
	})
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")

	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, cfg.MongoURI)

	a := newTestApp(t, cfg)
	require.NotNil(t, a.Mongo())
	require.NotNil(t, a.Cache())
}

func TestNewApp_HandlesAreIndependent(t *testing.T) {
	a := newTestApp(t, testConfig())
	b := newTestApp(t, testConfig())

	assert.NotSame(t, a.Mongo(), b.Mongo())
	assert.NotSame(t, a.Mongo().Client(), b.Mongo().Client())
	assert.NotSame(t, a.Cache(), b.Cache())
	assert.NotSame(t, a.Cache().Client(), b.Cache().Client())
	assert.NotSame(t, a.Router(), b.Router())
}

func TestNewApp_InvalidMongoURI(t *testing.T) {
	cfg := testConfig()
	cfg.MongoURI = "localhost:27017"

	a, err := newApp(cfg, io.Discard)
	require.Error(t, err)
	assert.Nil(t, a)
}

func TestNewApp_LogsInitialization(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	cfg.LogFormat = "json"

	a, err := newApp(cfg, &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Application initialized", entry["msg"])
	assert.Equal(t, "localhost:6379", entry["redis_addr"])
}

func TestRouter_Healthz(t *testing.T) {
	a := newTestApp(t, testConfig())

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Cache-Control"))
}

func TestRouter_CompressesWhenAccepted(t *testing.T) {
	a := newTestApp(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	plain := httptest.NewRecorder()
	a.Router().ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, plain.Header().Get("Content-Encoding"))
	assert.True(t, json.Valid(plain.Body.Bytes()))
}

func TestRouter_ReadyzUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.MongoURI = "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=100"
	a := newTestApp(t, cfg)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "mongo")
}

func TestRouter_AcceptsRoutes(t *testing.T) {
	a := newTestApp(t, testConfig())
	a.Router().Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestClose(t *testing.T) {
	a, err := newApp(testConfig(), io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a.Close(ctx))
	assert.Error(t, a.Cache().Ping(ctx))
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level     string
		wantLevel slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := NewLogger(io.Discard, tt.level, "text")
			ctx := context.Background()
			assert.True(t, l.Enabled(ctx, tt.wantLevel))
			if tt.wantLevel > slog.LevelDebug {
				assert.False(t, l.Enabled(ctx, tt.wantLevel-1))
			}
		})
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "info", "JSON").Info("hello", "k", "v")
	assert.True(t, json.Valid(buf.Bytes()))

	buf.Reset()
	NewLogger(&buf, "info", "text").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}
