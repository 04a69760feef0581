package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

const helloSource = `
	exports.activate = function(api) {
		api.ui.registerView('sidebar', function() {
			return React.createElement('p', null, 'hello from acme');
		});
	};
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Extensions.Root = t.TempDir()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.RateLimit.Enabled = false
	cfg.Install.Confirm = config.ConfirmAuto
	return cfg
}

func writeExtension(t *testing.T, root, id, source string) {
	t.Helper()
	dir := filepath.Join(root, "extensions", id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := `{"id":"` + id + `","name":"` + id + `","version":"1.0.0","main":"main.js"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extension.json"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte(source), 0o644))
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithMetrics(monitoring.NewMetricsWith(prometheus.NewRegistry()))}, opts...)
	s, err := New(cfg, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func request(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, types.Result) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var res types.Result
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &res))
	}
	return w, res
}

func TestNewCreatesLayout(t *testing.T) {
	cfg := testConfig(t)
	newTestServer(t, cfg, WithoutWatcher())

	for _, dir := range []string{"extensions", "storage", "staging", "inbox"} {
		info, err := os.Stat(filepath.Join(cfg.Extensions.Root, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestExtensionLifecycleOverHTTP(t *testing.T) {
	cfg := testConfig(t)
	writeExtension(t, cfg.Extensions.Root, "acme.hello", helloSource)
	s := newTestServer(t, cfg, WithoutWatcher())

	w, res := request(t, s, http.MethodPost, "/extensions/refresh", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, res.Success)
	assert.True(t, s.Runtime().IsActive("acme.hello"))

	w, _ = request(t, s, http.MethodGet, "/slots/sidebar/render", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello from acme")

	w, res = request(t, s, http.MethodPost, "/extensions/acme.hello/toggle", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, res.Success)
	assert.False(t, s.Runtime().IsActive("acme.hello"))
	assert.Empty(t, s.Runtime().GetViews("sidebar"))

	// The flag survives a restart of the runtime
	s.Close()
	s2 := newTestServer(t, cfg, WithoutWatcher())
	require.NoError(t, s2.Runtime().Refresh(context.Background()))
	assert.False(t, s2.Runtime().IsActive("acme.hello"))

	w, _ = request(t, s2, http.MethodDelete, "/extensions/acme.hello", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, err := os.Stat(filepath.Join(cfg.Extensions.Root, "extensions", "acme.hello"))
	assert.True(t, os.IsNotExist(err))
}

func TestBrokenExtensionDoesNotFailRefresh(t *testing.T) {
	cfg := testConfig(t)
	writeExtension(t, cfg.Extensions.Root, "acme.good", helloSource)
	writeExtension(t, cfg.Extensions.Root, "acme.bad", `exports.activate = function() { throw new Error('nope'); };`)
	writeExtension(t, cfg.Extensions.Root, "acme.syntax", `exports.activate = function( {`)
	s := newTestServer(t, cfg, WithoutWatcher())

	require.NoError(t, s.Runtime().Refresh(context.Background()))
	assert.True(t, s.Runtime().IsActive("acme.good"))

	st, ok := s.Runtime().Status("acme.syntax")
	require.True(t, ok)
	assert.Equal(t, types.StateFailed, st.State)

	w, _ := request(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHostOperationsRegistered(t *testing.T) {
	s := newTestServer(t, testConfig(t), WithoutWatcher())

	w, res := request(t, s, http.MethodGet, "/operations", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, res.Success)

	data, err := sonic.Marshal(res.Data)
	require.NoError(t, err)
	for _, op := range []string{"system.info", "system.time", "system.log", "launcher.list", "settings.get"} {
		assert.Contains(t, string(data), `"`+op+`"`)
	}

	w, res = request(t, s, http.MethodPost, "/operations/system.ping", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.Success)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(t), WithoutWatcher())

	w, _ := request(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	writeExtension(t, cfg.Extensions.Root, "acme.hello", helloSource)
	s := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return s.Runtime().IsActive("acme.hello")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.False(t, s.Runtime().IsActive("acme.hello"))
}
