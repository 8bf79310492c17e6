package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/orchestra/ai/routing"
	"github.com/hrygo/orchestra/dispatch"
	"github.com/hrygo/orchestra/internal/profile"
	apiv1 "github.com/hrygo/orchestra/server/router/api/v1"
	"github.com/hrygo/orchestra/server/router/frontend"
	"github.com/hrygo/orchestra/spell"
)

type fakeBackend struct {
	submits   atomic.Int32
	shutdowns atomic.Int32
}

func (f *fakeBackend) Submit(context.Context, dispatch.Input, bool) (string, error) {
	f.submits.Add(1)
	return "job", nil
}

func (f *fakeBackend) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	return nil
}

func newTestServer(t *testing.T, p *profile.Profile) (*Server, *fakeBackend) {
	t.Helper()
	catalog := spell.Default()
	backend := &fakeBackend{}
	api := apiv1.NewAPIV1Service(p, catalog, routing.NewParser(routing.NewCatalogMatcher(catalog), nil), backend, false)
	s, err := NewServer(context.Background(), p, Deps{
		API:            api,
		Frontend:       frontend.NewFrontendService(p, catalog),
		Backend:        backend,
		MetricsHandler: promhttp.Handler(),
	})
	require.NoError(t, err)
	return s, backend
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestNewServer_RequiresAPI(t *testing.T) {
	_, err := NewServer(context.Background(), &profile.Profile{}, Deps{})
	assert.Error(t, err)
}

func TestServer_Routes(t *testing.T) {
	s, backend := newTestServer(t, &profile.Profile{Mode: "prod", Version: "0.3.0"})

	rec := serve(s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))

	rec = serve(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodPost, "/api/v1/workout", `{"workout_type":"gym"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, backend.submits.Load())

	rec = serve(s, http.MethodPost, "/api/v1/workout", `{"workout_type":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	s, _ := newTestServer(t, &profile.Profile{RateLimit: 0.001, RateBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(s, http.MethodGet, "/api/v1/health", "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s, backend := newTestServer(t, &profile.Profile{Addr: "127.0.0.1", Port: 0})
	require.NoError(t, s.Start(context.Background()))

	addr := s.Echo().Listener.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/v1/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	s.Shutdown(context.Background())
	assert.EqualValues(t, 1, backend.shutdowns.Load())
}

func TestRateLimiter_Evict(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 1)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	rl.evict(time.Now().Add(time.Second))
	assert.True(t, rl.Allow("10.0.0.1"))
}
