package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/chat/:partnerId/:partnerType", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/forbidden", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "no")
	})

	for _, path := range []string{"/api/chat/a/Doctor", "/api/chat/b/Patient", "/forbidden"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	ok := m.HTTPRequests.WithLabelValues(http.MethodGet, "/api/chat/:partnerId/:partnerType", "200")
	require.Equal(t, float64(2), testutil.ToFloat64(ok))
	denied := m.HTTPRequests.WithLabelValues(http.MethodGet, "/forbidden", "403")
	require.Equal(t, float64(1), testutil.ToFloat64(denied))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.Connections.Inc()
	m.Events.WithLabelValues("send_message", "ok").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "carebridge_ws_connections 1"), body)
	require.Contains(t, body, `carebridge_ws_events_total{event="send_message",outcome="ok"} 1`)
	require.Contains(t, body, "go_goroutines")
}
