package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	r.GET("/chats/:chat_id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/chats/:chat_id", "200"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats/abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/chats/:chat_id", "200"))
	require.Equal(t, before+1, after)
}

func TestIncFanout(t *testing.T) {
	before := testutil.ToFloat64(fanoutEventsTotal.WithLabelValues("message.created", "dropped"))
	IncFanout("message.created", "dropped")
	require.Equal(t, before+1, testutil.ToFloat64(fanoutEventsTotal.WithLabelValues("message.created", "dropped")))
}

func TestSplitFullMethod(t *testing.T) {
	service, method := splitFullMethod("/grpc.health.v1.Health/Check")
	require.Equal(t, "grpc.health.v1.Health", service)
	require.Equal(t, "Check", method)

	service, method = splitFullMethod("bogus")
	require.Equal(t, "unknown", service)
	require.Equal(t, "unknown", method)
}

func TestIPFromRequestPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	require.Equal(t, "10.0.0.1", IPFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4000"
	require.Equal(t, "192.168.1.5", IPFromRequest(req))
}
