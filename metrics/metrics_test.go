package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	r.GET("/metrics", Handler())

	before := testutil.ToFloat64(httpRequests.WithLabelValues("/ping/:id", "GET", "418"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/7", nil))
	require.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("/ping/:id", "GET", "418")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chamran_http_requests_total")
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(cascadeSteps.WithLabelValues("prune_followings", OutcomeFailed))
	CascadeStep("prune_followings", OutcomeFailed)
	assert.Equal(t, before+1, testutil.ToFloat64(cascadeSteps.WithLabelValues("prune_followings", OutcomeFailed)))

	before = testutil.ToFloat64(followChanges.WithLabelValues("follow"))
	FollowChanged("follow")
	assert.Equal(t, before+1, testutil.ToFloat64(followChanges.WithLabelValues("follow")))
}
