package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func status(t *testing.T, h http.Handler, method, path string) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w.Code, w.Body.String()
}

func TestNewAPI_Version(t *testing.T) {
	assert.Equal(t, "/api/v1", NewAPI("").BasePath())
	assert.Equal(t, "/api/v2", NewAPI("v2").BasePath())
}

func TestAPI_Install(t *testing.T) {
	engine := gin.New()
	orders := NewResourceGroup("/service-orders").
		GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) }).
		POST("/:id/complete", func(c *gin.Context) { c.String(http.StatusOK, "done") })
	integrations := NewResourceGroup("/integrations/ets").
		Handle(http.MethodPost, "/sync", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	api := NewAPI("v1").Mount(orders, integrations).Install(engine)
	assert.Equal(t, "/api/v1", api.BasePath())

	code, body := status(t, engine, http.MethodGet, "/api/v1/service-orders/abc")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "abc", body)

	code, body = status(t, engine, http.MethodPost, "/api/v1/service-orders/abc/complete")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "done", body)

	code, _ = status(t, engine, http.MethodPost, "/api/v1/integrations/ets/sync")
	assert.Equal(t, http.StatusAccepted, code)

	code, _ = status(t, engine, http.MethodGet, "/service-orders/abc")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_MiddlewareIsScoped(t *testing.T) {
	engine := gin.New()
	engine.GET("/outside", func(c *gin.Context) { c.Status(http.StatusOK) })

	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) }
	NewAPI("v1", deny).
		Mount(NewResourceGroup("/service-orders").GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })).
		Install(engine)

	code, _ := status(t, engine, http.MethodGet, "/api/v1/service-orders/x")
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = status(t, engine, http.MethodGet, "/outside")
	assert.Equal(t, http.StatusOK, code)
}

func TestResourceGroup_MiddlewareOrder(t *testing.T) {
	var hits []string
	group := NewResourceGroup("/integrations/ets", func(c *gin.Context) {
		hits = append(hits, "group")
		c.Next()
	}).POST("/sync", func(c *gin.Context) {
		hits = append(hits, "handler")
		c.Status(http.StatusAccepted)
	})
	require.Len(t, group.routes, 1)
	assert.Equal(t, "/integrations/ets", group.Prefix())

	engine := gin.New()
	NewAPI("", func(c *gin.Context) {
		hits = append(hits, "api")
		c.Next()
	}).Mount(group).Install(engine)

	code, _ := status(t, engine, http.MethodPost, "/api/v1/integrations/ets/sync")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, []string{"api", "group", "handler"}, hits)
}
