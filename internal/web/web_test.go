package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwaggerServer_New(t *testing.T) {
	assert.True(t, NewSwaggerServer(true).enabled)
	assert.False(t, NewSwaggerServer(false).enabled)
}

func TestSwaggerServer_ServesDocument(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewSwaggerServer(true).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Swagger string                    `json:"swagger"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc.Swagger)

	for _, path := range []string{
		"/clusters",
		"/clusters/popular",
		"/cache/status",
		"/cache/refresh",
		"/cache/safety-check",
	} {
		assert.Contains(t, doc.Paths, path)
	}
	assert.Contains(t, doc.Paths["/cache/refresh"], "post")
}

func TestSwaggerServer_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewSwaggerServer(false).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
