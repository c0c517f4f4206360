package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "/api/v1", r.BasePath())

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	var apiMiddlewareRuns int
	r.Use(func(c *gin.Context) {
		apiMiddlewareRuns++
		c.Next()
	})

	sequences := NewDomainGroup("sequence", "/sequences")
	sequences.GET("", func(c *gin.Context) { c.String(http.StatusOK, "list") })
	sequences.POST("/allocate", func(c *gin.Context) { c.String(http.StatusCreated, "allocated") })
	r.Register(sequences).Setup()

	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, http.MethodGet, "/api/v1/sequences")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "list", w.Body.String())

	w = serve(engine, http.MethodPost, "/api/v1/sequences/allocate")
	assert.Equal(t, http.StatusCreated, w.Code)

	serve(engine, http.MethodGet, "/health")
	assert.Equal(t, 2, apiMiddlewareRuns)
}

func TestDomainGroup_MiddlewareAndSubgroups(t *testing.T) {
	engine := gin.New()

	var order []string
	mark := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) {
			order = append(order, name)
			c.Next()
		}
	}

	companies := NewDomainGroup("company", "/companies").Use(mark("group"))
	numbering := companies.Group("numbering", "/:id/numbering").Use(mark("subgroup"))
	numbering.PUT("", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	companies.RegisterRoutes(engine.Group("/api/v1"))

	w := serve(engine, http.MethodPut, "/api/v1/companies/abc/numbering")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, []string{"group", "subgroup"}, order)

	assert.Equal(t, "company", companies.Name())
	assert.Equal(t, "/companies", companies.Prefix())
}

func TestDomainGroup_Routes(t *testing.T) {
	g := NewDomainGroup("sequence", "/sequences")
	g.GET("", nil).GET("/:id", nil).POST("/:id/activate", nil)
	g.Group("admin", "/admin").PUT("/pattern", nil)

	assert.Equal(t, []Route{
		{Method: http.MethodGet, Path: "/sequences"},
		{Method: http.MethodGet, Path: "/sequences/:id"},
		{Method: http.MethodPost, Path: "/sequences/:id/activate"},
		{Method: http.MethodPut, Path: "/sequences/admin/pattern"},
	}, g.Routes())
}
