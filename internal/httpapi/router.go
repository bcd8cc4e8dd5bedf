// Package httpapi serves the test catalogue, one-shot assessments and
// per-screen forms over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Skufu/neurorisk/internal/assessment"
	"github.com/Skufu/neurorisk/internal/catalog"
	"github.com/Skufu/neurorisk/internal/db"
	"github.com/Skufu/neurorisk/internal/metrics"
	"github.com/Skufu/neurorisk/internal/session"
)

// Deps are the collaborators the router needs. DB, Metrics and
// MetricsHandler may be nil.
type Deps struct {
	Catalog        *catalog.Catalog
	Engine         *assessment.Engine
	Sessions       *session.Store
	DB             db.HealthChecker
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         zerolog.Logger
	CORSOrigins    []string
	MaxBodyBytes   int64
}

type handler struct {
	catalog  *catalog.Catalog
	engine   *assessment.Engine
	sessions *session.Store
	db       db.HealthChecker
	logger   zerolog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	origins := make([]string, 0, len(d.CORSOrigins))
	for _, o := range d.CORSOrigins {
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(d.Logger),
	)
	if d.Metrics != nil {
		router.Use(observeRequests(d.Metrics))
	}
	router.Use(
		limitBodySize(d.MaxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	h := &handler{
		catalog:  d.Catalog,
		engine:   d.Engine,
		sessions: d.Sessions,
		db:       d.DB,
		logger:   d.Logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", h.readyz)
	if d.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}

	api := router.Group("/api")
	api.GET("/tests", h.listTests)
	api.GET("/tests/:test", h.getTest)
	api.POST("/tests/:test/assessments", h.assess)

	forms := api.Group("/forms")
	forms.POST("", h.createForm)
	forms.GET("/:id", h.getForm)
	forms.PUT("/:id/fields/:key", h.changeField)
	forms.POST("/:id/submit", h.submitForm)
	forms.POST("/:id/reset", h.resetForm)
	forms.DELETE("/:id", h.deleteForm)

	return router
}
