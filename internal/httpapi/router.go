// Package httpapi exposes the contract lifecycle over HTTP with gin.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/gezibash/arc-contract/internal/lifecycle"
	"github.com/gezibash/arc-contract/internal/middleware"
	"github.com/gezibash/arc-contract/internal/observability"
)

// Options configures the router.
type Options struct {
	ServiceName    string
	Metrics        *observability.Metrics
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	CORSOrigins    []string
}

// Handler serves the contract routes.
type Handler struct {
	m *lifecycle.Manager
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(m *lifecycle.Manager, opts Options) *gin.Engine {
	if opts.ServiceName == "" {
		opts.ServiceName = "arc-contract"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	var otelOpts []otelgin.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(opts.TracerProvider))
	}
	r.Use(otelgin.Middleware(opts.ServiceName, otelOpts...))
	r.Use(middleware.AttachTraceContext())
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.CORS(opts.CORSOrigins))

	h := &Handler{m: m}

	r.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/rules", h.listRules)

	ct := r.Group("/contracts")
	{
		ct.GET("/all", h.listContracts)
		ct.DELETE("/all", h.purgeContracts)
		ct.GET("/for/:did", h.listContractsFor)
		ct.POST("", h.createContract)
		ct.GET("/:id", h.getContract)
		ct.GET("/odrl/:id", h.getODRL)
		ct.PUT("/:id", h.updateContract)
		ct.DELETE("/:id", h.deleteContract)

		ct.PUT("/sign/:id", h.signContract)
		ct.DELETE("/sign/revoke/:id/:did", h.revokeSignature)
		ct.POST("/check-exploitability/:id", h.checkExploitability)

		ct.POST("/policy/:id", h.injectPolicy)
		ct.POST("/policies/:id", h.injectFlat)
		ct.POST("/policies/roles/:id", h.injectRolePolicies)
		ct.POST("/policies/offering/:id", h.injectOfferingPolicies)
		ct.DELETE("/policies/offering/:id", h.clearOfferingPolicies)
		ct.GET("/policies/offering/:id", h.getOfferingPolicies)
		ct.DELETE("/offerings/:offering", h.removeOffering)

		ct.GET("/:id/processings", h.listProcessings)
		ct.POST("/:id/processings", h.insertProcessings)
		ct.DELETE("/:id/processings", h.deleteProcessing)
		ct.GET("/:id/processings/participant", h.processingsFor)
		ct.PUT("/:id/processings/update/:catalogId", h.updateProcessing)
		ct.PUT("/:id/processings/deactivate/:recordId", h.deactivateProcessing)
	}
	return r
}
