package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dsprobe/internal/probe"
	"dsprobe/internal/server/service"
	"dsprobe/internal/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusClientClosedRequest is the nginx convention for requests
// canceled by the client before the handler finished.
const statusClientClosedRequest = 499

// Diagnostics is satisfied by *service.Service
type Diagnostics interface {
	TestFamily(ctx context.Context, family probe.Family) (*service.FamilyReport, error)
	TestDualstack(ctx context.Context) (*service.DualstackReport, error)
	Health() service.HealthStatus
}

// API represents the HTTP handlers of the diagnostic service
type API struct {
	svc    Diagnostics
	logger *zap.Logger
}

// NewAPI creates new API
func NewAPI(svc Diagnostics, logger *zap.Logger) *API {
	return &API{
		svc:    svc,
		logger: logger,
	}
}

// RegisterRoutes registers API routes
func (api *API) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", api.health)
	r.GET("/version", api.version)

	tc := r.Group("/test-connections")
	{
		tc.GET("/ipv4", api.testFamily(probe.FamilyIPv4, "ipv4Address"))
		tc.GET("/ipv6", api.testFamily(probe.FamilyIPv6, "ipv6Address"))
		tc.GET("/dualstack", api.testDualstack)
	}
}

// health handles health check requests. It reports only the serving
// process itself and never consults the resolver or prober.
func (api *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, api.svc.Health())
}

// version handles build information requests
func (api *API) version(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetInfo())
}

// testFamily builds the handler for a single-family connectivity test.
// addressKey names the address field in the response, ipv4Address or
// ipv6Address.
func (api *API) testFamily(family probe.Family, addressKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		report, err := api.svc.TestFamily(ctx, family)
		if err != nil {
			api.resolutionError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"timestamp":  report.Timestamp,
			addressKey:   report.Address,
			"testResult": report.Result,
		})
	}
}

// testDualstack handles dual-stack connectivity tests
func (api *API) testDualstack(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	report, err := api.svc.TestDualstack(ctx)
	if err != nil {
		api.resolutionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp": report.Timestamp,
		"addresses": report.Addresses,
		"status":    report.Status,
		"testResults": gin.H{
			"ipv4": report.Results.IPv4,
			"ipv6": report.Results.IPv6,
		},
	})
}

// resolutionError reports a failed endpoint resolution. Unlike a probe
// failure, which is a normal 200 diagnostic result, no probe could even be
// attempted here, so the request itself fails.
func (api *API) resolutionError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		api.logger.Info("client canceled connectivity test",
			zap.String("request_id", c.GetString("request_id")))
		// 499: client closed the request before a response was written
		c.AbortWithStatus(statusClientClosedRequest)
		return
	}

	api.logger.Error("failed to resolve database endpoint",
		zap.Error(err),
		zap.String("request_id", c.GetString("request_id")))

	c.JSON(http.StatusInternalServerError, gin.H{
		"timestamp": time.Now().UTC(),
		"error":     err.Error(),
	})
}
