package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/assessment-reports/internal/api/handler"
)

// ServiceName is reported by /health and used as the metrics service name.
const ServiceName = "report-api-service"

// SetupRouter configures and returns the Gin router with all routes.
// metricsHandler may be nil, in which case /metrics is not mounted.
func SetupRouter(deps *handler.Dependencies, metricsHandler http.Handler) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(MetricsMiddleware(deps.Metrics))
	r.Use(CORSMiddleware())

	r.GET("/health", healthHandler(deps.HealthChecks))

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		reports := v1.Group("/reports")
		{
			// POST /api/v1/reports - Submit an assessment for report generation
			reports.POST("", jobHandler.SubmitReport)

			// GET /api/v1/reports?job_id= - Poll a job
			reports.GET("", jobHandler.PollReport)

			// GET /api/v1/reports/:job_id - Poll a job by path
			reports.GET("/:job_id", jobHandler.GetReport)
		}
	}

	return r
}

// healthHandler answers 503 as soon as one dependency is down, listing
// every check so the failing one is visible.
func healthHandler(checks []handler.HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		results := make(gin.H, len(checks))
		for _, hc := range checks {
			if err := hc.Check(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				results[hc.Name] = err.Error()
				continue
			}
			results[hc.Name] = "ok"
		}

		body := gin.H{
			"status":  "healthy",
			"service": ServiceName,
			"checks":  results,
		}
		if status != http.StatusOK {
			body["status"] = "unhealthy"
		}
		c.JSON(status, body)
	}
}
