package server

import (
	"github.com/labstack/echo/v4"

	"github.com/open-statutes/trellis/internal/server/middleware"
	"github.com/open-statutes/trellis/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Node routes. Node identities contain path separators and travel as
	// query parameters.
	apiRoutes.GET("/nodes", routes.GetNodeHandler, middleware.RequirePermission("corpus.read"))
	apiRoutes.GET("/nodes/children", routes.GetChildrenHandler, middleware.RequirePermission("corpus.read"))
	apiRoutes.GET("/nodes/path", routes.GetRootPathHandler, middleware.RequirePermission("corpus.read"))
	apiRoutes.GET("/nodes/subtree", routes.GetSubtreeHandler, middleware.RequirePermission("corpus.read"))

	// Corpus routes
	apiRoutes.GET("/corpora/:country/:jurisdiction/:corpus/stats", routes.GetStatsHandler, middleware.RequirePermission("corpus.read"))
	apiRoutes.POST("/corpora/:country/:jurisdiction/:corpus/ingest", routes.IngestNodesHandler, middleware.RequirePermission("corpus.write"))
	apiRoutes.POST("/corpora/:country/:jurisdiction/:corpus/validate", routes.ValidateCorpusHandler, middleware.RequirePermission("corpus.validate"))
	apiRoutes.GET("/corpora/:country/:jurisdiction/:corpus/reports", routes.ListReportsHandler, middleware.RequirePermission("corpus.read"))
	apiRoutes.GET("/corpora/:country/:jurisdiction/:corpus/reports/:correlation_id", routes.GetReportHandler, middleware.RequirePermission("corpus.read"))
	apiRoutes.POST("/corpora/:country/:jurisdiction/:corpus/similar", routes.SimilarContentHandler, middleware.RequirePermission("corpus.read"))
	apiRoutes.DELETE("/corpora/:country/:jurisdiction/:corpus", routes.CleanCorpusHandler, middleware.RequirePermission("corpus.admin"))
}
