package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/open-statutes/trellis/internal/queue"
	"github.com/open-statutes/trellis/internal/storage"
	"github.com/open-statutes/trellis/pkg/logger"
	pgxstore "github.com/open-statutes/trellis/pkg/store/pgx"
	"github.com/open-statutes/trellis/pkg/validate"
)

// GetStatsHandler reports row counts for one corpus.
func GetStatsHandler(c echo.Context) error {
	corpus, err := corpusFromPath(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	nodeStore := pgxstore.NewNodeDBStorageWithConnection(appOf(c).DBConn)
	stats, err := nodeStore.Stats(c.Request().Context(), corpus)
	if err != nil {
		logger.Error("[Server][GetStats] Query failed", "corpus", corpus, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"corpus": corpus,
		"stats":  stats,
	})
}

// ListReportsHandler lists the archived validation reports of a corpus.
func ListReportsHandler(c echo.Context) error {
	corpus, err := corpusFromPath(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	app := appOf(c)
	if app.S3 == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Report archive not configured"})
	}

	prefix := queue.ReportPrefix(string(corpus))
	keys, err := storage.ListFilesWithPrefix(c.Request().Context(), app.S3, prefix)
	if err != nil {
		logger.Error("[Server][ListReports] Listing failed", "corpus", corpus, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"corpus":  corpus,
		"reports": keys,
	})
}

// GetReportHandler returns one archived validation report.
func GetReportHandler(c echo.Context) error {
	corpus, err := corpusFromPath(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	correlationID := c.Param("correlation_id")
	if correlationID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing correlation id"})
	}

	app := appOf(c)
	if app.S3 == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Report archive not configured"})
	}

	body, err := storage.GetFile(c.Request().Context(), app.S3, queue.ReportKey(string(corpus), correlationID))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Report not found"})
	}

	report := new(validate.Report)
	if err := json.Unmarshal(body, report); err != nil {
		logger.Error("[Server][GetReport] Corrupt report", "corpus", corpus, "correlation_id", correlationID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, report)
}
