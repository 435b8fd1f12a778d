package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/open-statutes/trellis/pkg/logger"
	pgxstore "github.com/open-statutes/trellis/pkg/store/pgx"
)

// CleanCorpusHandler removes every node of one corpus. Administrative reset
// before a full reingest.
func CleanCorpusHandler(c echo.Context) error {
	corpus, err := corpusFromPath(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	nodeStore := pgxstore.NewNodeDBStorageWithConnection(appOf(c).DBConn)
	if err := nodeStore.Clean(c.Request().Context(), corpus); err != nil {
		logger.Error("[Server][Clean] Reset failed", "corpus", corpus, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	logger.Info("[Server][Clean] Corpus reset", "corpus", corpus)
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Corpus cleaned",
		"corpus":  corpus,
	})
}
