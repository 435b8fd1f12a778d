package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/open-statutes/trellis/pkg/logger"
	pgxstore "github.com/open-statutes/trellis/pkg/store/pgx"
)

// SimilarContentHandler runs a vector search over the content nodes of a
// corpus. Embeddings are computed by an external pipeline and attached via
// the store; this endpoint only queries them.
func SimilarContentHandler(c echo.Context) error {
	type similarBody struct {
		Embedding []float32 `json:"embedding" validate:"required,min=1"`
		Limit     int       `json:"limit" validate:"omitempty,min=1,max=100"`
	}

	corpus, err := corpusFromPath(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	data := new(similarBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	nodeStore := pgxstore.NewNodeDBStorageWithConnection(appOf(c).DBConn)
	nodes, err := nodeStore.SimilarContent(c.Request().Context(), corpus, data.Embedding, data.Limit)
	if err != nil {
		logger.Error("[Server][Similar] Vector search failed", "corpus", corpus, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"corpus": corpus,
		"nodes":  nodes,
	})
}
