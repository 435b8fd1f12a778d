package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/open-statutes/trellis/internal/queue"
	"github.com/open-statutes/trellis/pkg/law"
	"github.com/open-statutes/trellis/pkg/logger"
)

// ValidateCorpusHandler enqueues a full integrity pass over one corpus. The
// report lands in the archive under the returned correlation ID.
func ValidateCorpusHandler(c echo.Context) error {
	type validateResponse struct {
		Message       string `json:"message"`
		Corpus        law.ID `json:"corpus,omitempty"`
		CorrelationID string `json:"correlation_id,omitempty"`
	}

	corpus, err := corpusFromPath(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, validateResponse{Message: err.Error()})
	}

	correlationID, err := queue.NewCorrelationID()
	if err != nil {
		logger.Error("[Server][Validate] Correlation ID generation failed", "err", err)
		return c.JSON(http.StatusInternalServerError, validateResponse{Message: "Internal server error"})
	}

	msg := queue.ValidateCorpusMsg{
		Message:       "Validate corpus",
		Corpus:        corpus,
		CorrelationID: correlationID,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, validateResponse{Message: "Internal server error"})
	}

	if err := queue.PublishFIFO(appOf(c).Queue, queue.ValidateQueue, msgBytes); err != nil {
		logger.Error("[Server][Validate] Publish failed", "corpus", corpus, "err", err)
		return c.JSON(http.StatusInternalServerError, validateResponse{Message: "Failed to enqueue validation"})
	}

	return c.JSON(http.StatusAccepted, validateResponse{
		Message:       "Validation enqueued",
		Corpus:        corpus,
		CorrelationID: correlationID,
	})
}
