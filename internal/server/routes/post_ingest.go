package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/open-statutes/trellis/internal/queue"
	"github.com/open-statutes/trellis/pkg/law"
	"github.com/open-statutes/trellis/pkg/logger"
	"github.com/open-statutes/trellis/pkg/store"
)

// IngestNodesHandler enqueues one extracted node batch for the worker. The
// batch is not inserted inline: ordering across batches of the same corpus
// is guaranteed by the queue plus the corpus lease, not by the API.
func IngestNodesHandler(c echo.Context) error {
	type ingestBody struct {
		Policy string      `json:"policy" validate:"required,oneof=ignore version error"`
		Nodes  []*law.Node `json:"nodes" validate:"required,min=1,dive,required"`
	}

	type ingestResponse struct {
		Message       string `json:"message"`
		Corpus        law.ID `json:"corpus,omitempty"`
		CorrelationID string `json:"correlation_id,omitempty"`
		Nodes         int    `json:"nodes,omitempty"`
	}

	corpus, err := corpusFromPath(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{Message: err.Error()})
	}

	data := new(ingestBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{Message: "Invalid request body"})
	}
	if _, err := store.ParsePolicy(data.Policy); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{Message: err.Error()})
	}

	for _, n := range data.Nodes {
		if _, err := law.ParseID(string(n.ID)); err != nil {
			return c.JSON(http.StatusBadRequest, ingestResponse{Message: err.Error()})
		}
		if !belongsToCorpus(n.ID, corpus) {
			return c.JSON(http.StatusBadRequest, ingestResponse{
				Message: "Node " + string(n.ID) + " does not belong to corpus " + string(corpus),
			})
		}
	}

	correlationID, err := queue.NewCorrelationID()
	if err != nil {
		logger.Error("[Server][Ingest] Correlation ID generation failed", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{Message: "Internal server error"})
	}

	msg := queue.IngestNodesMsg{
		Message:       "Ingest node batch",
		Corpus:        corpus,
		CorrelationID: correlationID,
		Policy:        data.Policy,
		Nodes:         data.Nodes,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ingestResponse{Message: "Internal server error"})
	}

	if err := queue.PublishFIFO(appOf(c).Queue, queue.IngestQueue, msgBytes); err != nil {
		logger.Error("[Server][Ingest] Publish failed", "corpus", corpus, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{Message: "Failed to enqueue batch"})
	}

	logger.Info("[Server][Ingest] Batch enqueued", "corpus", corpus, "nodes", len(data.Nodes), "correlation_id", correlationID)

	return c.JSON(http.StatusAccepted, ingestResponse{
		Message:       "Batch enqueued",
		Corpus:        corpus,
		CorrelationID: correlationID,
		Nodes:         len(data.Nodes),
	})
}
