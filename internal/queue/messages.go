package queue

import "github.com/open-statutes/trellis/pkg/law"

// IngestNodesMsg is the payload of ingest_queue. Nodes arrive in extraction
// order and are inserted in that order; the order is load-bearing for the
// insertion-order integrity check.
type IngestNodesMsg struct {
	Message       string      `json:"message"`
	Corpus        law.ID      `json:"corpus"`
	CorrelationID string      `json:"correlation_id"`
	Policy        string      `json:"policy"`
	Nodes         []*law.Node `json:"nodes"`
}

// ValidateCorpusMsg is the payload of validate_queue.
type ValidateCorpusMsg struct {
	Message       string `json:"message"`
	Corpus        law.ID `json:"corpus"`
	CorrelationID string `json:"correlation_id"`
}
