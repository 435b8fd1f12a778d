package pgx

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/open-statutes/trellis/pkg/law"
	"github.com/open-statutes/trellis/pkg/logger"
	"github.com/open-statutes/trellis/pkg/store"
)

const saveEmbeddingSQL = `UPDATE %s SET embedding = $2, updated_at = $3 WHERE id = $1`

const similarContentSQL = `
SELECT ` + nodeColumns + ` FROM %s
WHERE classification = 'content' AND embedding IS NOT NULL
ORDER BY embedding <=> $1
LIMIT $2`

// SaveEmbedding attaches an externally computed text embedding to a node.
func (s *NodeDBStorage) SaveEmbedding(ctx context.Context, id law.ID, embedding []float32) error {
	table, err := tableName(corpusOf(id))
	if err != nil {
		return err
	}

	embed := pgvector.NewVector(embedding)
	tag, err := s.conn.Exec(ctx, fmt.Sprintf(saveEmbeddingSQL, table), string(id), embed, s.now().UTC())
	if err != nil {
		return fmt.Errorf("save embedding for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SimilarContent returns the content nodes closest to the query embedding by
// cosine distance. Nodes without an embedding are skipped.
func (s *NodeDBStorage) SimilarContent(ctx context.Context, corpus law.ID, embedding []float32, limit int) ([]*law.Node, error) {
	table, err := tableName(corpus)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	logger.Debug("[Store][SimilarContent] Vector search", "corpus", corpus, "limit", limit)

	embed := pgvector.NewVector(embedding)
	rows, err := s.conn.Query(ctx, fmt.Sprintf(similarContentSQL, table), embed, limit)
	if err != nil {
		return nil, fmt.Errorf("similar content in %s: %w", corpus, err)
	}
	defer rows.Close()

	var nodes []*law.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
