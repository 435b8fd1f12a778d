package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-statutes/trellis/internal/storage"
	"github.com/open-statutes/trellis/internal/util"
	"github.com/open-statutes/trellis/pkg/corpuslock"
	"github.com/open-statutes/trellis/pkg/logger"
	"github.com/open-statutes/trellis/pkg/store"
	pgxstore "github.com/open-statutes/trellis/pkg/store/pgx"
)

// ProcessIngestMessage inserts one extracted node batch under the corpus
// lease and archives the raw payload. Archiving is best effort: a failed
// upload logs but never fails the already persisted batch.
func ProcessIngestMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(IngestNodesMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("malformed ingest message: %w", err)
	}
	if data.Corpus == "" || len(data.Nodes) == 0 {
		return fmt.Errorf("ingest message missing corpus or nodes")
	}

	policy, err := store.ParsePolicy(data.Policy)
	if err != nil {
		return err
	}

	logger.Info("[Queue][Ingest] Processing batch",
		"corpus", data.Corpus, "nodes", len(data.Nodes), "policy", policy, "correlation_id", data.CorrelationID)

	nodeStore := pgxstore.NewNodeDBStorageWithConnection(conn)
	if err := nodeStore.EnsureCorpus(ctx, data.Corpus); err != nil {
		return err
	}

	locker := corpuslock.New(conn)
	err = locker.WithLease(ctx, data.Corpus, corpuslock.Options{
		TTL:  5 * time.Minute,
		Wait: true,
	}, func(leaseCtx context.Context) error {
		_, err := nodeStore.InsertMany(leaseCtx, data.Nodes, policy)
		return err
	})
	if err != nil {
		return fmt.Errorf("ingest batch for %s: %w", data.Corpus, err)
	}

	if s3Client != nil && data.CorrelationID != "" {
		key := ArchiveKey(string(data.Corpus), data.CorrelationID)
		_, err := util.RetryWithContext(ctx, 3, func(ctx context.Context) (string, error) {
			return storage.PutJSON(ctx, s3Client, key, []byte(msg))
		})
		if err != nil {
			logger.Warn("[Queue][Ingest] Payload archive failed", "key", key, "err", err)
		}
	}

	logger.Info("[Queue][Ingest] Batch done", "corpus", data.Corpus, "nodes", len(data.Nodes))
	return nil
}

// ArchiveKey is the S3 location of one ingest payload.
func ArchiveKey(corpus, correlationID string) string {
	return fmt.Sprintf("archive/%s/%s.json", strings.ReplaceAll(corpus, "/", "_"), correlationID)
}
