package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-statutes/trellis/internal/storage"
	"github.com/open-statutes/trellis/internal/util"
	"github.com/open-statutes/trellis/pkg/logger"
	pgxstore "github.com/open-statutes/trellis/pkg/store/pgx"
	"github.com/open-statutes/trellis/pkg/validate"
)

// ProcessValidateMessage runs the full integrity pass over a corpus and
// uploads the report. The report is the deliverable, so an upload failure
// fails the job and the message retries.
func ProcessValidateMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(ValidateCorpusMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("malformed validate message: %w", err)
	}
	if data.Corpus == "" {
		return fmt.Errorf("validate message missing corpus")
	}

	logger.Info("[Queue][Validate] Running integrity checks", "corpus", data.Corpus, "correlation_id", data.CorrelationID)

	nodeStore := pgxstore.NewNodeDBStorageWithConnection(conn)
	report, err := validate.New(nodeStore).Run(ctx, data.Corpus)
	if err != nil {
		return fmt.Errorf("validate %s: %w", data.Corpus, err)
	}

	logger.Info("[Queue][Validate] Checks complete",
		"corpus", data.Corpus, "nodes", report.Nodes, "findings", len(report.Findings))

	if s3Client == nil {
		return nil
	}

	body, err := json.Marshal(report)
	if err != nil {
		return err
	}
	key := ReportKey(string(data.Corpus), data.CorrelationID)
	err = util.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
		_, err := storage.PutJSON(ctx, s3Client, key, body)
		return err
	})
	if err != nil {
		return fmt.Errorf("upload report %s: %w", key, err)
	}

	logger.Info("[Queue][Validate] Report uploaded", "key", key)
	return nil
}

// ReportPrefix is the S3 folder holding all validation reports of a corpus.
func ReportPrefix(corpus string) string {
	return fmt.Sprintf("reports/%s/", strings.ReplaceAll(corpus, "/", "_"))
}

// ReportKey is the S3 location of one validation report.
func ReportKey(corpus, correlationID string) string {
	return ReportPrefix(corpus) + correlationID + ".json"
}
