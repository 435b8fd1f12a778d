// Package pgx implements NodeStorage on PostgreSQL. Every corpus lives in
// its own table, created on demand and tracked in the corpora registry, so
// one jurisdiction's reset or reingest never touches another's rows.
package pgx

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/open-statutes/trellis/pkg/law"
	"github.com/open-statutes/trellis/pkg/logger"
	"github.com/open-statutes/trellis/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// NodeDBStorage implements store.NodeStorage and store.EmbeddingStorage on
// a pgx connection pool.
type NodeDBStorage struct {
	conn pgxIConn
	now  func() time.Time
}

type NodeDBStorageOption func(*NodeDBStorage)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) NodeDBStorageOption {
	return func(s *NodeDBStorage) { s.now = now }
}

// NewNodeDBStorageWithConnection creates a NodeDBStorage on an existing
// connection or pool. The connection must have pgvector types registered.
func NewNodeDBStorageWithConnection(conn pgxIConn, opts ...NodeDBStorageOption) *NodeDBStorage {
	s := &NodeDBStorage{
		conn: conn,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var (
	_ store.NodeStorage      = (*NodeDBStorage)(nil)
	_ store.EmbeddingStorage = (*NodeDBStorage)(nil)
)

const nodeColumns = `id, classification, level_tag, number, name, link, status, citation, body, addendum, refs, parent, created_at, updated_at`

const createCorpusTableSQL = `
CREATE TABLE IF NOT EXISTS %s (
	id text PRIMARY KEY,
	classification text NOT NULL,
	level_tag text NOT NULL,
	number text NOT NULL DEFAULT '',
	name text NOT NULL DEFAULT '',
	link text NOT NULL DEFAULT '',
	status text NOT NULL DEFAULT '',
	citation text NOT NULL DEFAULT '',
	body jsonb,
	addendum jsonb,
	refs jsonb,
	parent text NOT NULL DEFAULT '',
	embedding vector(1536),
	created_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL
)`

const createParentIndexSQL = `CREATE INDEX IF NOT EXISTS %s_parent_idx ON %s (parent)`

const registerCorpusSQL = `
INSERT INTO corpora (id, table_name, created_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO NOTHING`

const insertNodeSQL = `
INSERT INTO %s (` + nodeColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO NOTHING`

const existsNodeSQL = `SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`

const getNodeSQL = `SELECT ` + nodeColumns + ` FROM %s WHERE id = $1`

const childrenSQL = `SELECT ` + nodeColumns + ` FROM %s WHERE parent = $1 ORDER BY id`

const scanPrefixSQL = `SELECT ` + nodeColumns + ` FROM %s WHERE id = $1 OR id LIKE $2`

const updateNodeSQL = `
UPDATE %s SET status = $2, body = $3, addendum = $4, refs = $5, updated_at = $6
WHERE id = $1`

const statsSQL = `SELECT classification, status, count(*) FROM %s GROUP BY classification, status`

const corpusTablesSQL = `SELECT table_name FROM corpora WHERE id LIKE $1 ORDER BY id`

const cleanCorpusSQL = `DELETE FROM %s`

// EnsureCorpus creates the per-corpus table, its parent index and the
// registry row. All three statements are idempotent.
func (s *NodeDBStorage) EnsureCorpus(ctx context.Context, corpus law.ID) error {
	table, err := tableName(corpus)
	if err != nil {
		return err
	}

	logger.Debug("[Store][EnsureCorpus] Preparing corpus table", "corpus", corpus, "table", table)

	err = s.withRetry(ctx, func() error {
		if _, err := s.conn.Exec(ctx, fmt.Sprintf(createCorpusTableSQL, table)); err != nil {
			return err
		}
		if _, err := s.conn.Exec(ctx, fmt.Sprintf(createParentIndexSQL, table, table)); err != nil {
			return err
		}
		_, err := s.conn.Exec(ctx, registerCorpusSQL, string(corpus), table)
		return err
	})
	if err != nil {
		return fmt.Errorf("ensure corpus %s: %w", corpus, err)
	}
	return nil
}

// Insert persists one node into its corpus table. A jurisdiction root sits
// above every corpus and is written into the table of each corpus registered
// under it, so every table resolves its own ancestry without cross-table
// lookups.
func (s *NodeDBStorage) Insert(ctx context.Context, node *law.Node, policy store.ConflictPolicy) (*law.Node, error) {
	tables, err := s.tablesFor(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	var persisted *law.Node
	for _, table := range tables {
		n, err := s.insertInto(ctx, table, node, policy)
		if err != nil {
			return nil, err
		}
		if persisted == nil {
			persisted = n
		}
	}
	return persisted, nil
}

func (s *NodeDBStorage) insertInto(ctx context.Context, table string, node *law.Node, policy store.ConflictPolicy) (*law.Node, error) {
	inserted, err := s.insertRow(ctx, table, node)
	if err != nil {
		return nil, err
	}
	if inserted != nil {
		return inserted, nil
	}

	res, err := store.Resolve(ctx, node, policy, func(ctx context.Context, id law.ID) (bool, error) {
		return s.exists(ctx, table, id)
	})
	if err != nil {
		return nil, err
	}
	if res.Node == nil {
		return s.getFrom(ctx, table, res.Existing)
	}
	inserted, err = s.insertRow(ctx, table, res.Node)
	if err != nil {
		return nil, err
	}
	if inserted == nil {
		// A concurrent writer claimed the resolved identity between the
		// existence probe and the insert.
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicate, res.Node.ID)
	}
	return inserted, nil
}

// insertRow attempts the insert and returns the persisted node, or nil when
// the identity was already taken.
func (s *NodeDBStorage) insertRow(ctx context.Context, table string, node *law.Node) (*law.Node, error) {
	stored := *node
	now := s.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	var tag pgconn.CommandTag
	err := s.withRetry(ctx, func() error {
		var execErr error
		tag, execErr = s.conn.Exec(ctx, fmt.Sprintf(insertNodeSQL, table),
			string(stored.ID), string(stored.Classification), stored.LevelTag,
			stored.Number, stored.Name, stored.Link, stored.Status, stored.Citation,
			stored.Text, stored.Addendum, stored.References, string(stored.Parent),
			stored.CreatedAt, stored.UpdatedAt,
		)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", node.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return &stored, nil
}

func (s *NodeDBStorage) exists(ctx context.Context, table string, id law.ID) (bool, error) {
	var found bool
	err := s.conn.QueryRow(ctx, fmt.Sprintf(existsNodeSQL, table), string(id)).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}

// InsertMany inserts in submitted order, chunked only for progress logging.
// Rows before a failure stay persisted, matching one Insert call per node.
func (s *NodeDBStorage) InsertMany(ctx context.Context, nodes []*law.Node, policy store.ConflictPolicy) ([]*law.Node, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	logger.Debug("[Store][InsertMany] Inserting node batch", "nodes", len(nodes))

	out := make([]*law.Node, 0, len(nodes))
	err := store.ChunkRange(len(nodes), 500, func(start, end int) error {
		for _, n := range nodes[start:end] {
			persisted, err := s.Insert(ctx, n, policy)
			if err != nil {
				return err
			}
			out = append(out, persisted)
		}
		logger.Debug("[Store][InsertMany] Chunk done", "inserted", len(out), "total", len(nodes))
		return nil
	})
	if err != nil {
		return out, err
	}
	return out, nil
}

func (s *NodeDBStorage) Update(ctx context.Context, node *law.Node) error {
	tables, err := s.tablesFor(ctx, node.ID)
	if err != nil {
		return err
	}

	updated := false
	for _, table := range tables {
		var tag pgconn.CommandTag
		err = s.withRetry(ctx, func() error {
			var execErr error
			tag, execErr = s.conn.Exec(ctx, fmt.Sprintf(updateNodeSQL, table),
				string(node.ID), node.Status, node.Text, node.Addendum, node.References, s.now().UTC(),
			)
			return execErr
		})
		if err != nil {
			return fmt.Errorf("update %s: %w", node.ID, err)
		}
		if tag.RowsAffected() > 0 {
			updated = true
		}
	}
	if !updated {
		return store.ErrNotFound
	}
	return nil
}

func (s *NodeDBStorage) Get(ctx context.Context, id law.ID) (*law.Node, error) {
	tables, err := s.tablesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, table := range tables {
		n, err := s.getFrom(ctx, table, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		return n, err
	}
	return nil, store.ErrNotFound
}

func (s *NodeDBStorage) getFrom(ctx context.Context, table string, id law.ID) (*law.Node, error) {
	row := s.conn.QueryRow(ctx, fmt.Sprintf(getNodeSQL, table), string(id))
	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return n, nil
}

func (s *NodeDBStorage) ChildrenOf(ctx context.Context, id law.ID) ([]*law.Node, error) {
	tables, err := s.tablesFor(ctx, id)
	if err != nil {
		return nil, err
	}

	var children []*law.Node
	for _, table := range tables {
		more, err := s.childrenFrom(ctx, table, id)
		if err != nil {
			return nil, err
		}
		children = append(children, more...)
	}
	// Children of a jurisdiction root are the corpus roots, each living in
	// its own table; re-sort after merging.
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}

func (s *NodeDBStorage) childrenFrom(ctx context.Context, table string, id law.ID) ([]*law.Node, error) {
	rows, err := s.conn.Query(ctx, fmt.Sprintf(childrenSQL, table), string(id))
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", id, err)
	}
	defer rows.Close()

	var children []*law.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	return children, rows.Err()
}

func (s *NodeDBStorage) ScanPrefix(ctx context.Context, pattern string, fn func(*law.Node) error) error {
	self, like := prefixPredicates(pattern)
	corpus := corpusOf(law.ID(self))
	if corpus.Depth() < 3 {
		return fmt.Errorf("%w: pattern %q does not name a corpus", law.ErrMalformedIdentifier, pattern)
	}
	table, err := tableName(corpus)
	if err != nil {
		return err
	}

	rows, err := s.conn.Query(ctx, fmt.Sprintf(scanPrefixSQL, table), self, like)
	if err != nil {
		return fmt.Errorf("scan %s: %w", pattern, err)
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *NodeDBStorage) Stats(ctx context.Context, corpus law.ID) (store.Stats, error) {
	table, err := tableName(corpus)
	if err != nil {
		return store.Stats{}, err
	}

	rows, err := s.conn.Query(ctx, fmt.Sprintf(statsSQL, table))
	if err != nil {
		return store.Stats{}, fmt.Errorf("stats for %s: %w", corpus, err)
	}
	defer rows.Close()

	stats := store.Stats{
		ByClassification: make(map[string]int64),
		ByStatus:         make(map[string]int64),
	}
	for rows.Next() {
		var classification, status string
		var count int64
		if err := rows.Scan(&classification, &status, &count); err != nil {
			return store.Stats{}, err
		}
		stats.Total += count
		stats.ByClassification[classification] += count
		if status != "" {
			stats.ByStatus[status] += count
		}
	}
	return stats, rows.Err()
}

// Clean removes every row of the corpus. The table and registry entry stay
// so a reingest can start immediately.
func (s *NodeDBStorage) Clean(ctx context.Context, corpus law.ID) error {
	table, err := tableName(corpus)
	if err != nil {
		return err
	}

	logger.Info("[Store][Clean] Removing corpus rows", "corpus", corpus, "table", table)

	err = s.withRetry(ctx, func() error {
		_, err := s.conn.Exec(ctx, fmt.Sprintf(cleanCorpusSQL, table))
		return err
	})
	if err != nil {
		return fmt.Errorf("clean %s: %w", corpus, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*law.Node, error) {
	var n law.Node
	err := row.Scan(
		&n.ID, &n.Classification, &n.LevelTag, &n.Number, &n.Name, &n.Link,
		&n.Status, &n.Citation, &n.Text, &n.Addendum, &n.References, &n.Parent,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// tableName maps a corpus identity to its table, us/az/statutes becoming
// us_az_statutes. Segments are restricted to lowercase alphanumerics and
// underscores since the name is interpolated into DDL.
func tableName(corpus law.ID) (string, error) {
	if corpus == "" || !corpus.IsRootKind() {
		return "", fmt.Errorf("%w: %q is not a corpus identity", law.ErrMalformedIdentifier, corpus)
	}
	segments := strings.Split(string(corpus), law.Separator)
	for _, seg := range segments {
		if seg == "" {
			return "", fmt.Errorf("%w: empty segment in %q", law.ErrMalformedIdentifier, corpus)
		}
		for _, r := range seg {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
				return "", fmt.Errorf("%w: segment %q not usable as a table name", law.ErrMalformedIdentifier, seg)
			}
		}
	}
	return strings.Join(segments, "_"), nil
}

// tablesFor resolves the table set an identity lives in. Anything at corpus
// depth or below maps to exactly one table; a jurisdiction root maps to the
// table of every corpus registered under it.
func (s *NodeDBStorage) tablesFor(ctx context.Context, id law.ID) ([]string, error) {
	corpus := corpusOf(id)
	if corpus.Depth() >= 3 {
		table, err := tableName(corpus)
		if err != nil {
			return nil, err
		}
		return []string{table}, nil
	}
	if !corpus.IsRootKind() {
		return nil, fmt.Errorf("%w: %q", law.ErrMalformedIdentifier, id)
	}

	rows, err := s.conn.Query(ctx, corpusTablesSQL, escapeLike(string(corpus)+law.Separator)+"%")
	if err != nil {
		return nil, fmt.Errorf("corpora under %s: %w", corpus, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: no corpus registered under %s", store.ErrNotFound, corpus)
	}
	return tables, nil
}

// corpusOf truncates a node identity to its corpus root, the first three
// segments.
func corpusOf(id law.ID) law.ID {
	parts := strings.SplitN(string(id), law.Separator, 4)
	if len(parts) < 3 {
		return id
	}
	return law.ID(strings.Join(parts[:3], law.Separator))
}

// prefixPredicates turns an identity pattern into the two SQL predicates of
// scanPrefixSQL: an exact match and a LIKE over descendants. A trailing
// asterisk widens the exact match into a raw prefix LIKE.
func prefixPredicates(pattern string) (self, like string) {
	if raw, ok := strings.CutSuffix(pattern, "*"); ok {
		raw = strings.TrimSuffix(raw, law.Separator)
		return raw, escapeLike(raw) + "%"
	}
	return pattern, escapeLike(pattern+law.Separator) + "%"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

const writeAttempts = 3

// withRetry re-runs fn on connection-level failures with jittered backoff.
// Errors the server itself reported are returned as-is; exhausting the
// budget wraps the last error in ErrStorageUnavailable.
func (s *NodeDBStorage) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("[Store] Transient database error, retrying", "attempt", attempt+1, "error", err)
		sleepWithJitter(ctx, time.Duration(attempt+1)*200*time.Millisecond, 100*time.Millisecond)
	}
	return fmt.Errorf("%w: %w", store.ErrStorageUnavailable, err)
}

func sleepWithJitter(ctx context.Context, d, jitter time.Duration) {
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter)))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
