package pgx

import (
	"context"
	"errors"
	"testing"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/open-statutes/trellis/pkg/law"
	"github.com/open-statutes/trellis/pkg/store"
)

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgxv5.Conn                            { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		*(d.(*string)) = row[i].(string)
	}
	return nil
}

type fakeRow struct{}

func (fakeRow) Scan(dest ...any) error { return pgxv5.ErrNoRows }

// fakeConn records queries and serves scripted registry rows.
type fakeConn struct {
	queries []string
	args    [][]any
	rows    [][]any
}

func (f *fakeConn) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeConn) Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error) {
	f.queries = append(f.queries, sql)
	f.args = append(f.args, optionsAndArgs)
	return &fakeRows{rows: f.rows}, nil
}

func (f *fakeConn) QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row {
	return fakeRow{}
}

func TestTableName(t *testing.T) {
	table, err := tableName("us/az/statutes")
	if err != nil {
		t.Fatalf("tableName: %v", err)
	}
	if table != "us_az_statutes" {
		t.Fatalf("unexpected table %q", table)
	}
}

func TestTableName_RejectsUnsafeSegments(t *testing.T) {
	for _, corpus := range []law.ID{
		"",
		"us/az/statutes/title=1",
		"us/az/stat-utes",
		"us/az/statutes; DROP TABLE corpora",
	} {
		if _, err := tableName(corpus); !errors.Is(err, law.ErrMalformedIdentifier) {
			t.Fatalf("expected rejection for %q, got %v", corpus, err)
		}
	}
}

func TestCorpusOf(t *testing.T) {
	cases := map[law.ID]law.ID{
		"us/az/statutes":                           "us/az/statutes",
		"us/az/statutes/title=1":                   "us/az/statutes",
		"us/az/statutes/title=1/chapter=1":         "us/az/statutes",
		"us/az/statutes/title=1/section=1-101-v_2": "us/az/statutes",
		"us/az":                                    "us/az",
	}
	for id, want := range cases {
		if got := corpusOf(id); got != want {
			t.Fatalf("corpusOf(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestTablesFor_CorpusDepthNeedsNoRegistry(t *testing.T) {
	conn := &fakeConn{}
	s := NewNodeDBStorageWithConnection(conn)

	tables, err := s.tablesFor(context.Background(), "us/az/statutes/title=1/section=1-101")
	if err != nil {
		t.Fatalf("tablesFor: %v", err)
	}
	if len(tables) != 1 || tables[0] != "us_az_statutes" {
		t.Fatalf("unexpected tables %v", tables)
	}
	if len(conn.queries) != 0 {
		t.Fatalf("corpus-depth identity must not query the registry, got %v", conn.queries)
	}
}

func TestTablesFor_JurisdictionRootUsesRegistry(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{"us_az_codes"}, {"us_az_statutes"}}}
	s := NewNodeDBStorageWithConnection(conn)

	tables, err := s.tablesFor(context.Background(), "us/az")
	if err != nil {
		t.Fatalf("tablesFor: %v", err)
	}
	if len(tables) != 2 || tables[0] != "us_az_codes" || tables[1] != "us_az_statutes" {
		t.Fatalf("unexpected tables %v", tables)
	}
	if len(conn.args) != 1 || conn.args[0][0] != "us/az/%" {
		t.Fatalf("unexpected registry lookup args %v", conn.args)
	}
}

func TestTablesFor_JurisdictionRootUnregistered(t *testing.T) {
	conn := &fakeConn{}
	s := NewNodeDBStorageWithConnection(conn)

	if _, err := s.tablesFor(context.Background(), "us/az"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unregistered jurisdiction, got %v", err)
	}
}

func TestScanPrefix_RejectsJurisdictionPattern(t *testing.T) {
	s := NewNodeDBStorageWithConnection(&fakeConn{})

	err := s.ScanPrefix(context.Background(), "us/az", func(*law.Node) error { return nil })
	if !errors.Is(err, law.ErrMalformedIdentifier) {
		t.Fatalf("expected ErrMalformedIdentifier, got %v", err)
	}
}

func TestPrefixPredicates(t *testing.T) {
	self, like := prefixPredicates("us/az/statutes/title=1")
	if self != "us/az/statutes/title=1" || like != `us/az/statutes/title=1/%` {
		t.Fatalf("unexpected predicates %q %q", self, like)
	}

	self, like = prefixPredicates("us/az/statutes/title=1/*")
	if self != "us/az/statutes/title=1" || like != `us/az/statutes/title=1%` {
		t.Fatalf("unexpected wildcard predicates %q %q", self, like)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike("a_b%c"); got != `a\_b\%c` {
		t.Fatalf("unexpected escape %q", got)
	}
}
