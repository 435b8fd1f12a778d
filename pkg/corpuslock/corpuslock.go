// Package corpuslock serializes writers of one corpus through a database
// lease. Extraction runs for different corpora proceed in parallel; two runs
// against the same corpus would interleave their conflict resolution, so the
// second waits or backs off.
package corpuslock

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/open-statutes/trellis/pkg/law"
)

var (
	ErrBusy = errors.New("corpus lease busy")
	ErrLost = errors.New("corpus lease lost")
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Locker hands out corpus leases backed by the corpus_locks table.
type Locker struct {
	db dbConn
}

type Options struct {
	TTL        time.Duration
	RenewEvery time.Duration

	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration
}

// Lease is a held corpus lock. Context is cancelled when the lease is lost,
// so long-running inserts under the lease must run on it.
type Lease struct {
	Corpus law.ID
	Holder string

	Context context.Context

	locker *Locker
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(pool *pgxpool.Pool) *Locker {
	return &Locker{db: pool}
}

// WithLease runs fn while holding the corpus lease and releases it after.
func (l *Locker) WithLease(ctx context.Context, corpus law.ID, opts Options, fn func(ctx context.Context) error) error {
	lease, err := l.Acquire(ctx, corpus, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.Background())
	}()
	return fn(lease.Context)
}

// Acquire takes the lease for one corpus. With Wait set it polls until the
// holder releases or expires; otherwise a held lease returns ErrBusy. The
// lease renews itself in the background until released.
func (l *Locker) Acquire(ctx context.Context, corpus law.ID, opts Options) (*Lease, error) {
	if corpus == "" {
		return nil, errors.New("corpus identity is empty")
	}

	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	ttlMs := opts.TTL.Milliseconds()
	if opts.RenewEvery <= 0 || opts.RenewEvery >= opts.TTL {
		opts.RenewEvery = max(opts.TTL/2, time.Second)
	}
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = 250 * time.Millisecond
	}
	if opts.WaitJitter < 0 {
		opts.WaitJitter = 0
	}

	token, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	holder := "ingest-" + token

	acquireOnce := func(ctx context.Context) (bool, error) {
		var returnedCorpus string
		err := l.db.QueryRow(ctx, tryAcquireSQL, string(corpus), holder, ttlMs).Scan(&returnedCorpus)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, nil
			}
			return false, err
		}
		return returnedCorpus != "", nil
	}

	for {
		ok, err := acquireOnce(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !opts.Wait {
			return nil, ErrBusy
		}
		if err := sleepWithJitter(ctx, opts.WaitInterval, opts.WaitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	lease := &Lease{
		Corpus:  corpus,
		Holder:  holder,
		Context: leaseCtx,
		locker:  l,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}

	go lease.renewLoop(opts, ttlMs)

	return lease, nil
}

func (le *Lease) Release(ctx context.Context) error {
	le.stopOnce.Do(func() {
		close(le.stopCh)
		le.cancel(context.Canceled)
	})

	_, err := le.locker.db.Exec(ctx, releaseSQL, string(le.Corpus), le.Holder)
	return err
}

func (le *Lease) renewLoop(opts Options, ttlMs int64) {
	t := time.NewTicker(opts.RenewEvery)
	defer t.Stop()

	for {
		select {
		case <-le.stopCh:
			return
		case <-le.Context.Done():
			return
		case <-t.C:
			if err := le.renewOnce(ttlMs); err != nil {
				le.cancel(err)
				return
			}
		}
	}
}

func (le *Lease) renewOnce(ttlMs int64) error {
	for attempt := range 3 {
		renewCtx, cancel := context.WithTimeout(le.Context, 15*time.Second)
		var returnedCorpus string
		err := le.locker.db.QueryRow(renewCtx, renewSQL, string(le.Corpus), le.Holder, ttlMs).Scan(&returnedCorpus)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
		if attempt == 2 {
			return err
		}
		if err := sleepWithJitter(le.Context, 200*time.Millisecond, 0); err != nil {
			return err
		}
	}
	return ErrLost
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO corpus_locks (corpus, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (corpus) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE corpus_locks.expires_at < now()
   OR corpus_locks.holder = EXCLUDED.holder
RETURNING corpus;
`

const renewSQL = `
UPDATE corpus_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE corpus = $1 AND holder = $2
RETURNING corpus;
`

const releaseSQL = `
DELETE FROM corpus_locks
WHERE corpus = $1 AND holder = $2;
`
