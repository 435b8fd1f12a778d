package store

import "errors"

// Sentinel errors of the storage boundary. Callers branch with errors.Is;
// wrapped detail (the identity, the exhausted base, the last I/O error) is
// carried by fmt.Errorf("%w") at the site that fails.
var (
	// ErrNotFound marks a lookup miss.
	ErrNotFound = errors.New("node not found")

	// ErrDuplicate is an insert collision left unresolved: PolicyError, or a
	// concurrent writer claiming a resolved identity between probe and insert.
	ErrDuplicate = errors.New("duplicate identity")

	// ErrVersionExhausted means every -v_N slot up to the probe cap is taken.
	ErrVersionExhausted = errors.New("version suffixes exhausted")

	// ErrUnknownPolicy rejects a conflict policy outside ignore/version/error.
	ErrUnknownPolicy = errors.New("unknown conflict policy")

	// ErrStorageUnavailable wraps a connection-level failure that survived
	// the retry budget. Application errors the backend itself reported never
	// carry it.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
