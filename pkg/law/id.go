package law

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedIdentifier = errors.New("malformed identifier")
	ErrInvalidLevel        = errors.New("invalid level segment")
)

// Separator delimits the segments of a node identity.
const Separator = "/"

// versionMarker is the suffix tag appended by the conflict resolver to
// disambiguate genuine duplicates, e.g. "section=1-101-v_2".
const versionMarker = "-v_"

// ID is the hierarchical identity of a node. It doubles as the primary key
// and as an adjacency encoding: every ancestor identity is a strict prefix
// of its descendants. The leading segments name the jurisdiction and corpus
// ("us/az/statutes"); every segment below that is "level=value".
type ID string

// Segment is one level=value step of an identity. Root segments
// ("us", "az", "statutes") carry an empty Level.
type Segment struct {
	Level string
	Value string
}

func (s Segment) String() string {
	if s.Level == "" {
		return s.Value
	}
	return s.Level + "=" + s.Value
}

// ParseID validates a raw identity string. Plain segments (no "=") are only
// permitted as the leading jurisdiction/corpus run; once a level=value
// segment appears, every following segment must carry a level name. Level
// names are normalized to lower case.
func ParseID(raw string) (ID, error) {
	segs, err := splitSegments(raw)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.String()
	}
	return ID(strings.Join(parts, Separator)), nil
}

func splitSegments(raw string) ([]Segment, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrMalformedIdentifier)
	}
	parts := strings.Split(raw, Separator)
	segs := make([]Segment, 0, len(parts))
	seenLevel := false
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrMalformedIdentifier, raw)
		}
		level, value, ok := strings.Cut(p, "=")
		if !ok {
			if seenLevel {
				return nil, fmt.Errorf("%w: segment %q missing level name in %q", ErrMalformedIdentifier, p, raw)
			}
			segs = append(segs, Segment{Value: p})
			continue
		}
		if level == "" || value == "" {
			return nil, fmt.Errorf("%w: segment %q has empty level or value in %q", ErrMalformedIdentifier, p, raw)
		}
		seenLevel = true
		segs = append(segs, Segment{Level: strings.ToLower(level), Value: value})
	}
	return segs, nil
}

// DeriveChild appends one level=value segment to a parent identity. The
// level name is lower-cased. The value may contain "=" (statute numbers are
// arbitrary strings) but never the path separator.
func DeriveChild(parent ID, level, value string) (ID, error) {
	if level == "" || value == "" {
		return "", fmt.Errorf("%w: empty level or value", ErrInvalidLevel)
	}
	if strings.Contains(level, Separator) || strings.Contains(value, Separator) {
		return "", fmt.Errorf("%w: %q=%q contains path separator", ErrInvalidLevel, level, value)
	}
	if strings.Contains(level, "=") {
		return "", fmt.Errorf("%w: level %q contains %q", ErrInvalidLevel, level, "=")
	}
	return ID(string(parent) + Separator + strings.ToLower(level) + "=" + value), nil
}

func (id ID) String() string { return string(id) }

// Segments splits the identity into its ordered segments. The identity is
// assumed well-formed; use ParseID for untrusted input.
func (id ID) Segments() []Segment {
	segs, err := splitSegments(string(id))
	if err != nil {
		return nil
	}
	return segs
}

// Depth is the number of segments, which also bounds any walk to the root.
func (id ID) Depth() int {
	if id == "" {
		return 0
	}
	return strings.Count(string(id), Separator) + 1
}

// Parent returns the identity with the last segment removed. The second
// return is false for single-segment identities.
func (id ID) Parent() (ID, bool) {
	i := strings.LastIndex(string(id), Separator)
	if i < 0 {
		return "", false
	}
	return id[:i], true
}

// Level is the level name of the last segment, empty for root segments.
func (id ID) Level() string {
	_, last := id.lastSegment()
	if l, _, ok := strings.Cut(last, "="); ok {
		return l
	}
	return ""
}

func (id ID) lastSegment() (ID, string) {
	i := strings.LastIndex(string(id), Separator)
	if i < 0 {
		return "", string(id)
	}
	return id[:i], string(id[i+1:])
}

// MatchesPrefix reports whether the identity falls under the given pattern.
// A trailing "*" makes the pattern a raw prefix match; otherwise the
// pattern selects itself and everything below it in the tree.
func (id ID) MatchesPrefix(pattern string) bool {
	if p, ok := strings.CutSuffix(pattern, "*"); ok {
		p = strings.TrimSuffix(p, Separator)
		return strings.HasPrefix(string(id), p)
	}
	if string(id) == pattern {
		return true
	}
	return strings.HasPrefix(string(id), pattern+Separator)
}

// Version returns the duplicate version of the identity, 1 when no version
// suffix is present.
func (id ID) Version() int {
	_, last := id.lastSegment()
	i := strings.LastIndex(last, versionMarker)
	if i < 0 {
		return 1
	}
	n, err := strconv.Atoi(last[i+len(versionMarker):])
	if err != nil || n < 2 {
		return 1
	}
	return n
}

// Base strips a version suffix from the last segment, returning the identity
// of the original entity. Identities without a suffix are returned as-is.
func (id ID) Base() ID {
	parent, last := id.lastSegment()
	i := strings.LastIndex(last, versionMarker)
	if i < 0 {
		return id
	}
	if _, err := strconv.Atoi(last[i+len(versionMarker):]); err != nil {
		return id
	}
	if parent == "" {
		return ID(last[:i])
	}
	return ID(string(parent) + Separator + last[:i])
}

// WithVersion appends a version suffix to the base identity. Versions below
// 2 return the base identity unchanged, since version 1 is the unsuffixed
// original.
func (id ID) WithVersion(n int) ID {
	base := id.Base()
	if n < 2 {
		return base
	}
	return ID(string(base) + versionMarker + strconv.Itoa(n))
}

// IsRootKind reports whether the identity belongs to one of the two root
// node kinds. Roots are the plain-segment identities: "us/az" for the
// jurisdiction, "us/az/statutes" for the corpus.
func (id ID) IsRootKind() bool {
	if id == "" {
		return false
	}
	return !strings.Contains(string(id), "=")
}
