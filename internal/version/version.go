// Package version parses, orders and validates package version strings.
//
// A version is a dot-separated sequence of non-negative integers. The
// reserved suffix ".50-git" marks a development snapshot; it is ignored for
// ordering but a snapshot is never accepted as a release.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/elrelease/internal/apperr"
)

// SnapshotSuffix marks a development snapshot following a release.
const SnapshotSuffix = ".50-git"

// Version is a parsed version string.
type Version struct {
	Parts    []int
	Snapshot bool
}

// Parse parses s. A leading "v" (as found in tag names) is tolerated.
func Parse(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	if raw == "" {
		return Version{}, fmt.Errorf("%w: empty version", apperr.ErrInvalidVersion)
	}
	var v Version
	if strings.HasSuffix(raw, SnapshotSuffix) {
		v.Snapshot = true
		raw = strings.TrimSuffix(raw, SnapshotSuffix)
	}
	for _, field := range strings.Split(raw, ".") {
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 || field == "" || strings.HasPrefix(field, "+") {
			return Version{}, fmt.Errorf("%w: %q", apperr.ErrInvalidVersion, s)
		}
		v.Parts = append(v.Parts, n)
	}
	return v, nil
}

// String renders v in canonical dotted form.
func (v Version) String() string {
	fields := make([]string, len(v.Parts))
	for i, p := range v.Parts {
		fields[i] = strconv.Itoa(p)
	}
	s := strings.Join(fields, ".")
	if v.Snapshot {
		s += SnapshotSuffix
	}
	return s
}

// Compare returns -1, 0 or 1. The snapshot flag does not take part.
func (v Version) Compare(other Version) int {
	n := max(len(v.Parts), len(other.Parts))
	for i := 0; i < n; i++ {
		a, b := part(v.Parts, i), part(other.Parts, i)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

func part(parts []int, i int) int {
	if i < len(parts) {
		return parts[i]
	}
	return 0
}

// Compare parses and compares two version strings.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// IsSnapshot reports whether s ends with the snapshot suffix.
func IsSnapshot(s string) bool {
	return strings.HasSuffix(s, SnapshotSuffix)
}

// Snapshot returns the development snapshot that follows release s.
func Snapshot(s string) string {
	if IsSnapshot(s) {
		return s
	}
	return s + SnapshotSuffix
}

// NextCandidate proposes the version after previous by incrementing its
// last component. It returns false when there is no usable previous version.
func NextCandidate(previous string) (string, bool) {
	if previous == "" {
		return "", false
	}
	v, err := Parse(previous)
	if err != nil {
		return "", false
	}
	v.Snapshot = false
	v.Parts[len(v.Parts)-1]++
	return v.String(), true
}

// ValidateRelease checks that candidate may be used as the release following
// previous. An empty previous accepts any well-formed release version.
func ValidateRelease(candidate, previous string) error {
	if IsSnapshot(candidate) {
		return fmt.Errorf("%w: %s is a development snapshot", apperr.ErrInvalidVersion, candidate)
	}
	c, err := Parse(candidate)
	if err != nil {
		return err
	}
	if previous == "" {
		return nil
	}
	p, err := Parse(previous)
	if err != nil {
		return err
	}
	if c.Compare(p) <= 0 {
		return fmt.Errorf("%w: %s is not greater than previous release %s", apperr.ErrInvalidVersion, candidate, previous)
	}
	return nil
}

// Between reports whether lo < x < hi.
func Between(x, lo, hi string) bool {
	cl, err := Compare(lo, x)
	if err != nil || cl >= 0 {
		return false
	}
	ch, err := Compare(x, hi)
	if err != nil {
		return false
	}
	return ch < 0
}
