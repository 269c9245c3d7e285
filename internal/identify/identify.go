// Package identify turns sample windows into recording identities through an
// acoustic identification provider.
package identify

import (
	"context"
	"errors"
	"fmt"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// ErrNoMatch means the provider returned no candidates for a window.
var ErrNoMatch = errors.New("no match")

// Provider is an acoustic identification service: it derives an opaque
// fingerprint from raw samples and looks fingerprints up, returning candidates
// in its own rank order.
type Provider interface {
	Fingerprint(ctx context.Context, w models.SampleWindow) ([]byte, error)
	Lookup(ctx context.Context, fingerprint []byte) ([]models.Candidate, error)
}

const (
	OpFingerprint = "fingerprint"
	OpLookup      = "lookup"
)

// Error wraps a provider failure with the step that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Matcher picks the provider's first candidate for each window.
type Matcher struct {
	provider Provider
}

func NewMatcher(p Provider) *Matcher {
	return &Matcher{provider: p}
}

// Match fingerprints w and returns the first candidate the provider ranks.
// It returns ErrNoMatch when the provider has none and an *Error when the
// provider fails.
func (m *Matcher) Match(ctx context.Context, w models.SampleWindow) (models.Candidate, error) {
	fp, err := m.provider.Fingerprint(ctx, w)
	if err != nil {
		return models.Candidate{}, &Error{Op: OpFingerprint, Err: err}
	}

	candidates, err := m.provider.Lookup(ctx, fp)
	if err != nil {
		return models.Candidate{}, &Error{Op: OpLookup, Err: err}
	}
	if len(candidates) == 0 {
		return models.Candidate{}, ErrNoMatch
	}
	return candidates[0], nil
}

// Func adapts a pair of functions to Provider.
type Func struct {
	FingerprintFunc func(ctx context.Context, w models.SampleWindow) ([]byte, error)
	LookupFunc      func(ctx context.Context, fingerprint []byte) ([]models.Candidate, error)
}

func (f Func) Fingerprint(ctx context.Context, w models.SampleWindow) ([]byte, error) {
	if f.FingerprintFunc == nil {
		return nil, fmt.Errorf("fingerprint not supported")
	}
	return f.FingerprintFunc(ctx, w)
}

func (f Func) Lookup(ctx context.Context, fingerprint []byte) ([]models.Candidate, error) {
	if f.LookupFunc == nil {
		return nil, fmt.Errorf("lookup not supported")
	}
	return f.LookupFunc(ctx, fingerprint)
}
