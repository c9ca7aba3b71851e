// Package numbering allocates per-business invoice numbers.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidPrefix = errors.New("invalid invoice prefix")

var prefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// CounterStore is the storage side of the allocator. IncrementCounter must be
// a single atomic upsert-and-increment returning the new value.
type CounterStore interface {
	IncrementCounter(ctx context.Context, businessID string, prefix string) (int64, error)
	GetCounter(ctx context.Context, businessID string, prefix string) (int64, error)
}

type Number struct {
	Seq       int64
	Formatted string
}

type Allocator struct {
	counters CounterStore
}

func New(counters CounterStore) *Allocator {
	return &Allocator{counters: counters}
}

// NormalizePrefix returns fallback for an empty prefix and the upper-cased
// prefix otherwise.
func NormalizePrefix(prefix string, fallback string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return fallback, nil
	}
	if !prefixPattern.MatchString(prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return prefix, nil
}

func Format(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%05d", prefix, seq)
}

func (a *Allocator) Allocate(ctx context.Context, businessID string, prefix string) (Number, error) {
	if businessID == "" {
		return Number{}, errors.New("numbering: business id is required")
	}
	if !prefixPattern.MatchString(prefix) {
		return Number{}, fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}

	seq, err := a.counters.IncrementCounter(ctx, businessID, prefix)
	if err != nil {
		return Number{}, fmt.Errorf("numbering: allocate %s: %w", prefix, err)
	}
	return Number{Seq: seq, Formatted: Format(prefix, seq)}, nil
}

// Peek reports the number the next Allocate would return without consuming it.
func (a *Allocator) Peek(ctx context.Context, businessID string, prefix string) (Number, error) {
	if !prefixPattern.MatchString(prefix) {
		return Number{}, fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}

	current, err := a.counters.GetCounter(ctx, businessID, prefix)
	if err != nil {
		return Number{}, fmt.Errorf("numbering: peek %s: %w", prefix, err)
	}
	next := current + 1
	return Number{Seq: next, Formatted: Format(prefix, next)}, nil
}
