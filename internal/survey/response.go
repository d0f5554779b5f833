// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package survey

import (
	"errors"
	"fmt"
)

// Sentinel errors for response validation.
var (
	// ErrDimensionMismatch indicates a response whose length does not match
	// the manifest.
	ErrDimensionMismatch = errors.New("survey: response length does not match manifest")

	// ErrAnswerOutOfRange indicates an answer outside the ordinal domain.
	ErrAnswerOutOfRange = errors.New("survey: answer outside ordinal domain")

	// ErrUnknownItem indicates an answer keyed by an id the manifest does
	// not declare.
	ErrUnknownItem = errors.New("survey: unknown item id")
)

// ValidateResponse checks an ordered raw response against the manifest:
// exact length, every answer inside [MinAnswer, MaxAnswer] or the missing
// sentinel.
func (m *Manifest) ValidateResponse(answers []int) error {
	if len(answers) != len(m.items) {
		return fmt.Errorf("%w: got %d items, want %d", ErrDimensionMismatch, len(answers), len(m.items))
	}
	for i, a := range answers {
		if a == MissingAnswer {
			continue
		}
		if a < MinAnswer || a > MaxAnswer {
			return fmt.Errorf("%w: item %s has answer %d", ErrAnswerOutOfRange, m.items[i].ID, a)
		}
	}
	return nil
}

// Vectorize converts answers keyed by item id into the ordered response
// vector the feature extractor consumes. Items absent from the map become
// the missing sentinel; unknown ids and out-of-domain values are rejected.
func (m *Manifest) Vectorize(answers map[string]int) ([]int, error) {
	out := make([]int, len(m.items))
	for id, a := range answers {
		pos, ok := m.index[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownItem, id)
		}
		if a != MissingAnswer && (a < MinAnswer || a > MaxAnswer) {
			return nil, fmt.Errorf("%w: item %s has answer %d", ErrAnswerOutOfRange, id, a)
		}
		out[pos] = a
	}
	return out, nil
}
