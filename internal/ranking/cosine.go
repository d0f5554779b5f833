// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package ranking implements the similarity ranker: cosine similarity of a
// subject's factor vector against same-cluster candidates, ordered best
// first. The caller restricts candidates to the subject's cluster; this
// package enforces self-exclusion and zero-norm exclusion.
package ranking

import (
	"math"
	"sort"
)

// DefaultLimit is the number of matches returned when the caller does not
// specify one.
const DefaultLimit = 10

// Candidate pairs an id with its factor vector.
type Candidate struct {
	ID     string
	Vector []float64
}

// Match is one ranked result.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Rank scores every candidate against the subject by cosine similarity and
// returns the top matches in descending score order, id-ascending on ties.
//
// Candidates equal to excludeID, candidates with a zero-norm vector, and
// candidates whose dimensionality differs from the subject are skipped:
// their similarity is undefined, and exclusion is the contract rather than
// a divide-by-zero fault. A zero-norm subject matches nothing.
func Rank(subject []float64, candidates []Candidate, excludeID string, limit int) []Match {
	if limit <= 0 {
		limit = DefaultLimit
	}

	subjectNorm := norm(subject)
	if subjectNorm == 0 {
		return []Match{}
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == excludeID || len(c.Vector) != len(subject) {
			continue
		}
		candNorm := norm(c.Vector)
		if candNorm == 0 {
			continue
		}
		matches = append(matches, Match{
			ID:    c.ID,
			Score: dot(subject, c.Vector) / (subjectNorm * candNorm),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Cosine returns the cosine similarity of two equal-length vectors, or zero
// when either norm vanishes.
func Cosine(a, b []float64) float64 {
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
