// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package cluster implements the cluster assigner: Lloyd's k-means over
// factor space with a fixed seed for reproducible fits, and nearest-centroid
// prediction for new factor vectors.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Sentinel errors for the fit/predict contract.
var (
	// ErrNotFitted indicates Predict was called without fitted params.
	ErrNotFitted = errors.New("cluster: model not fitted")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the fitted centroid dimensionality.
	ErrDimensionMismatch = errors.New("cluster: vector dimension mismatch")

	// ErrInsufficientVectors indicates a fit corpus with fewer vectors
	// than clusters.
	ErrInsufficientVectors = errors.New("cluster: fewer vectors than clusters")
)

// Config controls the fit.
type Config struct {
	// Clusters is the number of partitions K.
	Clusters int `json:"clusters"`

	// Seed fixes centroid initialization for reproducibility.
	Seed int64 `json:"seed"`

	// MaxIterations caps Lloyd iterations when convergence stalls.
	MaxIterations int `json:"max_iterations"`
}

// DefaultConfig returns the production clustering configuration.
func DefaultConfig() Config {
	return Config{
		Clusters:      10,
		Seed:          42,
		MaxIterations: 300,
	}
}

// Params holds fitted centroids. Immutable once fitted.
type Params struct {
	Clusters  int         `json:"clusters"`
	Dims      int         `json:"dims"`
	Centroids [][]float64 `json:"centroids"`
}

// Fit runs Lloyd's algorithm over the given factor vectors. Initialization
// uses k-means++ seeding driven by the configured seed, so identical input
// and config always produce identical centroids. The fit converges when an
// iteration moves no assignment, or stops at the iteration cap.
func Fit(vectors [][]float64, cfg Config) (*Params, error) {
	if cfg.Clusters <= 0 {
		cfg.Clusters = DefaultConfig().Clusters
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}

	n := len(vectors)
	if n < cfg.Clusters {
		return nil, fmt.Errorf("%w: %d vectors for %d clusters", ErrInsufficientVectors, n, cfg.Clusters)
	}
	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), dims)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	centroids := seedCentroids(vectors, cfg.Clusters, rng)

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		moved := false
		for i, v := range vectors {
			c := nearest(centroids, v)
			if c != assignments[i] {
				assignments[i] = c
				moved = true
			}
		}
		if !moved {
			break
		}

		counts := make([]int, cfg.Clusters)
		sums := make([][]float64, cfg.Clusters)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += x
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// Empty cluster keeps its centroid rather than collapsing K.
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	return &Params{
		Clusters:  cfg.Clusters,
		Dims:      dims,
		Centroids: centroids,
	}, nil
}

// Predict assigns a factor vector to the nearest centroid by Euclidean
// distance, ties broken by lowest cluster index. Idempotent for fixed params.
func Predict(p *Params, vector []float64) (int, error) {
	if p == nil || len(p.Centroids) == 0 {
		return 0, ErrNotFitted
	}
	if len(vector) != p.Dims {
		return 0, fmt.Errorf("%w: got %d dims, want %d", ErrDimensionMismatch, len(vector), p.Dims)
	}
	return nearest(p.Centroids, vector), nil
}

// seedCentroids picks initial centroids with k-means++ weighting.
func seedCentroids(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)

	first := vectors[rng.Intn(len(vectors))]
	centroids = append(centroids, cloneVec(first))

	dist := make([]float64, len(vectors))
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			d := math.Inf(1)
			for _, c := range centroids {
				if sq := sqDist(v, c); sq < d {
					d = sq
				}
			}
			dist[i] = d
			total += d
		}

		// All points coincide with existing centroids; fall back to uniform.
		if total == 0 {
			centroids = append(centroids, cloneVec(vectors[rng.Intn(len(vectors))]))
			continue
		}

		target := rng.Float64() * total
		idx := 0
		for i, d := range dist {
			target -= d
			if target <= 0 {
				idx = i
				break
			}
		}
		centroids = append(centroids, cloneVec(vectors[idx]))
	}
	return centroids
}

// nearest returns the index of the closest centroid; the strict less-than
// comparison gives the lowest index on ties.
func nearest(centroids [][]float64, v []float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(v, centroid); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func cloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
