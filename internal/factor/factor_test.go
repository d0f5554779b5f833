// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package factor

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// syntheticCorpus generates a deterministic ordinal corpus with latent
// structure: item j leans on latent dimension j%latent, so the top factors
// carry real variance instead of pure noise.
func syntheticCorpus(n, items, latent int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	corpus := make([][]int, n)
	for i := range corpus {
		traits := make([]float64, latent)
		for d := range traits {
			traits[d] = rng.NormFloat64()
		}
		row := make([]int, items)
		for j := range row {
			v := 3 + traits[j%latent] + 0.5*rng.NormFloat64()
			a := int(math.Round(v))
			if a < 1 {
				a = 1
			}
			if a > 5 {
				a = 5
			}
			row[j] = a
		}
		corpus[i] = row
	}
	return corpus
}

func TestFitShapes(t *testing.T) {
	corpus := syntheticCorpus(120, 20, 4, 1)

	p, err := Fit(corpus, Config{Factors: 4, PromaxPower: 4})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if p.Items != 20 {
		t.Errorf("Items = %d, want 20", p.Items)
	}
	if p.Factors != 4 {
		t.Errorf("Factors = %d, want 4", p.Factors)
	}
	if len(p.Means) != 20 || len(p.Stds) != 20 {
		t.Errorf("moments length = %d/%d, want 20/20", len(p.Means), len(p.Stds))
	}
	if len(p.Loadings) != 20 || len(p.Loadings[0]) != 4 {
		t.Errorf("Loadings shape = %dx%d, want 20x4", len(p.Loadings), len(p.Loadings[0]))
	}
	if len(p.Weights) != 20 || len(p.Weights[0]) != 4 {
		t.Errorf("Weights shape = %dx%d, want 20x4", len(p.Weights), len(p.Weights[0]))
	}

	for j, s := range p.Stds {
		if s <= 0 {
			t.Errorf("Stds[%d] = %f, want positive", j, s)
		}
	}
	for i, row := range p.Weights {
		for j, w := range row {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				t.Fatalf("Weights[%d][%d] = %f", i, j, w)
			}
		}
	}
}

func TestFitDeterministic(t *testing.T) {
	corpus := syntheticCorpus(100, 15, 3, 7)
	cfg := Config{Factors: 3, PromaxPower: 4}

	a, err := Fit(corpus, cfg)
	if err != nil {
		t.Fatalf("first Fit() error = %v", err)
	}
	b, err := Fit(corpus, cfg)
	if err != nil {
		t.Fatalf("second Fit() error = %v", err)
	}

	for i := range a.Weights {
		for j := range a.Weights[i] {
			if a.Weights[i][j] != b.Weights[i][j] {
				t.Fatalf("Weights[%d][%d] differ between identical fits: %g vs %g",
					i, j, a.Weights[i][j], b.Weights[i][j])
			}
		}
	}
}

func TestFitErrors(t *testing.T) {
	tests := []struct {
		name    string
		corpus  [][]int
		cfg     Config
		wantErr error
	}{
		{
			name:    "fewer rows than factors",
			corpus:  [][]int{{1, 2, 3}, {2, 3, 4}},
			cfg:     Config{Factors: 5, PromaxPower: 4},
			wantErr: ErrInsufficientCorpus,
		},
		{
			name:    "more factors than items",
			corpus:  syntheticCorpus(50, 3, 2, 3),
			cfg:     Config{Factors: 4, PromaxPower: 4},
			wantErr: ErrInsufficientCorpus,
		},
		{
			name:    "ragged rows",
			corpus:  [][]int{{1, 2, 3}, {1, 2}, {3, 4, 5}},
			cfg:     Config{Factors: 2, PromaxPower: 4},
			wantErr: ErrRaggedCorpus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Fit(tt.corpus, tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("Fit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFitConstantItem(t *testing.T) {
	corpus := syntheticCorpus(80, 10, 3, 11)
	for i := range corpus {
		corpus[i][4] = 3 // constant column
	}

	p, err := Fit(corpus, Config{Factors: 3, PromaxPower: 4})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if p.Stds[4] != 1 {
		t.Errorf("constant item std = %f, want unit fallback", p.Stds[4])
	}
}

func TestTransform(t *testing.T) {
	corpus := syntheticCorpus(100, 12, 3, 5)
	p, err := Fit(corpus, Config{Factors: 3, PromaxPower: 4})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	response := corpus[0]

	t.Run("output dimensionality", func(t *testing.T) {
		v, err := Transform(p, response)
		if err != nil {
			t.Fatalf("Transform() error = %v", err)
		}
		if len(v) != 3 {
			t.Errorf("Transform() length = %d, want 3", len(v))
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a, _ := Transform(p, response)
		b, _ := Transform(p, response)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("Transform() not deterministic at %d: %g vs %g", i, a[i], b[i])
			}
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		if _, err := Transform(p, response[:10]); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("Transform() error = %v, want %v", err, ErrDimensionMismatch)
		}
	})

	t.Run("nil params", func(t *testing.T) {
		if _, err := Transform(nil, response); !errors.Is(err, ErrNotFitted) {
			t.Errorf("Transform() error = %v, want %v", err, ErrNotFitted)
		}
	})

	t.Run("distinct responses get distinct vectors", func(t *testing.T) {
		a, _ := Transform(p, corpus[0])
		b, _ := Transform(p, corpus[1])
		same := true
		for i := range a {
			if a[i] != b[i] {
				same = false
				break
			}
		}
		if same {
			t.Error("different responses produced identical factor vectors")
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Factors != 12 {
		t.Errorf("Factors = %d, want 12", cfg.Factors)
	}
	if cfg.PromaxPower != 4 {
		t.Errorf("PromaxPower = %f, want 4", cfg.PromaxPower)
	}
}
