// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package artifacts

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/kindredlabs/kindred/internal/cluster"
	"github.com/kindredlabs/kindred/internal/factor"
)

func testStore(t *testing.T) (*Store, *badger.DB) {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close badger: %v", err)
		}
	})
	return NewStore(db), db
}

func testArtifact() *Artifact {
	return &Artifact{
		Extractor: &factor.Params{
			Items:    3,
			Factors:  2,
			Means:    []float64{3, 3, 3},
			Stds:     []float64{1, 1, 1},
			Loadings: [][]float64{{0.8, 0.1}, {0.7, 0.2}, {0.1, 0.9}},
			Weights:  [][]float64{{0.5, 0.1}, {0.4, 0.1}, {0.1, 0.6}},
		},
		Clusters: &cluster.Params{
			Clusters:  2,
			Dims:      2,
			Centroids: [][]float64{{1, 0}, {0, 1}},
		},
	}
}

func TestComputeVersionStable(t *testing.T) {
	a := testArtifact()
	b := testArtifact()

	va, err := ComputeVersion(a.Extractor, a.Clusters)
	if err != nil {
		t.Fatalf("ComputeVersion() error = %v", err)
	}
	vb, err := ComputeVersion(b.Extractor, b.Clusters)
	if err != nil {
		t.Fatalf("ComputeVersion() error = %v", err)
	}
	if va != vb {
		t.Errorf("identical params hashed to %q and %q", va, vb)
	}
	if len(va) != 16 {
		t.Errorf("version length = %d, want 16 hex chars", len(va))
	}

	b.Clusters.Centroids[0][0] = 99
	vc, _ := ComputeVersion(b.Extractor, b.Clusters)
	if vc == va {
		t.Error("different params hashed to the same version")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	artifact := testArtifact()
	if err := store.Save(ctx, artifact); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if artifact.Version == "" {
		t.Fatal("Save() left Version empty")
	}
	if artifact.CreatedAt.IsZero() {
		t.Fatal("Save() left CreatedAt zero")
	}

	loaded, err := store.Load(ctx, artifact.Version)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Version != artifact.Version {
		t.Errorf("loaded version = %q, want %q", loaded.Version, artifact.Version)
	}
	if loaded.Extractor.Items != 3 || loaded.Extractor.Factors != 2 {
		t.Errorf("extractor shape = %d/%d, want 3/2", loaded.Extractor.Items, loaded.Extractor.Factors)
	}
	if loaded.Clusters.Clusters != 2 {
		t.Errorf("clusters = %d, want 2", loaded.Clusters.Clusters)
	}
	for i, row := range artifact.Extractor.Weights {
		for j, w := range row {
			if loaded.Extractor.Weights[i][j] != w {
				t.Fatalf("Weights[%d][%d] = %g, want %g", i, j, loaded.Extractor.Weights[i][j], w)
			}
		}
	}
}

func TestLoadNotFound(t *testing.T) {
	store, _ := testStore(t)

	if _, err := store.Load(context.Background(), "deadbeefdeadbeef"); !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("Load() error = %v, want %v", err, ErrArtifactNotFound)
	}
}

func TestLoadLatestEmpty(t *testing.T) {
	store, _ := testStore(t)

	if _, err := store.LoadLatest(context.Background()); !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("LoadLatest() error = %v, want %v", err, ErrArtifactNotFound)
	}
	if _, err := store.LatestVersion(context.Background()); !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("LatestVersion() error = %v, want %v", err, ErrArtifactNotFound)
	}
}

func TestLatestPointerAdvances(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	first := testArtifact()
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save(first) error = %v", err)
	}

	second := testArtifact()
	second.Clusters.Centroids[0][0] = 42
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save(second) error = %v", err)
	}

	latest, err := store.LatestVersion(ctx)
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if latest != second.Version {
		t.Errorf("LatestVersion() = %q, want %q", latest, second.Version)
	}

	// The older version stays loadable by explicit version.
	if _, err := store.Load(ctx, first.Version); err != nil {
		t.Errorf("Load(first) after second publish error = %v", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	store, db := testStore(t)
	ctx := context.Background()

	artifact := testArtifact()
	if err := store.Save(ctx, artifact); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	t.Run("undecodable blob", func(t *testing.T) {
		err := db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte("artifact:"+artifact.Version), []byte("not json"))
		})
		if err != nil {
			t.Fatalf("tamper: %v", err)
		}
		if _, err := store.Load(ctx, artifact.Version); !errors.Is(err, ErrArtifactCorrupt) {
			t.Errorf("Load() error = %v, want %v", err, ErrArtifactCorrupt)
		}
	})

	t.Run("content hash drift", func(t *testing.T) {
		drifted := testArtifact()
		drifted.Clusters.Centroids[1][1] = 123
		if err := store.Save(ctx, drifted); err != nil {
			t.Fatalf("Save(drifted) error = %v", err)
		}
		// Overwrite the drifted blob under the original version key.
		var blob []byte
		err := db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte("artifact:" + drifted.Version))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				blob = append([]byte{}, val...)
				return nil
			})
		})
		if err != nil {
			t.Fatalf("read drifted blob: %v", err)
		}
		err = db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte("artifact:"+artifact.Version), blob)
		})
		if err != nil {
			t.Fatalf("tamper: %v", err)
		}
		if _, err := store.Load(ctx, artifact.Version); !errors.Is(err, ErrArtifactCorrupt) {
			t.Errorf("Load() error = %v, want %v", err, ErrArtifactCorrupt)
		}
	})
}

func TestSaveIncomplete(t *testing.T) {
	store, _ := testStore(t)

	if err := store.Save(context.Background(), &Artifact{}); err == nil {
		t.Error("Save() accepted artifact without params")
	}
}
