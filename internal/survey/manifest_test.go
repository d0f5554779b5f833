// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package survey

import (
	"errors"
	"strings"
	"testing"
)

func TestNewManifestItemCount(t *testing.T) {
	m := NewManifest()

	if got := m.NumItems(); got != NumItems {
		t.Errorf("NumItems() = %d, want %d", got, NumItems)
	}

	total := 0
	for _, s := range Scales() {
		total += s.Items
	}
	if total != NumItems {
		t.Errorf("scale item counts sum to %d, want %d", total, NumItems)
	}
}

func TestManifestPosition(t *testing.T) {
	m := NewManifest()

	tests := []struct {
		name string
		id   string
		want int
	}{
		{name: "first item", id: "A1", want: 0},
		{name: "last of first scale", id: "A10", want: 9},
		{name: "first of second scale", id: "B1", want: 10},
		{name: "thirteenth reasoning item", id: "B13", want: 22},
		{name: "first of third scale", id: "C1", want: 23},
		{name: "last item", id: "P10", want: 162},
		{name: "unknown id", id: "Z1", want: -1},
		{name: "empty id", id: "", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Position(tt.id); got != tt.want {
				t.Errorf("Position(%q) = %d, want %d", tt.id, got, tt.want)
			}
		})
	}
}

func TestManifestItemsOrdered(t *testing.T) {
	m := NewManifest()
	items := m.Items()

	if len(items) != NumItems {
		t.Fatalf("Items() returned %d items, want %d", len(items), NumItems)
	}
	if items[0].ID != "A1" {
		t.Errorf("first item id = %q, want A1", items[0].ID)
	}
	if items[162].ID != "P10" {
		t.Errorf("last item id = %q, want P10", items[162].ID)
	}

	// Items() must return a copy, not the internal slice.
	items[0].Prompt = "mutated"
	if m.Items()[0].Prompt == "mutated" {
		t.Error("Items() exposed internal state")
	}
}

func TestValidateResponse(t *testing.T) {
	m := NewManifest()

	valid := make([]int, NumItems)
	for i := range valid {
		valid[i] = (i % 5) + 1
	}

	withMissing := make([]int, NumItems)
	copy(withMissing, valid)
	withMissing[7] = MissingAnswer

	tooHigh := make([]int, NumItems)
	copy(tooHigh, valid)
	tooHigh[50] = 6

	negative := make([]int, NumItems)
	copy(negative, valid)
	negative[0] = -1

	tests := []struct {
		name    string
		answers []int
		wantErr error
	}{
		{name: "valid full response", answers: valid, wantErr: nil},
		{name: "missing sentinel allowed", answers: withMissing, wantErr: nil},
		{name: "all missing allowed", answers: make([]int, NumItems), wantErr: nil},
		{name: "too short", answers: valid[:160], wantErr: ErrDimensionMismatch},
		{name: "too long", answers: append(append([]int{}, valid...), 3), wantErr: ErrDimensionMismatch},
		{name: "empty", answers: []int{}, wantErr: ErrDimensionMismatch},
		{name: "answer above range", answers: tooHigh, wantErr: ErrAnswerOutOfRange},
		{name: "negative answer", answers: negative, wantErr: ErrAnswerOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateResponse(tt.answers)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateResponse() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateResponse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVectorize(t *testing.T) {
	m := NewManifest()

	t.Run("places answers by position", func(t *testing.T) {
		out, err := m.Vectorize(map[string]int{"A1": 5, "B13": 2, "P10": 1})
		if err != nil {
			t.Fatalf("Vectorize() error = %v", err)
		}
		if len(out) != NumItems {
			t.Fatalf("Vectorize() length = %d, want %d", len(out), NumItems)
		}
		if out[0] != 5 || out[22] != 2 || out[162] != 1 {
			t.Errorf("Vectorize() misplaced answers: out[0]=%d out[22]=%d out[162]=%d", out[0], out[22], out[162])
		}
	})

	t.Run("absent items become missing sentinel", func(t *testing.T) {
		out, err := m.Vectorize(map[string]int{"C3": 4})
		if err != nil {
			t.Fatalf("Vectorize() error = %v", err)
		}
		if out[0] != MissingAnswer {
			t.Errorf("unanswered item = %d, want missing sentinel %d", out[0], MissingAnswer)
		}
	})

	t.Run("unknown id rejected", func(t *testing.T) {
		if _, err := m.Vectorize(map[string]int{"Q1": 3}); !errors.Is(err, ErrUnknownItem) {
			t.Errorf("Vectorize() error = %v, want %v", err, ErrUnknownItem)
		}
	})

	t.Run("out of range rejected", func(t *testing.T) {
		if _, err := m.Vectorize(map[string]int{"A1": 9}); !errors.Is(err, ErrAnswerOutOfRange) {
			t.Errorf("Vectorize() error = %v, want %v", err, ErrAnswerOutOfRange)
		}
	})
}

func TestLoadCodebook(t *testing.T) {
	t.Run("attaches prompts", func(t *testing.T) {
		m := NewManifest()
		codebook := "# comment line\nA1\tI enjoy meeting new people.\nB13\tWhich number completes the series?\n\n"
		if err := m.LoadCodebook(strings.NewReader(codebook)); err != nil {
			t.Fatalf("LoadCodebook() error = %v", err)
		}
		items := m.Items()
		if items[0].Prompt != "I enjoy meeting new people." {
			t.Errorf("A1 prompt = %q", items[0].Prompt)
		}
		if items[22].Prompt != "Which number completes the series?" {
			t.Errorf("B13 prompt = %q", items[22].Prompt)
		}
	})

	t.Run("unknown item id fails", func(t *testing.T) {
		m := NewManifest()
		if err := m.LoadCodebook(strings.NewReader("Z9\tBogus prompt\n")); err == nil {
			t.Error("LoadCodebook() accepted unknown item id")
		}
	})

	t.Run("missing separator fails", func(t *testing.T) {
		m := NewManifest()
		if err := m.LoadCodebook(strings.NewReader("A1 no tab here\n")); err == nil {
			t.Error("LoadCodebook() accepted line without tab separator")
		}
	})
}
