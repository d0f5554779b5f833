// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package survey defines the static questionnaire schema.
//
// The questionnaire is the 163-item 16PF personality inventory: sixteen
// scales lettered A through P, ten items each except scale B which carries
// thirteen. Every item is declared here with its id, scale, and ordinal
// answer domain, and the same manifest drives both the rendering endpoint
// and the vectorization step feeding the feature extractor. Item prompt
// text lives in a separate codebook file and is attached at load time.
package survey

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Answer domain constants. Answers are ordinal 1-5 (strongly disagree to
// strongly agree); 0 is the sentinel for a skipped item and is carried
// through to the feature extractor rather than rejected.
const (
	NumItems      = 163
	MinAnswer     = 1
	MaxAnswer     = 5
	MissingAnswer = 0
)

// Scale describes one of the sixteen personality scales.
type Scale struct {
	Letter string `json:"letter"`
	Name   string `json:"name"`
	Items  int    `json:"items"`
}

// scales lists the sixteen 16PF scales in questionnaire order.
// The counts sum to NumItems.
var scales = []Scale{
	{Letter: "A", Name: "Warmth", Items: 10},
	{Letter: "B", Name: "Reasoning", Items: 13},
	{Letter: "C", Name: "Emotional Stability", Items: 10},
	{Letter: "D", Name: "Dominance", Items: 10},
	{Letter: "E", Name: "Liveliness", Items: 10},
	{Letter: "F", Name: "Rule-Consciousness", Items: 10},
	{Letter: "G", Name: "Social Boldness", Items: 10},
	{Letter: "H", Name: "Sensitivity", Items: 10},
	{Letter: "I", Name: "Vigilance", Items: 10},
	{Letter: "J", Name: "Abstractedness", Items: 10},
	{Letter: "K", Name: "Privateness", Items: 10},
	{Letter: "L", Name: "Apprehension", Items: 10},
	{Letter: "M", Name: "Openness to Change", Items: 10},
	{Letter: "N", Name: "Self-Reliance", Items: 10},
	{Letter: "O", Name: "Perfectionism", Items: 10},
	{Letter: "P", Name: "Tension", Items: 10},
}

// Item is one questionnaire item. Prompt is empty until a codebook is loaded.
type Item struct {
	ID     string `json:"id"`
	Scale  string `json:"scale"`
	Prompt string `json:"prompt,omitempty"`
}

// Manifest is the ordered questionnaire schema. The item order is fixed and
// defines the component order of every raw response vector; vectors produced
// under different orderings are not comparable.
type Manifest struct {
	items []Item
	index map[string]int
}

// NewManifest builds the manifest from the static scale table.
func NewManifest() *Manifest {
	m := &Manifest{
		items: make([]Item, 0, NumItems),
		index: make(map[string]int, NumItems),
	}
	for _, s := range scales {
		for i := 1; i <= s.Items; i++ {
			id := fmt.Sprintf("%s%d", s.Letter, i)
			m.index[id] = len(m.items)
			m.items = append(m.items, Item{ID: id, Scale: s.Letter})
		}
	}
	return m
}

// Scales returns the sixteen scales in questionnaire order.
func Scales() []Scale {
	out := make([]Scale, len(scales))
	copy(out, scales)
	return out
}

// Items returns the items in questionnaire order.
func (m *Manifest) Items() []Item {
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// NumItems returns the number of declared items.
func (m *Manifest) NumItems() int {
	return len(m.items)
}

// Position returns the vector position of an item id, or -1 if unknown.
func (m *Manifest) Position(id string) int {
	pos, ok := m.index[id]
	if !ok {
		return -1
	}
	return pos
}

// LoadCodebook attaches prompt text from a codebook reader. Each non-empty
// line is "<item id>\t<prompt>"; lines starting with '#' are skipped.
// Unknown item ids are an error since they indicate a codebook/manifest
// mismatch.
func (m *Manifest) LoadCodebook(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		id, prompt, ok := strings.Cut(text, "\t")
		if !ok {
			return fmt.Errorf("codebook line %d: missing tab separator", line)
		}
		pos, found := m.index[strings.TrimSpace(id)]
		if !found {
			return fmt.Errorf("codebook line %d: unknown item id %q", line, id)
		}
		m.items[pos].Prompt = strings.TrimSpace(prompt)
	}
	return scanner.Err()
}
