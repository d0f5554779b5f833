// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package artifacts

import "sync/atomic"

// Snapshot is the in-process publication point for the currently served
// artifact. Publish swaps the whole artifact pointer atomically, so any
// number of concurrent scoring calls see either the previous artifact or
// the new one, never a mix of parameters from both.
type Snapshot struct {
	current atomic.Pointer[Artifact]
}

// NewSnapshot returns an empty snapshot. Scoring against an empty snapshot
// is a NotFitted condition for the caller to surface.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Publish makes the artifact the served model. The artifact must not be
// mutated after publication.
func (s *Snapshot) Publish(a *Artifact) {
	s.current.Store(a)
}

// Current returns the served artifact, or false if none is published.
func (s *Snapshot) Current() (*Artifact, bool) {
	a := s.current.Load()
	return a, a != nil
}

// Version returns the served artifact version, or empty when unpublished.
func (s *Snapshot) Version() string {
	if a := s.current.Load(); a != nil {
		return a.Version
	}
	return ""
}
