// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package ingest retrieves and parses the historical survey corpus the
// offline modeling pipeline fits on.
//
// The corpus ships as a zip archive containing one tab-separated file: a
// header row naming the 163 questionnaire items plus demographic columns,
// then one row per historical respondent. The fit path consumes it
// read-only.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kindredlabs/kindred/internal/config"
	"github.com/kindredlabs/kindred/internal/logging"
	"github.com/kindredlabs/kindred/internal/survey"
)

// ErrDataFileMissing indicates the archive does not contain the configured
// data file.
var ErrDataFileMissing = errors.New("ingest: data file not found in archive")

// Respondent is one historical corpus row: the ordered raw answers plus the
// demographic metadata carried onto seeded user records.
type Respondent struct {
	Answers []int
	Age     int
	Gender  string
	Country string
}

// Fetch loads the corpus from the configured source: the local path when
// set, otherwise the remote archive.
func Fetch(ctx context.Context, cfg *config.CorpusConfig, manifest *survey.Manifest) ([]Respondent, error) {
	if cfg.LocalPath != "" {
		f, err := os.Open(cfg.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("open local corpus: %w", err)
		}
		defer f.Close()
		return Parse(f, manifest)
	}

	data, err := FetchArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data), manifest)
}

// FetchArchive downloads the corpus archive and extracts the data file.
func FetchArchive(ctx context.Context, cfg *config.CorpusConfig) ([]byte, error) {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build corpus request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch corpus archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch corpus archive: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read corpus archive: %w", err)
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open corpus archive: %w", err)
	}

	for _, f := range archive.File {
		if f.Name != cfg.DataFile {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		logging.Info().Str("file", f.Name).Int("bytes", len(data)).Msg("Corpus data file extracted")
		return data, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrDataFileMissing, cfg.DataFile)
}

// Parse reads the tab-separated corpus into respondents. Item columns are
// located by matching header names against the manifest; unmatched columns
// feed the demographic metadata or are ignored. Blank or malformed answer
// cells become the missing-answer sentinel.
func Parse(r io.Reader, manifest *survey.Manifest) ([]Respondent, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read corpus header: %w", err)
	}

	// Column index -> answer vector position, or metadata role.
	itemPos := make([]int, len(header))
	ageCol, genderCol, countryCol := -1, -1, -1
	matched := 0
	for i, name := range header {
		name = strings.TrimSpace(name)
		itemPos[i] = manifest.Position(name)
		if itemPos[i] >= 0 {
			matched++
			continue
		}
		switch strings.ToLower(name) {
		case "age":
			ageCol = i
		case "gender":
			genderCol = i
		case "country":
			countryCol = i
		}
	}
	if matched != manifest.NumItems() {
		return nil, fmt.Errorf("ingest: corpus header matched %d of %d manifest items", matched, manifest.NumItems())
	}

	var respondents []Respondent
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read corpus row %d: %w", line, err)
		}
		line++

		resp := Respondent{Answers: make([]int, manifest.NumItems())}
		for i, cell := range record {
			if i >= len(itemPos) {
				break
			}
			if pos := itemPos[i]; pos >= 0 {
				resp.Answers[pos] = parseAnswer(cell)
				continue
			}
			switch i {
			case ageCol:
				resp.Age, _ = strconv.Atoi(strings.TrimSpace(cell))
			case genderCol:
				resp.Gender = strings.TrimSpace(cell)
			case countryCol:
				resp.Country = strings.TrimSpace(cell)
			}
		}
		respondents = append(respondents, resp)
	}

	logging.Info().Int("respondents", len(respondents)).Msg("Corpus parsed")
	return respondents, nil
}

// parseAnswer converts one answer cell, clamping anything outside the
// ordinal domain to the missing sentinel.
func parseAnswer(cell string) int {
	v, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil || v < survey.MinAnswer || v > survey.MaxAnswer {
		return survey.MissingAnswer
	}
	return v
}
