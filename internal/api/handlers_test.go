// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/kindredlabs/kindred/internal/artifacts"
	"github.com/kindredlabs/kindred/internal/cluster"
	"github.com/kindredlabs/kindred/internal/config"
	"github.com/kindredlabs/kindred/internal/database"
	"github.com/kindredlabs/kindred/internal/factor"
	"github.com/kindredlabs/kindred/internal/models"
	"github.com/kindredlabs/kindred/internal/scoring"
	"github.com/kindredlabs/kindred/internal/survey"
)

const apiTestFactors = 2

// apiTestArtifact mirrors the scoring tests: factor 0 reads item A1, factor
// 1 reads item A2, two clusters at (1,1) and (4,4).
func apiTestArtifact() *artifacts.Artifact {
	items := survey.NumItems
	means := make([]float64, items)
	stds := make([]float64, items)
	weights := make([][]float64, items)
	loadings := make([][]float64, items)
	for i := range stds {
		stds[i] = 1
		weights[i] = make([]float64, apiTestFactors)
		loadings[i] = make([]float64, apiTestFactors)
	}
	weights[0][0] = 1
	weights[1][1] = 1

	return &artifacts.Artifact{
		Version: "api-test-v1",
		Extractor: &factor.Params{
			Items: items, Factors: apiTestFactors,
			Means: means, Stds: stds, Loadings: loadings, Weights: weights,
		},
		Clusters: &cluster.Params{
			Clusters: 2, Dims: apiTestFactors,
			Centroids: [][]float64{{1, 1}, {4, 4}},
		},
	}
}

func testRouter(t *testing.T, publish bool) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Security: config.SecurityConfig{
			JWTSecret:  "0123456789abcdef0123456789abcdef",
			BcryptCost: bcrypt.MinCost,
		},
		API: config.APIConfig{
			MatchLimit:    10,
			MaxMatchLimit: 100,
			RateLimit:     10000,
			AuthRateLimit: 10000,
		},
	}

	db, err := database.New(&config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "api.duckdb"),
		MaxMemory: "512MB",
		Threads:   2,
	}, apiTestFactors)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})

	snapshot := artifacts.NewSnapshot()
	if publish {
		snapshot.Publish(apiTestArtifact())
	}

	manifest := survey.NewManifest()
	svc := scoring.NewService(db, snapshot, manifest, scoring.Config{
		BcryptCost: bcrypt.MinCost,
		MatchLimit: cfg.API.MatchLimit,
	})
	return NewRouter(NewHandler(svc, db, manifest, snapshot, cfg))
}

func fullAnswers(a1, a2 int) []int {
	out := make([]int, survey.NumItems)
	for i := range out {
		out[i] = 3
	}
	out[0] = a1
	out[1] = a2
	return out
}

func registerBody(name string, a1, a2 int) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"name":     name,
		"password": "hunter2hunter2",
		"age":      29,
		"gender":   "f",
		"country":  "SE",
		"answers":  fullAnswers(a1, a2),
	})
	return body
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body []byte) (*httptest.ResponseRecorder, *models.APIResponse) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not the standard envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, &resp
}

func registerAndToken(t *testing.T, router http.Handler, name string, a1, a2 int) string {
	t.Helper()
	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", registerBody(name, a1, a2))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body %s", name, rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]interface{})
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("register %s: no token in response", name)
	}
	return token
}

func TestHealthEndpoints(t *testing.T) {
	router := testRouter(t, true)

	t.Run("live", func(t *testing.T) {
		rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/health/live", "", nil)
		if rec.Code != http.StatusOK || resp.Status != "success" {
			t.Errorf("live: status %d / %q", rec.Code, resp.Status)
		}
	})

	t.Run("ready with model", func(t *testing.T) {
		rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/health/ready", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("ready: status %d", rec.Code)
		}
		data := resp.Data.(map[string]interface{})
		if data["model_published"] != true {
			t.Errorf("model_published = %v, want true", data["model_published"])
		}
		if data["model_version"] != "api-test-v1" {
			t.Errorf("model_version = %v", data["model_version"])
		}
	})

	t.Run("ready without model", func(t *testing.T) {
		bare := testRouter(t, false)
		rec, resp := doJSON(t, bare, http.MethodGet, "/api/v1/health/ready", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("ready: status %d", rec.Code)
		}
		data := resp.Data.(map[string]interface{})
		if data["model_published"] != false {
			t.Errorf("model_published = %v, want false", data["model_published"])
		}
	})
}

func TestSurveyEndpoint(t *testing.T) {
	router := testRouter(t, true)

	rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/survey", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("survey: status %d", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != survey.NumItems {
		t.Errorf("survey items = %d, want %d", len(items), survey.NumItems)
	}
	scales := data["scales"].([]interface{})
	if len(scales) != 16 {
		t.Errorf("survey scales = %d, want 16", len(scales))
	}
}

func TestRegisterEndpoint(t *testing.T) {
	router := testRouter(t, true)

	t.Run("created", func(t *testing.T) {
		rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", registerBody("alice", 1, 1))
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		data := resp.Data.(map[string]interface{})
		if data["model_version"] != "api-test-v1" {
			t.Errorf("model_version = %v", data["model_version"])
		}
		if data["cluster"] != float64(0) {
			t.Errorf("cluster = %v, want 0", data["cluster"])
		}
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", registerBody("alice", 2, 2))
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		if resp.Error == nil || resp.Error.Code != "DUPLICATE_IDENTITY" {
			t.Errorf("error = %+v, want DUPLICATE_IDENTITY", resp.Error)
		}
	})

	t.Run("wrong answer count", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"name":     "short",
			"password": "hunter2hunter2",
			"answers":  []int{1, 2, 3},
		})
		rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if resp.Error == nil || resp.Error.Code != "DIMENSION_MISMATCH" {
			t.Errorf("error = %+v, want DIMENSION_MISMATCH", resp.Error)
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"name":     "",
			"password": "hunter2hunter2",
			"answers":  fullAnswers(1, 1),
		})
		rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("error = %+v, want VALIDATION_ERROR", resp.Error)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", []byte("{not json"))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("error = %+v, want VALIDATION_ERROR", resp.Error)
		}
	})

	t.Run("no model published", func(t *testing.T) {
		bare := testRouter(t, false)
		rec, resp := doJSON(t, bare, http.MethodPost, "/api/v1/auth/register", "", registerBody("bob", 1, 1))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		if resp.Error == nil || resp.Error.Code != "MODEL_NOT_FITTED" {
			t.Errorf("error = %+v, want MODEL_NOT_FITTED", resp.Error)
		}
	})
}

func TestLoginEndpoint(t *testing.T) {
	router := testRouter(t, true)
	registerAndToken(t, router, "carol", 1, 1)

	t.Run("valid credentials", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"name": "carol", "password": "hunter2hunter2"})
		rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		data := resp.Data.(map[string]interface{})
		if data["token"] == "" || data["token"] == nil {
			t.Error("login returned no token")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"name": "carol", "password": "wrong-password"})
		rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if resp.Error == nil || resp.Error.Code != "INVALID_CREDENTIALS" {
			t.Errorf("error = %+v, want INVALID_CREDENTIALS", resp.Error)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"name": "ghost", "password": "whatever"})
		rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestMeEndpoint(t *testing.T) {
	router := testRouter(t, true)
	token := registerAndToken(t, router, "dave", 1, 1)

	t.Run("authenticated", func(t *testing.T) {
		rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/users/me", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		data := resp.Data.(map[string]interface{})
		if data["name"] != "dave" {
			t.Errorf("name = %v, want dave", data["name"])
		}
		if _, leaked := data["password_hash"]; leaked {
			t.Error("profile leaked password hash")
		}
	})

	t.Run("missing token", func(t *testing.T) {
		rec, _ := doJSON(t, router, http.MethodGet, "/api/v1/users/me", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		rec, _ := doJSON(t, router, http.MethodGet, "/api/v1/users/me", "not-a-token", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestMatchesEndpoint(t *testing.T) {
	router := testRouter(t, true)

	token := registerAndToken(t, router, "erin", 1, 1)
	registerAndToken(t, router, "frank", 1, 2)
	registerAndToken(t, router, "grace", 2, 1)
	registerAndToken(t, router, "henry", 4, 4) // other cluster

	t.Run("ranked same-cluster matches", func(t *testing.T) {
		rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/matches", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		data := resp.Data.(map[string]interface{})
		matches := data["matches"].([]interface{})
		if len(matches) != 2 {
			t.Fatalf("matches = %d, want 2", len(matches))
		}
		for _, raw := range matches {
			m := raw.(map[string]interface{})
			if m["name"] == "henry" {
				t.Error("cross-cluster user in matches")
			}
			if m["name"] == "erin" {
				t.Error("subject in their own matches")
			}
		}
		if data["count"] != float64(2) {
			t.Errorf("count = %v, want 2", data["count"])
		}
	})

	t.Run("limit respected", func(t *testing.T) {
		rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/matches?limit=1", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		data := resp.Data.(map[string]interface{})
		if matches := data["matches"].([]interface{}); len(matches) != 1 {
			t.Errorf("matches = %d, want 1", len(matches))
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec, _ := doJSON(t, router, http.MethodGet, "/api/v1/matches", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestRequestIDHeader(t *testing.T) {
	router := testRouter(t, true)

	t.Run("generated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("no X-Request-ID header on response")
		}
	})

	t.Run("inbound id honored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		req.Header.Set("X-Request-ID", "trace-me")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != "trace-me" {
			t.Errorf("X-Request-ID = %q, want trace-me", got)
		}
	})
}

func TestGetIntParam(t *testing.T) {
	tests := []struct {
		name  string
		query string
		def   int
		want  int
	}{
		{name: "absent uses default", query: "", def: 10, want: 10},
		{name: "parsed", query: "limit=25", def: 10, want: 25},
		{name: "malformed uses default", query: "limit=abc", def: 10, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/x?%s", tt.query), nil)
			if got := getIntParam(req, "limit", tt.def); got != tt.want {
				t.Errorf("getIntParam() = %d, want %d", got, tt.want)
			}
		})
	}
}
