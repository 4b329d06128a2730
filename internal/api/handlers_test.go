package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyguard/skyguard/internal/auth"
	"github.com/skyguard/skyguard/internal/config"
	"github.com/skyguard/skyguard/internal/engine"
	"github.com/skyguard/skyguard/internal/identity"
	"github.com/skyguard/skyguard/internal/logging"
	"github.com/skyguard/skyguard/internal/models"
	"github.com/skyguard/skyguard/internal/store"
)

type apiEnv struct {
	server    *httptest.Server
	reporters *store.MemoryReporterRepository
	shelters  *store.MemoryShelterRepository
	authCfg   auth.Config
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	targets := store.NewMemoryTargetRepository()
	reporters := store.NewMemoryReporterRepository()
	shelters := store.NewMemoryShelterRepository()
	logger := logging.Discard()
	authCfg := auth.Config{JWTSecret: "test-secret", TokenDuration: time.Hour}

	resolver := identity.NewResolver(reporters, 0, nil)
	eng := engine.New(targets, reporters, resolver, config.DefaultEngineConfig(), nil, nil, nil, logger)
	eng.Start(context.Background())
	t.Cleanup(eng.Stop)

	mux := http.NewServeMux()
	SetupRoutes(mux, eng, reporters, shelters, authCfg, nil, logger)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &apiEnv{server: srv, reporters: reporters, shelters: shelters, authCfg: authCfg}
}

func (env *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, env.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// register creates a reporter through the API and returns its token and ID.
func (env *apiEnv) register(t *testing.T, username string) (token, reporterID string) {
	t.Helper()

	resp := env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Username: username,
		Password: "correct-horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body TokenResponse
	decode(t, resp, &body)
	require.NotEmpty(t, body.Token)
	return body.Token, body.Reporter.ID
}

func (env *apiEnv) moderatorToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(auth.Identity{ReporterID: "mod", Moderator: true},
		env.authCfg.JWTSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	env := newAPIEnv(t)

	token, _ := env.register(t, "alice")
	require.NotEmpty(t, token)

	t.Run("duplicate username", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
			Username: "alice",
			Password: "another-pass",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("short password", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
			Username: "bob",
			Password: "short",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("login with correct credentials", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
			Username: "alice",
			Password: "correct-horse",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body TokenResponse
		decode(t, resp, &body)
		assert.NotEmpty(t, body.Token)
		assert.Equal(t, "alice", body.Reporter.Username)
	})

	t.Run("login with wrong password", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
			Username: "alice",
			Password: "wrong",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("login with unknown user", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
			Username: "nobody",
			Password: "whatever1",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestSubmitReportEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	token, _ := env.register(t, "alice")

	t.Run("requires token", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/reports", "", SubmitReportRequest{
			Type: models.TypeDrone, Latitude: 50.45, Longitude: 30.52,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid submission", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/reports", token, SubmitReportRequest{
			Type: models.TypeDrone, Latitude: 50.45, Longitude: 30.52,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var summary models.Summary
		decode(t, resp, &summary)
		assert.Equal(t, models.StatusPending, summary.Status)
		assert.NotEmpty(t, summary.ID)
		assert.Nil(t, summary.Probability)
	})

	t.Run("invalid type maps to 400", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/reports", token, SubmitReportRequest{
			Type: "ufo", Latitude: 50.45, Longitude: 30.52,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("out-of-range coordinates map to 400", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/reports", token, SubmitReportRequest{
			Type: models.TypeDrone, Latitude: 95, Longitude: 30.52,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("future submitted_at maps to 400", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/reports", token, SubmitReportRequest{
			Type: models.TypeDrone, Latitude: 50.45, Longitude: 30.52,
			SubmittedAt: time.Now().Add(time.Hour),
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rate limit maps to 429", func(t *testing.T) {
		var sawLimit bool
		for i := 0; i < 10; i++ {
			resp := env.do(t, http.MethodPost, "/api/reports", token, SubmitReportRequest{
				Type: models.TypeDrone, Latitude: 50.45, Longitude: 30.52,
			})
			resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				sawLimit = true
				break
			}
			require.Equal(t, http.StatusCreated, resp.StatusCode)
		}
		assert.True(t, sawLimit, "burst exhaustion must map to 429")
	})
}

func TestTargetEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	token, _ := env.register(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/reports", token, SubmitReportRequest{
		Type: models.TypeRocket, Latitude: 50.45, Longitude: 30.52,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Summary
	decode(t, resp, &created)

	t.Run("listing is public", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/targets", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body TargetsResponse
		decode(t, resp, &body)
		require.Equal(t, 1, body.Count)
		assert.Equal(t, created.ID, body.Targets[0].ID)
	})

	t.Run("filter by type", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/targets?target_type=drone", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body TargetsResponse
		decode(t, resp, &body)
		assert.Equal(t, 0, body.Count)
	})

	t.Run("invalid filter maps to 400", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/targets?status=bogus", "", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("get by id", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/targets/"+created.ID, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var summary models.Summary
		decode(t, resp, &summary)
		assert.Equal(t, created.ID, summary.ID)
	})

	t.Run("unknown id maps to 404", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/targets/not-a-real-id", "", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestModeratorEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	reporterToken, _ := env.register(t, "alice")
	modToken := env.moderatorToken(t)

	resp := env.do(t, http.MethodPost, "/api/reports", reporterToken, SubmitReportRequest{
		Type: models.TypeDrone, Latitude: 50.45, Longitude: 30.52,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Summary
	decode(t, resp, &created)

	confirmPath := fmt.Sprintf("/api/targets/%s/confirm", created.ID)

	t.Run("reporter cannot confirm", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, confirmPath, reporterToken, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("anonymous cannot confirm", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, confirmPath, "", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("moderator confirms", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, confirmPath, modToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var summary models.Summary
		decode(t, resp, &summary)
		assert.Equal(t, models.StatusConfirmed, summary.Status)
		assert.NotNil(t, summary.ResolvedAt)
	})

	t.Run("second transition maps to 404", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/targets/%s/reject", created.ID), modToken, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestShelterEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, env.shelters.Create(context.Background(), models.Shelter{
		ID: "s1", Title: "Metro station", Capacity: 500, Latitude: 50.44, Longitude: 30.52,
	}))

	resp := env.do(t, http.MethodGet, "/api/shelters", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var shelters []models.Shelter
	decode(t, resp, &shelters)
	require.Len(t, shelters, 1)
	assert.Equal(t, "Metro station", shelters[0].Title)
}

func TestReporterProfileEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	token, reporterID := env.register(t, "alice")

	t.Run("get own profile", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/reporters/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var profile models.ReporterProfile
		decode(t, resp, &profile)
		assert.Equal(t, reporterID, profile.ID)
		assert.Equal(t, "alice", profile.Username)
	})

	t.Run("update location", func(t *testing.T) {
		resp := env.do(t, http.MethodPut, "/api/reporters/me/location", token, UpdateLocationRequest{
			Latitude: 50.45, Longitude: 30.52,
		})
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		profile, err := env.reporters.GetByID(context.Background(), reporterID)
		require.NoError(t, err)
		require.NotNil(t, profile.LastLatitude)
		assert.Equal(t, 50.45, *profile.LastLatitude)
	})

	t.Run("rejects bad coordinates", func(t *testing.T) {
		resp := env.do(t, http.MethodPut, "/api/reporters/me/location", token, UpdateLocationRequest{
			Latitude: 123, Longitude: 30.52,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("requires token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/reporters/me", "", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestHealthz(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
