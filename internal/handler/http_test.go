package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/arcade-score-engine/internal/config"
	"github.com/arcade-score-engine/internal/domain"
	"github.com/arcade-score-engine/internal/service"
	"github.com/arcade-score-engine/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory service.Store for handler tests
type memStore struct {
	games      map[string]*domain.Game
	results    map[string]*domain.PlayResult
	totals     map[string]int64
	popularity map[string]int64

	failAddPoints bool
}

func newMemStore() *memStore {
	return &memStore{
		games:      make(map[string]*domain.Game),
		results:    make(map[string]*domain.PlayResult),
		totals:     make(map[string]int64),
		popularity: make(map[string]int64),
	}
}

func (m *memStore) GetGame(_ context.Context, gameID string) (*domain.Game, error) {
	game, ok := m.games[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return game, nil
}

func (m *memStore) GameExists(_ context.Context, gameID string) (bool, error) {
	_, ok := m.games[gameID]
	return ok, nil
}

func (m *memStore) InsertPlayResult(_ context.Context, result *domain.PlayResult) error {
	cp := *result
	m.results[result.ID] = &cp
	return nil
}

func (m *memStore) GetPlayResult(_ context.Context, scoreID string) (*domain.PlayResult, error) {
	result, ok := m.results[scoreID]
	if !ok {
		return nil, domain.ErrScoreNotFound
	}
	return result, nil
}

func (m *memStore) DeletePlayResult(_ context.Context, scoreID string) error {
	if _, ok := m.results[scoreID]; !ok {
		return domain.ErrScoreNotFound
	}
	delete(m.results, scoreID)
	return nil
}

func (m *memStore) AddUserPoints(_ context.Context, userID string, delta int64) (int64, error) {
	if m.failAddPoints {
		return 0, errors.New("connection refused")
	}
	total := m.totals[userID] + delta
	if total < 0 {
		total = 0
	}
	m.totals[userID] = total
	return total, nil
}

func (m *memStore) IncrementPopularity(_ context.Context, gameID string) (int64, error) {
	m.popularity[gameID]++
	return m.popularity[gameID], nil
}

func (m *memStore) GetUserScores(_ context.Context, userID string, limit int) ([]domain.PlayResult, error) {
	var scores []domain.PlayResult
	for _, r := range m.results {
		if r.UserID == userID {
			scores = append(scores, *r)
		}
	}
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

func (m *memStore) GetUserSummary(_ context.Context, userID string) (domain.ScoreSummary, error) {
	var summary domain.ScoreSummary
	for _, r := range m.results {
		if r.UserID == userID {
			summary.GamesPlayed++
		}
	}
	return summary, nil
}

func (m *memStore) GetUserRank(_ context.Context, userID string) (*domain.RankInfo, error) {
	total, ok := m.totals[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	info := &domain.RankInfo{UserID: userID, Rank: 1, TotalPoints: total}
	for _, t := range m.totals {
		if t > total {
			info.Rank++
		}
	}
	return info, nil
}

func (m *memStore) GetGlobalLeaderboard(_ context.Context, limit int) ([]domain.GlobalEntry, error) {
	entries := make([]domain.GlobalEntry, 0, len(m.totals))
	for userID, total := range m.totals {
		entries = append(entries, domain.GlobalEntry{UserID: userID, TotalPoints: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TotalPoints > entries[j].TotalPoints
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	domain.RankGlobalEntries(entries)
	return entries, nil
}

func (m *memStore) GetGameLeaderboard(_ context.Context, gameID string, limit int) ([]domain.GameEntry, error) {
	var entries []domain.GameEntry
	for _, r := range m.results {
		if r.GameID == gameID {
			entries = append(entries, domain.GameEntry{
				ScoreID:    r.ID,
				UserID:     r.UserID,
				FinalScore: r.FinalScore,
				CreatedAt:  r.CreatedAt,
			})
		}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *memStore) GetUserCount(_ context.Context) (int64, error) {
	return int64(len(m.totals)), nil
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestServer(store *memStore) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(nopWriter{}, nil))
	cfg := config.DefaultConfig()
	svc := service.NewScoreService(store, nil, &cfg.Scoring, &cfg.Leaderboard, logger)
	hub := websocket.NewHub(logger)
	h := NewHandler(svc, hub, logger)
	return httptest.NewServer(h.Router())
}

func submitBody() string {
	return `{
		"game_id": "game-1",
		"final_metrics_provided": true,
		"speed_score": 80,
		"accuracy_score": 90,
		"consistency_score": 70
	}`
}

func decodeResponse(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	var apiResp APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiResp))
	resp.Body.Close()
	return apiResp
}

func TestSubmitScore_Created(t *testing.T) {
	store := newMemStore()
	store.games["game-1"] = &domain.Game{ID: "game-1", Category: domain.CategoryLogic, Difficulty: domain.DifficultyMedium}
	server := newTestServer(store)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/v1/scores", strings.NewReader(submitBody()))
	req.Header.Set("X-User-ID", "user-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	apiResp := decodeResponse(t, resp)
	assert.True(t, apiResp.Success)

	data, _ := json.Marshal(apiResp.Data)
	var result domain.SubmitResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, int64(103), result.PointsEarned)
	assert.Equal(t, int64(103), result.Breakdown.Total)
	assert.Equal(t, int64(103), store.totals["user-1"])
}

func TestSubmitScore_MissingIdentity(t *testing.T) {
	server := newTestServer(newMemStore())
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/scores", "application/json", strings.NewReader(submitBody()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmitScore_UnknownGame(t *testing.T) {
	server := newTestServer(newMemStore())
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/v1/scores", strings.NewReader(submitBody()))
	req.Header.Set("X-User-ID", "user-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitScore_MalformedBody(t *testing.T) {
	server := newTestServer(newMemStore())
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/v1/scores", strings.NewReader("{not json"))
	req.Header.Set("X-User-ID", "user-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitScore_AggregateLagReturnsAccepted(t *testing.T) {
	store := newMemStore()
	store.games["game-1"] = &domain.Game{ID: "game-1", Category: domain.CategoryLogic, Difficulty: domain.DifficultyMedium}
	store.failAddPoints = true
	server := newTestServer(store)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/v1/scores", strings.NewReader(submitBody()))
	req.Header.Set("X-User-ID", "user-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	apiResp := decodeResponse(t, resp)
	assert.True(t, apiResp.Success, "the play itself was recorded")
	assert.NotEmpty(t, apiResp.Error, "the lag is reported alongside")
	assert.NotNil(t, apiResp.Data, "the created entry is returned")
	assert.Len(t, store.results, 1)
}

func TestDeleteScore(t *testing.T) {
	store := newMemStore()
	store.results["score-1"] = &domain.PlayResult{
		ID: "score-1", UserID: "user-1", GameID: "game-1", FinalScore: 103,
	}
	store.totals["user-1"] = 103
	server := newTestServer(store)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/scores/score-1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	apiResp := decodeResponse(t, resp)
	data, _ := json.Marshal(apiResp.Data)
	var result domain.DeleteResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, int64(103), result.PointsDeducted)
	assert.Equal(t, int64(0), result.UserTotalPoints)
	assert.Empty(t, store.results)
}

func TestDeleteScore_NotFound(t *testing.T) {
	server := newTestServer(newMemStore())
	defer server.Close()

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/scores/missing", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetUserRank(t *testing.T) {
	store := newMemStore()
	store.totals["user-1"] = 200
	store.totals["user-2"] = 300
	server := newTestServer(store)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/users/user-1/rank")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	apiResp := decodeResponse(t, resp)
	data, _ := json.Marshal(apiResp.Data)
	var info domain.RankInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, int64(2), info.Rank)
	assert.Equal(t, int64(200), info.TotalPoints)
}

func TestGetUserRank_NotFound(t *testing.T) {
	server := newTestServer(newMemStore())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/users/missing/rank")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetUserScores(t *testing.T) {
	store := newMemStore()
	store.results["score-1"] = &domain.PlayResult{ID: "score-1", UserID: "user-1", GameID: "game-1", FinalScore: 90}
	server := newTestServer(store)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/users/user-1/scores")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	apiResp := decodeResponse(t, resp)
	data, _ := json.Marshal(apiResp.Data)
	var scores domain.UserScores
	require.NoError(t, json.Unmarshal(data, &scores))
	assert.Len(t, scores.Scores, 1)
	assert.Equal(t, 1, scores.Summary.GamesPlayed)
}

func TestGetGlobalLeaderboard(t *testing.T) {
	store := newMemStore()
	store.totals["user-1"] = 300
	store.totals["user-2"] = 200
	store.totals["user-3"] = 100
	server := newTestServer(store)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/leaderboards/global?limit=2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	apiResp := decodeResponse(t, resp)
	data, _ := json.Marshal(apiResp.Data)
	var entries []domain.GlobalEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "user-1", entries[0].UserID)
	assert.Equal(t, int64(1), entries[0].Rank)
}

func TestGetGameLeaderboard_NotFound(t *testing.T) {
	server := newTestServer(newMemStore())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/leaderboards/games/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	server := newTestServer(newMemStore())
	defer server.Close()

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}
