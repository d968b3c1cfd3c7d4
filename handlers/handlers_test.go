package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/courtside/tournament-engine/middleware"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/services"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTournaments struct {
	TournamentService
	createdFor string
	created    services.CreateTournamentInput
	err        error
}

func (s *stubTournaments) CreateTournament(_ context.Context, tenantID string, input services.CreateTournamentInput) (*models.Tournament, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.createdFor, s.created = tenantID, input
	return &models.Tournament{ID: "t-1", TenantID: tenantID, Name: input.Name, Status: models.TournamentStatusDraft}, nil
}

func (s *stubTournaments) GetTournament(_ context.Context, id string) (*models.Tournament, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Tournament{ID: id}, nil
}

type stubBrackets struct {
	BracketService
	tournamentID, matchID, winnerID, score string
	err                                    error
}

func (s *stubBrackets) RecordTournamentMatchResult(_ context.Context, tournamentID, matchID, winnerID, score string) (*models.Bracket, error) {
	s.tournamentID, s.matchID, s.winnerID, s.score = tournamentID, matchID, winnerID, score
	if s.err != nil {
		return nil, s.err
	}
	return &models.Bracket{ID: "b-1", TournamentID: tournamentID}, nil
}

type stubGroups struct {
	GroupStageService
	config *models.GroupStageConfig
	called bool
}

func (s *stubGroups) GenerateGroups(_ context.Context, tournamentID, categoryID string, config *models.GroupStageConfig) (*models.GroupStage, error) {
	s.called, s.config = true, config
	return &models.GroupStage{ID: "gs-1", TournamentID: tournamentID, CategoryID: categoryID}, nil
}

func withTenant(r *http.Request, tenantID string) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), jwt.MapClaims{"tenant_id": tenantID, "user_id": "u-1"}))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateTournamentHandler(t *testing.T) {
	svc := &stubTournaments{}
	h := NewTournamentHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/tournaments",
		strings.NewReader(`{"name":"Autumn Cup","start_date":"2026-11-07T09:00:00Z","end_date":"2026-11-08T18:00:00Z","categories":[{"name":"Men A"}]}`))
	rec := httptest.NewRecorder()
	h.CreateHandler(rec, withTenant(req, "club-1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "club-1", svc.createdFor)
	assert.Equal(t, "Autumn Cup", svc.created.Name)
	require.Len(t, svc.created.Categories, 1)
	assert.Contains(t, decode(t, rec), "tournament")
}

func TestCreateTournamentHandlerRejectsBadInput(t *testing.T) {
	h := NewTournamentHandler(&stubTournaments{})

	rec := httptest.NewRecorder()
	h.CreateHandler(rec, httptest.NewRequest(http.MethodPost, "/tournaments", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, body := range []string{``, `{"name":`, `{"nombre":"x"}`, `{"name":"a"}{"name":"b"}`} {
		rec = httptest.NewRecorder()
		req := withTenant(httptest.NewRequest(http.MethodPost, "/tournaments", strings.NewReader(body)), "club-1")
		h.CreateHandler(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestMapServiceErrorToHTTP(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrTournamentNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: match m-9", services.ErrMatchNotFound), http.StatusNotFound},
		{services.ErrBracketExists, http.StatusConflict},
		{services.ErrConcurrentModification, http.StatusConflict},
		{services.ErrWinnerNotInMatch, http.StatusBadRequest},
		{services.ErrEloOutOfRange, http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}

	rec := httptest.NewRecorder()
	mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: secret detail"))
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestRecordResultHandlerUsesPathParams(t *testing.T) {
	svc := &stubBrackets{}
	h := NewBracketHandler(svc, nil)
	router := chi.NewRouter()
	router.Post("/tournaments/{tournamentID}/matches/{matchID}/result", h.RecordResultHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tournaments/t-1/matches/m-7/result",
		strings.NewReader(`{"winner_id":"p1","score":"6-4 6-3"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t-1", svc.tournamentID)
	assert.Equal(t, "m-7", svc.matchID)
	assert.Equal(t, "p1", svc.winnerID)
	assert.Equal(t, "6-4 6-3", svc.score)

	svc.err = services.ErrMatchAlreadyDecided
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tournaments/t-1/matches/m-7/result",
		strings.NewReader(`{"winner_id":"p1"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGenerateGroupsHandlerConfigIsOptional(t *testing.T) {
	svc := &stubGroups{}
	h := NewGroupStageHandler(svc)
	router := chi.NewRouter()
	router.Post("/tournaments/{tournamentID}/categories/{categoryID}/groups", h.GenerateHandler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tournaments/t-1/categories/c-1/groups", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, svc.called)
	assert.Nil(t, svc.config)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tournaments/t-1/categories/c-1/groups",
		strings.NewReader(`{"number_of_groups":4,"advance_per_group":2}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.config)
	assert.Equal(t, models.GroupStageConfig{NumberOfGroups: 4, AdvancePerGroup: 2}, *svc.config)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://club.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/ws/tournaments/t-1", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://club.example.com")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
