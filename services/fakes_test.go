package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
	"github.com/stretchr/testify/require"
)

// clone deep-copies through JSON, the same way documents round-trip through Postgres.
func clone[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

type memTournamentRepo struct {
	mu    sync.Mutex
	items map[string]models.Tournament
}

func newMemTournamentRepo() *memTournamentRepo {
	return &memTournamentRepo{items: make(map[string]models.Tournament)}
}

func (r *memTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TenantID == t.TenantID && existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.CreatedAt, t.UpdatedAt = time.Now(), time.Now()
	r.items[t.ID] = clone(*t)
	return nil
}

func (r *memTournamentRepo) FindByID(_ context.Context, id string) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	out := clone(t)
	return &out, nil
}

func (r *memTournamentRepo) ListByTenant(_ context.Context, tenantID string) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Tournament{}
	for _, t := range r.items {
		if t.TenantID == tenantID {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func (r *memTournamentRepo) ListDraftsStartedBefore(_ context.Context, now time.Time) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Tournament{}
	for _, t := range r.items {
		if t.Status == models.TournamentStatusDraft && !t.StartDate.After(now) {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func (r *memTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	r.items[t.ID] = clone(*t)
	return nil
}

func (r *memTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id string, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	r.items[id] = t
	return nil
}

func (r *memTournamentRepo) UpdateCategory(_ context.Context, _ repositories.SQLExecutor, tournamentID string, category models.Category) error {
	return r.editCategory(tournamentID, category.ID, func(c *models.Category) { *c = clone(category) })
}

func (r *memTournamentRepo) AddParticipantToCategory(_ context.Context, tournamentID, categoryID, userID string) error {
	return r.editCategory(tournamentID, categoryID, func(c *models.Category) {
		c.Participants = append(c.Participants, userID)
	})
}

func (r *memTournamentRepo) RemoveParticipantFromCategory(_ context.Context, tournamentID, categoryID, userID string) error {
	return r.editCategory(tournamentID, categoryID, func(c *models.Category) {
		kept := []string{}
		for _, p := range c.Participants {
			if p != userID {
				kept = append(kept, p)
			}
		}
		c.Participants = kept
	})
}

func (r *memTournamentRepo) editCategory(tournamentID, categoryID string, edit func(c *models.Category)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[tournamentID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t = clone(t)
	c := t.Category(categoryID)
	if c == nil {
		return repositories.ErrCategoryNotFound
	}
	edit(c)
	r.items[tournamentID] = t
	return nil
}

type memBracketRepo struct {
	mu    sync.Mutex
	items map[string]models.Bracket
}

func newMemBracketRepo() *memBracketRepo {
	return &memBracketRepo{items: make(map[string]models.Bracket)}
}

func (r *memBracketRepo) Create(_ context.Context, _ repositories.SQLExecutor, b *models.Bracket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TournamentID == b.TournamentID && existing.CategoryID == b.CategoryID {
			return repositories.ErrBracketExists
		}
	}
	b.Version = 1
	r.items[b.ID] = clone(*b)
	return nil
}

func (r *memBracketRepo) FindByID(_ context.Context, id string) (*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	out := clone(b)
	return &out, nil
}

func (r *memBracketRepo) FindByTournamentAndCategory(_ context.Context, tournamentID, categoryID string) (*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.items {
		if b.TournamentID == tournamentID && b.CategoryID == categoryID {
			out := clone(b)
			return &out, nil
		}
	}
	return nil, repositories.ErrBracketNotFound
}

func (r *memBracketRepo) ListByTournament(_ context.Context, tournamentID string) ([]models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Bracket{}
	for _, b := range r.items {
		if b.TournamentID == tournamentID {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

func (r *memBracketRepo) Update(_ context.Context, _ repositories.SQLExecutor, b *models.Bracket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[b.ID]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	if stored.Version != b.Version {
		return repositories.ErrStaleAggregate
	}
	b.Version++
	r.items[b.ID] = clone(*b)
	return nil
}

func (r *memBracketRepo) Delete(_ context.Context, _ repositories.SQLExecutor, tournamentID, categoryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, b := range r.items {
		if b.TournamentID == tournamentID && b.CategoryID == categoryID {
			delete(r.items, id)
			return nil
		}
	}
	return repositories.ErrBracketNotFound
}

type memGroupStageRepo struct {
	mu    sync.Mutex
	items map[string]models.GroupStage
}

func newMemGroupStageRepo() *memGroupStageRepo {
	return &memGroupStageRepo{items: make(map[string]models.GroupStage)}
}

func (r *memGroupStageRepo) Create(_ context.Context, _ repositories.SQLExecutor, gs *models.GroupStage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TournamentID == gs.TournamentID && existing.CategoryID == gs.CategoryID {
			return repositories.ErrGroupStageExists
		}
	}
	gs.Version = 1
	r.items[gs.ID] = clone(*gs)
	return nil
}

func (r *memGroupStageRepo) FindByTournamentAndCategory(_ context.Context, tournamentID, categoryID string) (*models.GroupStage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, gs := range r.items {
		if gs.TournamentID == tournamentID && gs.CategoryID == categoryID {
			out := clone(gs)
			return &out, nil
		}
	}
	return nil, repositories.ErrGroupStageNotFound
}

func (r *memGroupStageRepo) Update(_ context.Context, _ repositories.SQLExecutor, gs *models.GroupStage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[gs.ID]
	if !ok {
		return repositories.ErrGroupStageNotFound
	}
	if stored.Version != gs.Version {
		return repositories.ErrStaleAggregate
	}
	gs.Version++
	r.items[gs.ID] = clone(*gs)
	return nil
}

func (r *memGroupStageRepo) Delete(_ context.Context, _ repositories.SQLExecutor, tournamentID, categoryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, gs := range r.items {
		if gs.TournamentID == tournamentID && gs.CategoryID == categoryID {
			delete(r.items, id)
			return nil
		}
	}
	return repositories.ErrGroupStageNotFound
}

type memRankingRepo struct {
	mu    sync.Mutex
	items map[string]models.PlayerRanking
}

func newMemRankingRepo() *memRankingRepo {
	return &memRankingRepo{items: make(map[string]models.PlayerRanking)}
}

func (r *memRankingRepo) key(userID, tenantID string) string { return tenantID + "/" + userID }

func (r *memRankingRepo) FindByUserAndTenant(_ context.Context, userID, tenantID string) (*models.PlayerRanking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.items[r.key(userID, tenantID)]
	if !ok {
		return nil, repositories.ErrRankingNotFound
	}
	return &pr, nil
}

func (r *memRankingRepo) Upsert(_ context.Context, _ repositories.SQLExecutor, pr *models.PlayerRanking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr.UpdatedAt = time.Now()
	r.items[r.key(pr.UserID, pr.TenantID)] = *pr
	return nil
}

func (r *memRankingRepo) set(tenantID, userID string, elo int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.key(userID, tenantID)] = models.PlayerRanking{UserID: userID, TenantID: tenantID, EloScore: elo}
}

type memUserRepo struct {
	users map[string]models.User
	err   error
}

func (r *memUserRepo) FindByIDs(_ context.Context, tenantID string, ids []string) ([]models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := []models.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok && u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

// inlineTx runs fn without a real transaction; the memory repos ignore the executor.
type inlineTx struct{}

func (inlineTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []brackets.WebSocketMessage
	rooms    []string
}

func (n *recordingNotifier) BroadcastToRoom(roomID string, message interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, roomID)
	if msg, ok := message.(brackets.WebSocketMessage); ok {
		n.messages = append(n.messages, msg)
	}
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	for i, m := range n.messages {
		out[i] = m.Type
	}
	return out
}

type fakeArchiver struct {
	calls    int
	archived *models.Tournament
	err      error
}

func (a *fakeArchiver) ArchiveResults(_ context.Context, t *models.Tournament, _ []models.Bracket) (string, error) {
	a.calls++
	a.archived = t
	if a.err != nil {
		return "", a.err
	}
	return "https://archive.test/" + t.ID + ".json", nil
}

const testTenant = "club-1"

type testEnv struct {
	tournaments *memTournamentRepo
	brackets    *memBracketRepo
	stages      *memGroupStageRepo
	rankingRepo *memRankingRepo
	users       *memUserRepo
	notifier    *recordingNotifier
	archiver    *fakeArchiver

	ranking     *RankingService
	bracketSvc  *BracketService
	groupSvc    *GroupStageService
	knockoutSvc *KnockoutService
	tournSvc    *TournamentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		tournaments: newMemTournamentRepo(),
		brackets:    newMemBracketRepo(),
		stages:      newMemGroupStageRepo(),
		rankingRepo: newMemRankingRepo(),
		users:       &memUserRepo{users: map[string]models.User{}},
		notifier:    &recordingNotifier{},
		archiver:    &fakeArchiver{},
	}
	env.ranking = NewRankingService(env.rankingRepo, 1500, logger)
	env.bracketSvc = NewBracketService(env.tournaments, env.brackets, inlineTx{}, env.ranking,
		brackets.NewSingleEliminationGenerator(), env.notifier, env.archiver, logger)
	env.groupSvc = NewGroupStageService(env.tournaments, env.stages, env.brackets, inlineTx{}, env.ranking, env.notifier, logger)
	env.knockoutSvc = NewKnockoutService(env.tournaments, env.stages, inlineTx{}, env.bracketSvc, logger)
	env.tournSvc = NewTournamentService(env.tournaments, env.brackets, env.stages, env.users, logger)
	return env
}

// seedTournament stores a DRAFT tournament with one category holding participants.
func (e *testEnv) seedTournament(t *testing.T, format models.CategoryFormat, cfg *models.GroupStageConfig, participants ...string) (string, string) {
	t.Helper()
	if participants == nil {
		participants = []string{}
	}
	tournament := &models.Tournament{
		ID:        "t-" + t.Name(),
		TenantID:  testTenant,
		Name:      "Spring Open " + t.Name(),
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(72 * time.Hour),
		Status:    models.TournamentStatusDraft,
		Categories: []models.Category{{
			ID:               "cat-1",
			Name:             "Men A",
			Participants:     participants,
			Format:           format,
			GroupStageConfig: cfg,
		}},
	}
	require.NoError(t, e.tournaments.Create(context.Background(), tournament))
	return tournament.ID, "cat-1"
}

func (e *testEnv) tournament(t *testing.T, id string) *models.Tournament {
	t.Helper()
	tournament, err := e.tournaments.FindByID(context.Background(), id)
	require.NoError(t, err)
	return tournament
}

func bracketMatchAt(b *models.Bracket, round, position int) *models.BracketMatch {
	for i := range b.Matches {
		if b.Matches[i].Round == round && b.Matches[i].Position == position {
			return &b.Matches[i]
		}
	}
	return nil
}

func players(ids ...string) []string { return ids }
