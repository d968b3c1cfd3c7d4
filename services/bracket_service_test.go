package services

import (
	"context"
	"errors"
	"testing"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFourPlayerTournamentEndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, players("p1", "p2", "p3", "p4")...)

	bracket, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)
	require.Len(t, bracket.Matches, 3)
	assert.Equal(t, models.BracketStatusPending, bracket.Status)
	assert.Equal(t, models.TournamentStatusInProgress, env.tournament(t, tid).Status)

	semi1, semi2 := bracketMatchAt(bracket, 2, 0), bracketMatchAt(bracket, 2, 1)
	assert.Equal(t, "p1", *semi1.Player1ID)
	assert.Equal(t, "p4", *semi1.Player2ID)
	assert.Equal(t, "p2", *semi2.Player1ID)
	assert.Equal(t, "p3", *semi2.Player2ID)

	bracket, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, semi1.ID, "p1", "6-3, 6-4")
	require.NoError(t, err)
	assert.Equal(t, models.BracketStatusInProgress, bracket.Status)

	bracket, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, semi2.ID, "p2", "7-5, 6-7, 10-8")
	require.NoError(t, err)

	final := bracketMatchAt(bracket, 1, 0)
	require.NotNil(t, final.Player1ID)
	require.NotNil(t, final.Player2ID)
	assert.Equal(t, "p1", *final.Player1ID)
	assert.Equal(t, "p2", *final.Player2ID)

	bracket, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, final.ID, "p1", "6-2, 6-2")
	require.NoError(t, err)
	assert.Equal(t, models.BracketStatusCompleted, bracket.Status)

	tournament := env.tournament(t, tid)
	category := tournament.Category(cid)
	require.NotNil(t, category.ChampionID)
	require.NotNil(t, category.RunnerUpID)
	assert.Equal(t, "p1", *category.ChampionID)
	assert.Equal(t, "p2", *category.RunnerUpID)
	assert.Equal(t, models.TournamentStatusFinished, tournament.Status)

	assert.Equal(t, 1, env.archiver.calls)
	assert.Contains(t, env.notifier.types(), brackets.MessageTournamentFinished)
	assert.Contains(t, env.notifier.rooms, brackets.TournamentRoom(tid))

	champion, err := env.ranking.GetRanking(ctx, "p1", testTenant)
	require.NoError(t, err)
	assert.Greater(t, champion.EloScore, 1500)
	assert.Equal(t, 2, champion.MatchesWon)
	assert.Equal(t, 2, champion.TournamentMatches)
}

func TestGenerateBracketSeedsByElo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, players("p1", "p2", "p3", "p4")...)
	env.rankingRepo.set(testTenant, "p3", 1800)
	env.rankingRepo.set(testTenant, "p1", 1400)

	bracket, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)

	// p3 (1800), p2 (1500), p4 (1500), p1 (1400)
	top := bracketMatchAt(bracket, 2, 0)
	assert.Equal(t, "p3", *top.Player1ID)
	assert.Equal(t, "p1", *top.Player2ID)
	bottom := bracketMatchAt(bracket, 2, 1)
	assert.Equal(t, "p2", *bottom.Player1ID)
	assert.Equal(t, "p4", *bottom.Player2ID)
}

func TestGenerateBracketGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("too few participants", func(t *testing.T) {
		env := newTestEnv(t)
		tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, "p1")
		_, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("second bracket", func(t *testing.T) {
		env := newTestEnv(t)
		tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, "p1", "p2")
		_, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
		require.NoError(t, err)
		_, err = env.bracketSvc.GenerateBracket(ctx, tid, cid)
		require.ErrorIs(t, err, ErrConflict)
		require.ErrorIs(t, err, ErrBracketExists)
	})

	t.Run("unknown category", func(t *testing.T) {
		env := newTestEnv(t)
		tid, _ := env.seedTournament(t, models.FormatSingleElimination, nil, "p1", "p2")
		_, err := env.bracketSvc.GenerateBracket(ctx, tid, "nope")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown tournament", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.bracketSvc.GenerateBracket(ctx, "nope", "cat-1")
		require.ErrorIs(t, err, ErrTournamentNotFound)
	})

	t.Run("cancelled tournament", func(t *testing.T) {
		env := newTestEnv(t)
		tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, "p1", "p2")
		require.NoError(t, env.tournaments.UpdateStatus(ctx, nil, tid, models.TournamentStatusCancelled))
		_, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
		require.ErrorIs(t, err, ErrConflict)
	})
}

func TestRecordTournamentMatchResultTwiceIsConflict(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, players("p1", "p2", "p3", "p4")...)
	bracket, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)

	semi := bracketMatchAt(bracket, 2, 0)
	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, semi.ID, "p1", "6-0, 6-0")
	require.NoError(t, err)

	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, semi.ID, "p1", "6-0, 6-0")
	require.ErrorIs(t, err, ErrConflict)
	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, semi.ID, "p4", "6-0, 6-0")
	require.ErrorIs(t, err, ErrMatchAlreadyDecided)
}

func TestRecordTournamentMatchResultOnBye(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, players("p1", "p2", "p3")...)
	bracket, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)

	bye := bracketMatchAt(bracket, 2, 0)
	require.Equal(t, 1, bye.PlayerCount())
	require.Equal(t, "p1", *bye.WinnerID)

	for i := 0; i < 3; i++ {
		again, err := env.bracketSvc.RecordTournamentMatchResult(ctx, tid, bye.ID, "p1", "")
		require.NoError(t, err)
		assert.Equal(t, bracket.Version, again.Version, "bye re-registration must not write")
	}
	stored, err := env.bracketSvc.GetBracket(ctx, tid, cid)
	require.NoError(t, err)
	assert.Equal(t, models.BracketStatusPending, stored.Status)

	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, bye.ID, "p2", "")
	require.ErrorIs(t, err, ErrInvalidArgument)

	// the final only has p1 until p2-p3 is played
	final := bracketMatchAt(bracket, 1, 0)
	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, final.ID, "p1", "6-0, 6-0")
	require.ErrorIs(t, err, ErrMatchNotReady)

	for _, id := range players("p1", "p2", "p3") {
		_, err = env.rankingRepo.FindByUserAndTenant(ctx, id, testTenant)
		require.ErrorIs(t, err, repositories.ErrRankingNotFound, "byes never touch rankings")
	}
}

func TestRecordTournamentMatchResultValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, players("p1", "p2", "p3", "p4")...)
	bracket, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)
	semi := bracketMatchAt(bracket, 2, 0)

	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, semi.ID, "p2", "6-0")
	require.ErrorIs(t, err, ErrWinnerNotInMatch)

	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, semi.ID, "p1", "six-love")
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, err, brackets.ErrInvalidScore)

	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, "missing", "p1", "6-0")
	require.ErrorIs(t, err, ErrNotFound)

	final := bracketMatchAt(bracket, 1, 0)
	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, final.ID, "p1", "6-0")
	require.ErrorIs(t, err, ErrMatchHasNoPlayers)
}

func TestRecordTournamentMatchResultArchiveFailureIsNotReturned(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.archiver.err = errors.New("bucket unavailable")
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, "p1", "p2")
	bracket, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)

	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, bracket.Matches[0].ID, "p2", "6-4, 6-4")
	require.NoError(t, err)
	assert.Equal(t, 1, env.archiver.calls)
	assert.Equal(t, models.TournamentStatusFinished, env.tournament(t, tid).Status)
}

func TestTournamentFinishesOnlyWhenEveryCategoryHasAChampion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, "p1", "p2")
	_, err := env.tournSvc.AddCategory(ctx, tid, CategoryInput{Name: "Women A"})
	require.NoError(t, err)

	bracket, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)
	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, bracket.Matches[0].ID, "p1", "6-4, 6-4")
	require.NoError(t, err)

	tournament := env.tournament(t, tid)
	assert.Equal(t, models.TournamentStatusInProgress, tournament.Status)
	assert.Equal(t, "p1", *tournament.Category(cid).ChampionID)
	assert.Zero(t, env.archiver.calls)
}

func TestEnrollPlayer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, "p1")

	require.NoError(t, env.bracketSvc.EnrollPlayer(ctx, tid, cid, "p2"))
	assert.Equal(t, []string{"p1", "p2"}, env.tournament(t, tid).Category(cid).Participants)

	err := env.bracketSvc.EnrollPlayer(ctx, tid, cid, "p2")
	require.ErrorIs(t, err, ErrAlreadyEnrolled)
	require.ErrorIs(t, err, ErrConflict)

	err = env.bracketSvc.EnrollPlayer(ctx, tid, "nope", "p3")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)
	err = env.bracketSvc.EnrollPlayer(ctx, tid, cid, "p3")
	require.ErrorIs(t, err, ErrConflict)
}

func TestEnrollPlayerRespectsEloBand(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil)
	minElo, maxElo := 1400, 1600
	_, err := env.tournSvc.UpdateCategory(ctx, tid, cid, UpdateCategoryInput{MinElo: &minElo, MaxElo: &maxElo})
	require.NoError(t, err)

	env.rankingRepo.set(testTenant, "strong", 1900)
	err = env.bracketSvc.EnrollPlayer(ctx, tid, cid, "strong")
	require.ErrorIs(t, err, ErrEloOutOfRange)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// unrated players start at the default rating
	require.NoError(t, env.bracketSvc.EnrollPlayer(ctx, tid, cid, "newcomer"))
}

func TestDeleteBracket(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, players("p1", "p2", "p3")...)

	_, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)

	// only the generator-resolved bye is decided
	require.NoError(t, env.bracketSvc.DeleteBracket(ctx, tid, cid))
	assert.False(t, env.tournament(t, tid).Category(cid).HasBracket)
	_, err = env.bracketSvc.GetBracket(ctx, tid, cid)
	require.ErrorIs(t, err, ErrBracketNotFound)

	err = env.bracketSvc.DeleteBracket(ctx, tid, cid)
	require.ErrorIs(t, err, ErrNotFound)

	bracket, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)
	played := bracketMatchAt(bracket, 2, 1)
	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, played.ID, "p2", "6-1, 6-1")
	require.NoError(t, err)

	err = env.bracketSvc.DeleteBracket(ctx, tid, cid)
	require.ErrorIs(t, err, ErrBracketHasResults)
	assert.True(t, env.tournament(t, tid).Category(cid).HasBracket)
}

func TestStaleWriteIsConflict(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatSingleElimination, nil, "p1", "p2")
	_, err := env.bracketSvc.GenerateBracket(ctx, tid, cid)
	require.NoError(t, err)

	first, err := env.brackets.FindByTournamentAndCategory(ctx, tid, cid)
	require.NoError(t, err)
	second, err := env.brackets.FindByTournamentAndCategory(ctx, tid, cid)
	require.NoError(t, err)

	require.NoError(t, env.brackets.Update(ctx, nil, first))
	err = env.brackets.Update(ctx, nil, second)
	require.ErrorIs(t, err, repositories.ErrStaleAggregate)
	require.ErrorIs(t, handleRepositoryError(err), ErrConflict)
}
