package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// qualifiersFor builds two finishers per group: "g<seed>-1" and "g<seed>-2".
func qualifiersFor(groups int) []Qualifier {
	var qs []Qualifier
	for seed := 1; seed <= groups; seed++ {
		for pos := 1; pos <= 2; pos++ {
			qs = append(qs, Qualifier{
				UserID:    fmt.Sprintf("g%d-%d", seed, pos),
				GroupID:   fmt.Sprintf("g%d", seed),
				GroupSeed: seed,
				Position:  pos,
			})
		}
	}
	return qs
}

func TestKnockoutSeedOrderNeverPairsGroupMates(t *testing.T) {
	for groups := 2; groups <= 9; groups++ {
		qs := qualifiersFor(groups)
		groupOf := make(map[string]string)
		for _, q := range qs {
			groupOf[q.UserID] = q.GroupID
		}

		order := KnockoutSeedOrder(qs, 2)
		require.Len(t, order, len(qs))
		require.ElementsMatch(t, qualifierIDs(qs), order)

		// group winners hold the top seeds in group order
		for g := 0; g < groups; g++ {
			assert.Equal(t, fmt.Sprintf("g%d-1", g+1), order[g], "groups=%d", groups)
		}

		size := brackets.NextPowerOfTwo(len(order))
		for _, pair := range brackets.SeedPairs(size) {
			if pair[0] > len(order) || pair[1] > len(order) {
				continue
			}
			a, b := order[pair[0]-1], order[pair[1]-1]
			assert.NotEqual(t, groupOf[a], groupOf[b], "groups=%d: %s vs %s", groups, a, b)
		}
	}
}

func TestKnockoutSeedOrderFourGroups(t *testing.T) {
	order := KnockoutSeedOrder(qualifiersFor(4), 2)
	// (1,8) (4,5) (2,7) (3,6)
	assert.Equal(t, []string{"g1-1", "g2-1", "g3-1", "g4-1", "g3-2", "g4-2", "g1-2", "g2-2"}, order)
}

func TestKnockoutSeedOrderFallsBackToPositionThenGroupSeed(t *testing.T) {
	qs := []Qualifier{
		{UserID: "a1", GroupSeed: 1, Position: 1},
		{UserID: "a2", GroupSeed: 1, Position: 2},
		{UserID: "a3", GroupSeed: 1, Position: 3},
		{UserID: "b1", GroupSeed: 2, Position: 1},
		{UserID: "b2", GroupSeed: 2, Position: 2},
		{UserID: "b3", GroupSeed: 2, Position: 3},
	}
	assert.Equal(t, []string{"a1", "b1", "a2", "b2", "a3", "b3"}, KnockoutSeedOrder(qs, 3))
}

func completeGroupStage(t *testing.T, env *testEnv, tid, cid string) *models.GroupStage {
	t.Helper()
	ctx := context.Background()
	_, err := env.groupSvc.GenerateGroups(ctx, tid, cid, nil)
	require.NoError(t, err)
	stage, err := env.groupSvc.LockGroupsAndGenerateFixtures(ctx, tid, cid)
	require.NoError(t, err)
	for _, g := range stage.Groups {
		for _, m := range g.Matches {
			stage, err = env.groupSvc.RecordGroupMatchResult(ctx, tid, cid, m.ID, m.Player1ID, "6-3, 6-3")
			require.NoError(t, err)
		}
	}
	require.Equal(t, models.GroupStageStatusCompleted, stage.Status)
	return stage
}

func TestAdvanceToKnockoutPhaseFourGroups(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatHybrid, &models.GroupStageConfig{NumberOfGroups: 4, AdvancePerGroup: 2}, numbered(12)...)

	_, err := env.knockoutSvc.AdvanceToKnockoutPhase(ctx, tid, cid)
	require.ErrorIs(t, err, ErrNotFound)

	stage := completeGroupStage(t, env, tid, cid)
	groupOf := make(map[string]string)
	for _, g := range stage.Groups {
		for _, p := range g.Participants {
			groupOf[p] = g.ID
		}
	}

	bracket, err := env.knockoutSvc.AdvanceToKnockoutPhase(ctx, tid, cid)
	require.NoError(t, err)
	assert.Equal(t, models.BracketStatusPending, bracket.Status)
	require.Len(t, bracket.Matches, 7)

	firstRound := 0
	for _, m := range bracket.Matches {
		if m.Round != 3 {
			continue
		}
		firstRound++
		require.Equal(t, 2, m.PlayerCount())
		assert.NotEqual(t, groupOf[*m.Player1ID], groupOf[*m.Player2ID])
	}
	assert.Equal(t, 4, firstRound)

	stored, err := env.groupSvc.GetGroupStage(ctx, tid, cid)
	require.NoError(t, err)
	for _, g := range stored.Groups {
		qualified := 0
		for _, st := range g.Standings {
			if st.QualifiedForKnockout {
				qualified++
				assert.LessOrEqual(t, st.Position, 2)
			}
		}
		assert.Equal(t, 2, qualified, g.Name)
	}
	assert.True(t, env.tournament(t, tid).Category(cid).HasBracket)
	assert.Equal(t, models.TournamentStatusInProgress, env.tournament(t, tid).Status)

	_, err = env.knockoutSvc.AdvanceToKnockoutPhase(ctx, tid, cid)
	require.ErrorIs(t, err, ErrConflict)
}

func TestAdvanceToKnockoutPhaseRequiresCompletedStage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatHybrid, &models.GroupStageConfig{NumberOfGroups: 2, AdvancePerGroup: 1}, numbered(4)...)
	_, err := env.groupSvc.GenerateGroups(ctx, tid, cid, nil)
	require.NoError(t, err)
	_, err = env.groupSvc.LockGroupsAndGenerateFixtures(ctx, tid, cid)
	require.NoError(t, err)

	_, err = env.knockoutSvc.AdvanceToKnockoutPhase(ctx, tid, cid)
	require.ErrorIs(t, err, ErrGroupStageNotCompleted)
}

func TestAdvanceToKnockoutPhaseSingleQualifierPerGroup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tid, cid := env.seedTournament(t, models.FormatHybrid, &models.GroupStageConfig{NumberOfGroups: 2, AdvancePerGroup: 1}, numbered(4)...)
	stage := completeGroupStage(t, env, tid, cid)

	bracket, err := env.knockoutSvc.AdvanceToKnockoutPhase(ctx, tid, cid)
	require.NoError(t, err)
	require.Len(t, bracket.Matches, 1)

	final := bracket.Matches[0]
	assert.Equal(t, stage.Groups[0].Standings[0].PlayerID, *final.Player1ID)
	assert.Equal(t, stage.Groups[1].Standings[0].PlayerID, *final.Player2ID)

	// the knockout final decides the category
	_, err = env.bracketSvc.RecordTournamentMatchResult(ctx, tid, final.ID, *final.Player2ID, "7-6, 7-6")
	require.NoError(t, err)
	category := env.tournament(t, tid).Category(cid)
	assert.Equal(t, *final.Player2ID, *category.ChampionID)
	assert.Equal(t, models.TournamentStatusFinished, env.tournament(t, tid).Status)
}
