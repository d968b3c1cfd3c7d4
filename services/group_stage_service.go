package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
	"github.com/google/uuid"
)

type GroupStageUpdatePayload struct {
	TournamentID string             `json:"tournament_id"`
	CategoryID   string             `json:"category_id"`
	GroupStage   *models.GroupStage `json:"group_stage,omitempty"`
	Deleted      bool               `json:"deleted,omitempty"`
}

type GroupStageService struct {
	tournaments repositories.TournamentRepository
	stages      repositories.GroupStageRepository
	brackets    repositories.BracketRepository
	tx          repositories.Transactor
	ranking     Ranking
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

func NewGroupStageService(
	tournaments repositories.TournamentRepository,
	stages repositories.GroupStageRepository,
	bracketRepo repositories.BracketRepository,
	tx repositories.Transactor,
	ranking Ranking,
	notifier Notifier,
	logger *slog.Logger,
) *GroupStageService {
	return &GroupStageService{
		tournaments: tournaments,
		stages:      stages,
		brackets:    bracketRepo,
		tx:          tx,
		ranking:     ranking,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateGroups draws a DRAFT group stage for the category. A non-nil
// config overrides and replaces the one stored on the category.
func (s *GroupStageService) GenerateGroups(ctx context.Context, tournamentID, categoryID string, config *models.GroupStageConfig) (*models.GroupStage, error) {
	tournament, category, err := loadTournamentCategory(ctx, s.tournaments, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if !isTournamentEditable(tournament.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrTournamentNotEditable, tournament.Status)
	}

	effective := category.GroupStageConfig
	if config != nil {
		effective = config
	}
	if effective == nil || effective.NumberOfGroups <= 0 {
		return nil, fmt.Errorf("%w: number of groups must be greater than zero", ErrGroupConfigRequired)
	}
	if effective.AdvancePerGroup <= 0 {
		return nil, fmt.Errorf("%w: advance per group must be greater than zero", ErrValidationFailed)
	}

	if category.HasGroupStage {
		return nil, fmt.Errorf("%w: category %s", ErrGroupStageExists, categoryID)
	}
	if _, err := s.stages.FindByTournamentAndCategory(ctx, tournamentID, categoryID); err == nil {
		return nil, fmt.Errorf("%w: category %s", ErrGroupStageExists, categoryID)
	} else if !errors.Is(err, repositories.ErrGroupStageNotFound) {
		return nil, err
	}
	if category.HasBracket {
		return nil, fmt.Errorf("%w: category %s", ErrBracketExists, categoryID)
	}
	if _, err := s.brackets.FindByTournamentAndCategory(ctx, tournamentID, categoryID); err == nil {
		return nil, fmt.Errorf("%w: category %s", ErrBracketExists, categoryID)
	} else if !errors.Is(err, repositories.ErrBracketNotFound) {
		return nil, err
	}
	if len(category.Participants) < effective.NumberOfGroups {
		return nil, fmt.Errorf("%w: %d participants for %d groups", ErrNotEnoughParticipants, len(category.Participants), effective.NumberOfGroups)
	}

	seeded, err := fetchElos(ctx, s.ranking, tournament.TenantID, category.Participants)
	if err != nil {
		return nil, err
	}
	groups, err := brackets.GenerateBalancedGroups(seeded, effective.NumberOfGroups)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	stage := &models.GroupStage{
		ID:           uuid.NewString(),
		TournamentID: tournamentID,
		CategoryID:   categoryID,
		Groups:       groups,
		Status:       models.GroupStageStatusDraft,
	}

	category.HasGroupStage = true
	if config != nil {
		cfg := *config
		category.GroupStageConfig = &cfg
		category.Format = models.FormatHybrid
	}
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.stages.Create(ctx, exec, stage); err != nil {
			return err
		}
		return s.tournaments.UpdateCategory(ctx, exec, tournamentID, *category)
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "Groups generated",
		slog.String("tournament_id", tournamentID),
		slog.String("category_id", categoryID),
		slog.Int("groups", len(groups)),
		slog.Int("participants", len(category.Participants)),
	)
	s.publish(stage)
	return stage, nil
}

func (s *GroupStageService) GetGroupStage(ctx context.Context, tournamentID, categoryID string) (*models.GroupStage, error) {
	stage, err := s.stages.FindByTournamentAndCategory(ctx, tournamentID, categoryID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return stage, nil
}

// loadActive returns the stage only while its tournament still accepts changes.
func (s *GroupStageService) loadActive(ctx context.Context, tournamentID, categoryID string) (*models.GroupStage, error) {
	tournament, _, err := loadTournamentCategory(ctx, s.tournaments, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if !isTournamentEditable(tournament.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrTournamentNotEditable, tournament.Status)
	}
	return s.GetGroupStage(ctx, tournamentID, categoryID)
}

func (s *GroupStageService) loadDraft(ctx context.Context, tournamentID, categoryID string) (*models.GroupStage, error) {
	stage, err := s.loadActive(ctx, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if stage.Status != models.GroupStageStatusDraft {
		return nil, fmt.Errorf("%w: status %s", ErrGroupStageLocked, stage.Status)
	}
	return stage, nil
}

// MoveParticipantBetweenGroups moves one participant, with their standing,
// as long as the two groups end up at most one player apart.
func (s *GroupStageService) MoveParticipantBetweenGroups(ctx context.Context, tournamentID, categoryID, participantID, fromGroupID, toGroupID string) (*models.GroupStage, error) {
	stage, err := s.loadDraft(ctx, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if fromGroupID == toGroupID {
		return nil, ErrSameGroup
	}
	from, to := stage.Group(fromGroupID), stage.Group(toGroupID)
	if from == nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, fromGroupID)
	}
	if to == nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, toGroupID)
	}
	if !from.HasParticipant(participantID) {
		return nil, fmt.Errorf("%w: %s in %s", ErrParticipantNotInGroup, participantID, from.Name)
	}

	fromSize, toSize := len(from.Participants)-1, len(to.Participants)+1
	if diff := fromSize - toSize; diff > 1 || diff < -1 {
		return nil, fmt.Errorf("%w: %s would have %d, %s would have %d", ErrGroupImbalance, from.Name, fromSize, to.Name, toSize)
	}

	standing := models.GroupStanding{PlayerID: participantID}
	if st := from.Standing(participantID); st != nil {
		standing = *st
	}
	*from = withoutParticipant(*from, participantID)
	*to = withParticipant(*to, participantID, standing)

	if err := s.save(ctx, stage); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Participant moved between groups",
		slog.String("group_stage_id", stage.ID),
		slog.String("participant_id", participantID),
		slog.String("from", from.Name),
		slog.String("to", to.Name),
	)
	s.publish(stage)
	return stage, nil
}

// SwapParticipantsBetweenGroups exchanges two participants of different
// groups. Group sizes never change, so no balance check is needed.
func (s *GroupStageService) SwapParticipantsBetweenGroups(ctx context.Context, tournamentID, categoryID, participantAID, groupAID, participantBID, groupBID string) (*models.GroupStage, error) {
	stage, err := s.loadDraft(ctx, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if groupAID == groupBID {
		return nil, ErrSameGroup
	}
	groupA, groupB := stage.Group(groupAID), stage.Group(groupBID)
	if groupA == nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupAID)
	}
	if groupB == nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupBID)
	}
	if !groupA.HasParticipant(participantAID) {
		return nil, fmt.Errorf("%w: %s in %s", ErrParticipantNotInGroup, participantAID, groupA.Name)
	}
	if !groupB.HasParticipant(participantBID) {
		return nil, fmt.Errorf("%w: %s in %s", ErrParticipantNotInGroup, participantBID, groupB.Name)
	}

	standingA := models.GroupStanding{PlayerID: participantAID}
	if st := groupA.Standing(participantAID); st != nil {
		standingA = *st
	}
	standingB := models.GroupStanding{PlayerID: participantBID}
	if st := groupB.Standing(participantBID); st != nil {
		standingB = *st
	}
	*groupA = replaceParticipant(*groupA, participantAID, standingB)
	*groupB = replaceParticipant(*groupB, participantBID, standingA)

	if err := s.save(ctx, stage); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Participants swapped between groups",
		slog.String("group_stage_id", stage.ID),
		slog.String("participant_a", participantAID),
		slog.String("participant_b", participantBID),
	)
	s.publish(stage)
	return stage, nil
}

// LockGroupsAndGenerateFixtures freezes the draw and creates the round robin of every group.
func (s *GroupStageService) LockGroupsAndGenerateFixtures(ctx context.Context, tournamentID, categoryID string) (*models.GroupStage, error) {
	stage, err := s.loadDraft(ctx, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	for _, g := range stage.Groups {
		if len(g.Participants) < 2 {
			return nil, fmt.Errorf("%w: %s has %d", ErrGroupTooSmall, g.Name, len(g.Participants))
		}
	}

	fixtures := 0
	for i := range stage.Groups {
		g := &stage.Groups[i]
		g.Matches = brackets.GenerateRoundRobinFixtures(g.Participants, g.ID)
		fixtures += len(g.Matches)
	}
	stage.Status = models.GroupStageStatusLocked

	if err := s.save(ctx, stage); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Groups locked",
		slog.String("group_stage_id", stage.ID),
		slog.Int("fixtures", fixtures),
	)
	s.publish(stage)
	return stage, nil
}

// RecordGroupMatchResult stores a round-robin result. The score is read
// from the winner's side: "6-4, 3-6, 6-2" means the winner took 6-4 and 6-2.
func (s *GroupStageService) RecordGroupMatchResult(ctx context.Context, tournamentID, categoryID, matchID, winnerID, score string) (*models.GroupStage, error) {
	stage, err := s.loadActive(ctx, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	group := stage.GroupOfMatch(matchID)
	if group == nil {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	match := group.Match(matchID)
	if match.WinnerID != nil {
		return nil, fmt.Errorf("%w: %s", ErrMatchAlreadyDecided, matchID)
	}
	if !match.IsPlayer(winnerID) {
		return nil, fmt.Errorf("%w: %s in match %s", ErrWinnerNotInMatch, winnerID, matchID)
	}
	sets, err := brackets.ParseScore(score)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	loserID := match.Player1ID
	if loserID == winnerID {
		loserID = match.Player2ID
	}
	winner, loser := group.Standing(winnerID), group.Standing(loserID)
	if winner == nil || loser == nil {
		return nil, fmt.Errorf("group %s has no standing for a player of match %s", group.Name, matchID)
	}

	totals := brackets.Totals(sets)
	applyResult(winner, loser, totals)
	group.Standings = brackets.RecalculateStandings(group.Standings)

	playedAt := s.now().UTC()
	match.WinnerID = strPtr(winnerID)
	match.Score = strPtr(score)
	match.MatchDate = &playedAt

	if group.IsComplete() && stage.Status == models.GroupStageStatusLocked {
		stage.Status = models.GroupStageStatusInProgress
	}
	if stage.AllGroupsComplete() {
		stage.Status = models.GroupStageStatusCompleted
	}

	if err := s.save(ctx, stage); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Group match result recorded",
		slog.String("group_stage_id", stage.ID),
		slog.String("group", group.Name),
		slog.String("match_id", matchID),
		slog.String("winner_id", winnerID),
		slog.String("status", string(stage.Status)),
	)
	s.publish(stage)
	return stage, nil
}

func (s *GroupStageService) DeleteGroupStage(ctx context.Context, tournamentID, categoryID string) error {
	tournament, category, err := loadTournamentCategory(ctx, s.tournaments, tournamentID, categoryID)
	if err != nil {
		return err
	}
	if !isTournamentEditable(tournament.Status) {
		return fmt.Errorf("%w: status %s", ErrTournamentNotEditable, tournament.Status)
	}
	stage, err := s.GetGroupStage(ctx, tournamentID, categoryID)
	if err != nil {
		return err
	}
	if stage.HasAnyResult() {
		return fmt.Errorf("%w: category %s", ErrGroupStageHasResults, categoryID)
	}

	category.HasGroupStage = false
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.stages.Delete(ctx, exec, tournamentID, categoryID); err != nil {
			return err
		}
		return s.tournaments.UpdateCategory(ctx, exec, tournamentID, *category)
	})
	if err != nil {
		return handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "Group stage deleted",
		slog.String("tournament_id", tournamentID),
		slog.String("category_id", categoryID),
	)
	notify(s.notifier, tournamentID, brackets.MessageGroupStageUpdated, GroupStageUpdatePayload{
		TournamentID: tournamentID, CategoryID: categoryID, Deleted: true,
	})
	return nil
}

func (s *GroupStageService) save(ctx context.Context, stage *models.GroupStage) error {
	if err := s.stages.Update(ctx, nil, stage); err != nil {
		return handleRepositoryError(err)
	}
	return nil
}

func (s *GroupStageService) publish(stage *models.GroupStage) {
	notify(s.notifier, stage.TournamentID, brackets.MessageGroupStageUpdated, GroupStageUpdatePayload{
		TournamentID: stage.TournamentID, CategoryID: stage.CategoryID, GroupStage: stage,
	})
}

// applyResult adds one decided match to both standings; totals are from
// the winner's side.
func applyResult(winner, loser *models.GroupStanding, totals brackets.ScoreTotals) {
	winner.MatchesPlayed++
	winner.Wins++
	winner.Points += 3
	winner.SetsWon += totals.SetsA
	winner.SetsLost += totals.SetsB
	winner.GamesWon += totals.GamesA
	winner.GamesLost += totals.GamesB
	winner.RefreshDifferences()

	loser.MatchesPlayed++
	loser.Losses++
	loser.SetsWon += totals.SetsB
	loser.SetsLost += totals.SetsA
	loser.GamesWon += totals.GamesB
	loser.GamesLost += totals.GamesA
	loser.RefreshDifferences()
}

// The helpers below rebuild a group instead of editing its slices in place,
// so participants and standings never share backing arrays between groups.

func withoutParticipant(g models.Group, participantID string) models.Group {
	out := g
	out.Participants = make([]string, 0, len(g.Participants))
	for _, p := range g.Participants {
		if p != participantID {
			out.Participants = append(out.Participants, p)
		}
	}
	out.Standings = make([]models.GroupStanding, 0, len(g.Standings))
	for _, st := range g.Standings {
		if st.PlayerID != participantID {
			out.Standings = append(out.Standings, st)
		}
	}
	out.Standings = brackets.RecalculateStandings(out.Standings)
	return out
}

func withParticipant(g models.Group, participantID string, standing models.GroupStanding) models.Group {
	out := g
	out.Participants = append(slices.Clone(g.Participants), participantID)
	standing.PlayerID = participantID
	out.Standings = append(slices.Clone(g.Standings), standing)
	out.Standings = brackets.RecalculateStandings(out.Standings)
	return out
}

func replaceParticipant(g models.Group, participantID string, incoming models.GroupStanding) models.Group {
	out := g
	out.Participants = slices.Clone(g.Participants)
	for i, p := range out.Participants {
		if p == participantID {
			out.Participants[i] = incoming.PlayerID
		}
	}
	out.Standings = slices.Clone(g.Standings)
	for i, st := range out.Standings {
		if st.PlayerID == participantID {
			incoming.Position = st.Position
			out.Standings[i] = incoming
		}
	}
	return out
}
