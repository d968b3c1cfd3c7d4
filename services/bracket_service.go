package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
	"github.com/google/uuid"
)

// BracketUpdatePayload is broadcast after every bracket change.
type BracketUpdatePayload struct {
	TournamentID string          `json:"tournament_id"`
	CategoryID   string          `json:"category_id"`
	Bracket      *models.Bracket `json:"bracket,omitempty"`
	Deleted      bool            `json:"deleted,omitempty"`
}

type TournamentFinishedPayload struct {
	TournamentID string            `json:"tournament_id"`
	Categories   []models.Category `json:"categories"`
	ArchiveURL   string            `json:"archive_url,omitempty"`
}

type BracketService struct {
	tournaments repositories.TournamentRepository
	brackets    repositories.BracketRepository
	tx          repositories.Transactor
	ranking     Ranking
	generator   brackets.BracketGenerator
	notifier    Notifier
	archiver    ResultArchiver
	logger      *slog.Logger
	now         func() time.Time
}

// NewBracketService wires the bracket use-cases. notifier and archiver may be nil.
func NewBracketService(
	tournaments repositories.TournamentRepository,
	bracketRepo repositories.BracketRepository,
	tx repositories.Transactor,
	ranking Ranking,
	generator brackets.BracketGenerator,
	notifier Notifier,
	archiver ResultArchiver,
	logger *slog.Logger,
) *BracketService {
	return &BracketService{
		tournaments: tournaments,
		brackets:    bracketRepo,
		tx:          tx,
		ranking:     ranking,
		generator:   generator,
		notifier:    notifier,
		archiver:    archiver,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *BracketService) GenerateBracket(ctx context.Context, tournamentID, categoryID string) (*models.Bracket, error) {
	tournament, category, err := loadTournamentCategory(ctx, s.tournaments, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if !isTournamentEditable(tournament.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrTournamentNotEditable, tournament.Status)
	}
	if len(category.Participants) < 2 {
		return nil, fmt.Errorf("%w: category %s has %d, need at least 2", ErrNotEnoughParticipants, categoryID, len(category.Participants))
	}
	if category.HasGroupStage {
		return nil, fmt.Errorf("%w: category %s plays a group stage, advance it to knockout instead", ErrGroupStageExists, categoryID)
	}
	if err := s.ensureNoBracket(ctx, tournamentID, category); err != nil {
		return nil, err
	}

	seeded, err := fetchElos(ctx, s.ranking, tournament.TenantID, category.Participants)
	if err != nil {
		return nil, err
	}

	bracket, err := s.buildBracket(ctx, tournamentID, categoryID, seedOrder(seeded))
	if err != nil {
		return nil, err
	}

	category.HasBracket = true
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.brackets.Create(ctx, exec, bracket); err != nil {
			return err
		}
		if err := s.tournaments.UpdateCategory(ctx, exec, tournamentID, *category); err != nil {
			return err
		}
		if tournament.Status == models.TournamentStatusDraft {
			return s.tournaments.UpdateStatus(ctx, exec, tournamentID, models.TournamentStatusInProgress)
		}
		return nil
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "Bracket generated",
		slog.String("tournament_id", tournamentID),
		slog.String("category_id", categoryID),
		slog.String("generator", s.generator.GetName()),
		slog.Int("participants", len(category.Participants)),
		slog.Int("matches", len(bracket.Matches)),
	)
	notify(s.notifier, tournamentID, brackets.MessageBracketUpdated, BracketUpdatePayload{
		TournamentID: tournamentID, CategoryID: categoryID, Bracket: bracket,
	})
	return bracket, nil
}

// buildBracket runs the generator over seeded ids and checks the tree shape.
func (s *BracketService) buildBracket(ctx context.Context, tournamentID, categoryID string, seeded []string) (*models.Bracket, error) {
	matches, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		TournamentID: tournamentID,
		CategoryID:   categoryID,
		Participants: seeded,
	})
	if err != nil {
		if errors.Is(err, brackets.ErrNotEnoughParticipants) {
			return nil, fmt.Errorf("%w: %w", ErrNotEnoughParticipants, err)
		}
		return nil, fmt.Errorf("bracket generation failed: %w", err)
	}
	if err := brackets.ValidateTree(matches); err != nil {
		return nil, fmt.Errorf("generated bracket is malformed: %w", err)
	}

	return &models.Bracket{
		ID:           uuid.NewString(),
		TournamentID: tournamentID,
		CategoryID:   categoryID,
		Matches:      matches,
		Status:       models.BracketStatusPending,
	}, nil
}

func (s *BracketService) ensureNoBracket(ctx context.Context, tournamentID string, category *models.Category) error {
	if category.HasBracket {
		return fmt.Errorf("%w: category %s", ErrBracketExists, category.ID)
	}
	_, err := s.brackets.FindByTournamentAndCategory(ctx, tournamentID, category.ID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: category %s", ErrBracketExists, category.ID)
	case errors.Is(err, repositories.ErrBracketNotFound):
		return nil
	default:
		return err
	}
}

func (s *BracketService) GetBracket(ctx context.Context, tournamentID, categoryID string) (*models.Bracket, error) {
	bracket, err := s.brackets.FindByTournamentAndCategory(ctx, tournamentID, categoryID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return bracket, nil
}

// RecordTournamentMatchResult stores the winner of a bracket match, moves
// them forward and settles the category and tournament when the final is played.
func (s *BracketService) RecordTournamentMatchResult(ctx context.Context, tournamentID, matchID, winnerID, score string) (*models.Bracket, error) {
	tournament, err := s.tournaments.FindByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if tournament.Status == models.TournamentStatusCancelled {
		return nil, fmt.Errorf("%w: status %s", ErrTournamentNotEditable, tournament.Status)
	}

	all, err := s.brackets.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	var bracket *models.Bracket
	for i := range all {
		if all[i].Match(matchID) != nil {
			bracket = &all[i]
			break
		}
	}
	if bracket == nil {
		return nil, fmt.Errorf("%w: %s in tournament %s", ErrMatchNotFound, matchID, tournamentID)
	}
	match := bracket.Match(matchID)

	if bracket.IsTrueBye(match) {
		// повторная регистрация BYE ничего не меняет
		if match.WinnerID != nil && *match.WinnerID == winnerID {
			return bracket, nil
		}
		return nil, fmt.Errorf("%w: bye match %s can only be won by %s", ErrWinnerNotInMatch, matchID, derefString(match.WinnerID))
	}
	if match.HasWinner() {
		return nil, fmt.Errorf("%w: %s", ErrMatchAlreadyDecided, matchID)
	}
	switch match.PlayerCount() {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrMatchHasNoPlayers, matchID)
	case 1:
		return nil, fmt.Errorf("%w: %s", ErrMatchNotReady, matchID)
	}
	if !match.IsPlayer(winnerID) {
		return nil, fmt.Errorf("%w: %s in match %s", ErrWinnerNotInMatch, winnerID, matchID)
	}

	score = strings.TrimSpace(score)
	if score != "" {
		if _, err := brackets.ParseScore(score); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}

	loserID := derefString(match.Opponent(winnerID))
	playedAt := s.now().UTC()
	match.WinnerID = strPtr(winnerID)
	if score != "" {
		match.Score = strPtr(score)
	}
	match.MatchDate = &playedAt

	if match.NextMatchID != nil {
		next := bracket.Match(*match.NextMatchID)
		if next == nil {
			return nil, fmt.Errorf("%w: match %s points to missing match %s", brackets.ErrMalformedBracket, matchID, *match.NextMatchID)
		}
		next.PlaceWinner(match.Position, winnerID)
	}

	if bracket.Status == models.BracketStatusPending {
		bracket.Status = models.BracketStatusInProgress
	}

	var (
		category *models.Category
		finished bool
	)
	if bracket.IsComplete() {
		bracket.Status = models.BracketStatusCompleted
		category = tournament.Category(bracket.CategoryID)
		if category == nil {
			return nil, fmt.Errorf("%w: %s in tournament %s", ErrCategoryNotFound, bracket.CategoryID, tournamentID)
		}
		final := bracket.Final()
		category.ChampionID = final.WinnerID
		category.RunnerUpID = final.Opponent(*final.WinnerID)
		finished = tournament.AllCategoriesDecided() && tournament.Status.CanTransitionTo(models.TournamentStatusFinished)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.brackets.Update(ctx, exec, bracket); err != nil {
			return err
		}
		if loserID != "" {
			outcome := models.MatchOutcome{
				WinnerID:     winnerID,
				LoserID:      loserID,
				TenantID:     tournament.TenantID,
				IsTournament: true,
			}
			if err := s.ranking.ProcessMatchResult(ctx, exec, outcome); err != nil {
				return fmt.Errorf("failed to update rankings: %w", err)
			}
		}
		if category != nil {
			if err := s.tournaments.UpdateCategory(ctx, exec, tournamentID, *category); err != nil {
				return err
			}
		}
		if finished {
			return s.tournaments.UpdateStatus(ctx, exec, tournamentID, models.TournamentStatusFinished)
		}
		return nil
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "Bracket match result recorded",
		slog.String("tournament_id", tournamentID),
		slog.String("match_id", matchID),
		slog.String("winner_id", winnerID),
		slog.String("bracket_status", string(bracket.Status)),
	)
	notify(s.notifier, tournamentID, brackets.MessageBracketUpdated, BracketUpdatePayload{
		TournamentID: tournamentID, CategoryID: bracket.CategoryID, Bracket: bracket,
	})

	if finished {
		tournament.Status = models.TournamentStatusFinished
		s.onTournamentFinished(ctx, tournament, all)
	}
	return bracket, nil
}

// onTournamentFinished archives the results and tells viewers. Archive
// failures are logged only: the result itself is already stored.
func (s *BracketService) onTournamentFinished(ctx context.Context, tournament *models.Tournament, all []models.Bracket) {
	payload := TournamentFinishedPayload{TournamentID: tournament.ID, Categories: tournament.Categories}

	if s.archiver != nil {
		location, err := s.archiver.ArchiveResults(ctx, tournament, all)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to archive tournament results",
				slog.String("tournament_id", tournament.ID), slog.Any("error", err))
		} else {
			payload.ArchiveURL = location
		}
	}

	s.logger.InfoContext(ctx, "Tournament finished", slog.String("tournament_id", tournament.ID))
	notify(s.notifier, tournament.ID, brackets.MessageTournamentFinished, payload)
}

func (s *BracketService) EnrollPlayer(ctx context.Context, tournamentID, categoryID, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidationFailed)
	}

	tournament, category, err := loadTournamentCategory(ctx, s.tournaments, tournamentID, categoryID)
	if err != nil {
		return err
	}
	if tournament.Status != models.TournamentStatusDraft {
		return fmt.Errorf("%w: tournament %s is %s", ErrEnrollmentClosed, tournamentID, tournament.Status)
	}
	if err := s.ensureNoBracket(ctx, tournamentID, category); err != nil {
		return err
	}
	if category.HasGroupStage {
		return fmt.Errorf("%w: groups of category %s are already drawn", ErrEnrollmentClosed, categoryID)
	}
	if category.HasParticipant(userID) {
		return fmt.Errorf("%w: %s", ErrAlreadyEnrolled, userID)
	}

	if category.MinElo != nil || category.MaxElo != nil {
		elo, err := s.ranking.EloScore(ctx, userID, tournament.TenantID)
		if err != nil {
			return fmt.Errorf("failed to fetch rating of %s: %w", userID, err)
		}
		if (category.MinElo != nil && elo < *category.MinElo) || (category.MaxElo != nil && elo > *category.MaxElo) {
			return fmt.Errorf("%w: %d", ErrEloOutOfRange, elo)
		}
	}

	if err := s.tournaments.AddParticipantToCategory(ctx, tournamentID, categoryID, userID); err != nil {
		return handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "Player enrolled",
		slog.String("tournament_id", tournamentID),
		slog.String("category_id", categoryID),
		slog.String("user_id", userID),
	)
	return nil
}

// DeleteBracket removes a bracket that has no results yet. Byes resolved by
// the generator do not count as results.
func (s *BracketService) DeleteBracket(ctx context.Context, tournamentID, categoryID string) error {
	_, category, err := loadTournamentCategory(ctx, s.tournaments, tournamentID, categoryID)
	if err != nil {
		return err
	}
	bracket, err := s.brackets.FindByTournamentAndCategory(ctx, tournamentID, categoryID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if bracket.HasAnyResult() {
		return fmt.Errorf("%w: category %s", ErrBracketHasResults, categoryID)
	}

	category.HasBracket = false
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.brackets.Delete(ctx, exec, tournamentID, categoryID); err != nil {
			return err
		}
		return s.tournaments.UpdateCategory(ctx, exec, tournamentID, *category)
	})
	if err != nil {
		return handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "Bracket deleted",
		slog.String("tournament_id", tournamentID),
		slog.String("category_id", categoryID),
	)
	notify(s.notifier, tournamentID, brackets.MessageBracketUpdated, BracketUpdatePayload{
		TournamentID: tournamentID, CategoryID: categoryID, Deleted: true,
	})
	return nil
}
