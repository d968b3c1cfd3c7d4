package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const unknownPlayerName = "Unknown player"

type CategoryInput struct {
	Name             string                   `json:"name"`
	Gender           string                   `json:"gender"`
	MinElo           *int                     `json:"min_elo"`
	MaxElo           *int                     `json:"max_elo"`
	Format           models.CategoryFormat    `json:"format"`
	GroupStageConfig *models.GroupStageConfig `json:"group_stage_config"`
}

type CreateTournamentInput struct {
	Name       string          `json:"name"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    time.Time       `json:"end_date"`
	Categories []CategoryInput `json:"categories"`
}

// UpdateCategoryInput carries only the fields to change.
type UpdateCategoryInput struct {
	Name             *string                  `json:"name"`
	Gender           *string                  `json:"gender"`
	MinElo           *int                     `json:"min_elo"`
	MaxElo           *int                     `json:"max_elo"`
	Format           *models.CategoryFormat   `json:"format"`
	GroupStageConfig *models.GroupStageConfig `json:"group_stage_config"`
}

type CategoryOverview struct {
	Category   models.Category    `json:"category"`
	Bracket    *models.Bracket    `json:"bracket,omitempty"`
	GroupStage *models.GroupStage `json:"group_stage,omitempty"`
}

type TournamentOverview struct {
	Tournament  *models.Tournament `json:"tournament"`
	Categories  []CategoryOverview `json:"categories"`
	PlayerNames map[string]string  `json:"player_names"`
}

type TournamentService struct {
	tournaments repositories.TournamentRepository
	brackets    repositories.BracketRepository
	stages      repositories.GroupStageRepository
	users       repositories.UserRepository
	logger      *slog.Logger
	now         func() time.Time
}

func NewTournamentService(
	tournaments repositories.TournamentRepository,
	bracketRepo repositories.BracketRepository,
	stages repositories.GroupStageRepository,
	users repositories.UserRepository,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		tournaments: tournaments,
		brackets:    bracketRepo,
		stages:      stages,
		users:       users,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *TournamentService) CreateTournament(ctx context.Context, tenantID string, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidationFailed)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", ErrValidationFailed)
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, fmt.Errorf("%w: end date (%s) is before start date (%s)", ErrValidationFailed,
			input.EndDate.Format(time.RFC3339), input.StartDate.Format(time.RFC3339))
	}
	if len(input.Categories) == 0 {
		return nil, fmt.Errorf("%w: at least one category is required", ErrValidationFailed)
	}

	categories := make([]models.Category, 0, len(input.Categories))
	for _, in := range input.Categories {
		category, err := newCategory(in)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	tournament := &models.Tournament{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Name:       name,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		Status:     models.TournamentStatusDraft,
		Categories: categories,
	}
	if err := s.tournaments.Create(ctx, tournament); err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "Tournament created",
		slog.String("tournament_id", tournament.ID),
		slog.String("tenant_id", tenantID),
		slog.Int("categories", len(categories)),
	)
	return tournament, nil
}

func newCategory(in CategoryInput) (models.Category, error) {
	category := models.Category{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Gender:       in.Gender,
		MinElo:       in.MinElo,
		MaxElo:       in.MaxElo,
		Participants: []string{},
		Format:       in.Format,
	}
	if category.Format == "" {
		category.Format = models.FormatSingleElimination
	}
	if in.GroupStageConfig != nil {
		cfg := *in.GroupStageConfig
		category.GroupStageConfig = &cfg
	}
	return category, validateCategory(category)
}

func validateCategory(c models.Category) error {
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrValidationFailed)
	}
	if !c.Format.IsValid() {
		return fmt.Errorf("%w: unknown category format %q", ErrValidationFailed, c.Format)
	}
	if c.MinElo != nil && c.MaxElo != nil && *c.MinElo > *c.MaxElo {
		return fmt.Errorf("%w: min ELO %d is above max ELO %d", ErrValidationFailed, *c.MinElo, *c.MaxElo)
	}
	if cfg := c.GroupStageConfig; cfg != nil && (cfg.NumberOfGroups <= 0 || cfg.AdvancePerGroup <= 0) {
		return fmt.Errorf("%w: number of groups and advance per group must be positive", ErrValidationFailed)
	}
	return nil
}

func (s *TournamentService) GetTournament(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	tournament, err := s.tournaments.FindByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return tournament, nil
}

func (s *TournamentService) ListTournaments(ctx context.Context, tenantID string) ([]models.Tournament, error) {
	return s.tournaments.ListByTenant(ctx, tenantID)
}

func (s *TournamentService) AddCategory(ctx context.Context, tournamentID string, input CategoryInput) (*models.Category, error) {
	tournament, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !isTournamentEditable(tournament.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrTournamentNotEditable, tournament.Status)
	}
	category, err := newCategory(input)
	if err != nil {
		return nil, err
	}

	tournament.Categories = append(tournament.Categories, category)
	if err := s.tournaments.Update(ctx, tournament); err != nil {
		return nil, handleRepositoryError(err)
	}
	return &category, nil
}

// UpdateCategory changes category details. Format and group-stage config
// are frozen once a bracket or group stage exists.
func (s *TournamentService) UpdateCategory(ctx context.Context, tournamentID, categoryID string, input UpdateCategoryInput) (*models.Category, error) {
	tournament, category, err := loadTournamentCategory(ctx, s.tournaments, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if !isTournamentEditable(tournament.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrTournamentNotEditable, tournament.Status)
	}
	if (input.Format != nil || input.GroupStageConfig != nil) && category.IsStructureLocked() {
		return nil, fmt.Errorf("%w: category %s", ErrCategoryStructureLocked, categoryID)
	}

	updated := *category
	if input.Name != nil {
		updated.Name = strings.TrimSpace(*input.Name)
	}
	if input.Gender != nil {
		updated.Gender = *input.Gender
	}
	if input.MinElo != nil {
		updated.MinElo = input.MinElo
	}
	if input.MaxElo != nil {
		updated.MaxElo = input.MaxElo
	}
	if input.Format != nil {
		updated.Format = *input.Format
	}
	if input.GroupStageConfig != nil {
		cfg := *input.GroupStageConfig
		updated.GroupStageConfig = &cfg
	}
	if err := validateCategory(updated); err != nil {
		return nil, err
	}

	if err := s.tournaments.UpdateCategory(ctx, nil, tournamentID, updated); err != nil {
		return nil, handleRepositoryError(err)
	}
	return &updated, nil
}

// UpdateStatus moves the tournament forward by hand. FINISHED is reserved
// for the bracket lifecycle.
func (s *TournamentService) UpdateStatus(ctx context.Context, tournamentID string, status models.TournamentStatus) (*models.Tournament, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if status == models.TournamentStatusFinished {
		return nil, ErrFinishedIsAutomatic
	}
	tournament, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !tournament.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, tournament.Status, status)
	}
	if tournament.Status == status {
		return tournament, nil
	}

	if err := s.tournaments.UpdateStatus(ctx, nil, tournamentID, status); err != nil {
		return nil, handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "Tournament status changed",
		slog.String("tournament_id", tournamentID),
		slog.String("from", string(tournament.Status)),
		slog.String("to", string(status)),
	)
	tournament.Status = status
	return tournament, nil
}

func (s *TournamentService) RemoveParticipant(ctx context.Context, tournamentID, categoryID, userID string) error {
	_, category, err := loadTournamentCategory(ctx, s.tournaments, tournamentID, categoryID)
	if err != nil {
		return err
	}
	if category.HasBracket {
		return fmt.Errorf("%w: category %s", ErrBracketExists, categoryID)
	}
	if category.HasGroupStage {
		return fmt.Errorf("%w: category %s", ErrGroupStageExists, categoryID)
	}
	if !category.HasParticipant(userID) {
		return fmt.Errorf("%w: %s in category %s", ErrParticipantNotFound, userID, categoryID)
	}
	if err := s.tournaments.RemoveParticipantFromCategory(ctx, tournamentID, categoryID, userID); err != nil {
		return handleRepositoryError(err)
	}
	return nil
}

// GetTournamentOverview loads every category's bracket and group stage in
// parallel and resolves the display names of all players involved.
func (s *TournamentService) GetTournamentOverview(ctx context.Context, tournamentID string) (*TournamentOverview, error) {
	tournament, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	overview := &TournamentOverview{
		Tournament: tournament,
		Categories: make([]CategoryOverview, len(tournament.Categories)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range tournament.Categories {
		overview.Categories[i].Category = category
		if category.HasBracket {
			g.Go(func() error {
				b, err := s.brackets.FindByTournamentAndCategory(gctx, tournamentID, category.ID)
				if err != nil && !errors.Is(err, repositories.ErrBracketNotFound) {
					return fmt.Errorf("failed to load bracket of category %s: %w", category.ID, err)
				}
				overview.Categories[i].Bracket = b
				return nil
			})
		}
		if category.HasGroupStage {
			g.Go(func() error {
				gs, err := s.stages.FindByTournamentAndCategory(gctx, tournamentID, category.ID)
				if err != nil && !errors.Is(err, repositories.ErrGroupStageNotFound) {
					return fmt.Errorf("failed to load group stage of category %s: %w", category.ID, err)
				}
				overview.Categories[i].GroupStage = gs
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	overview.PlayerNames = s.resolvePlayerNames(ctx, tournament.TenantID, overview)
	return overview, nil
}

// resolvePlayerNames never fails: unknown or unreachable users get a placeholder.
func (s *TournamentService) resolvePlayerNames(ctx context.Context, tenantID string, overview *TournamentOverview) map[string]string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; id == "" || ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, c := range overview.Categories {
		for _, p := range c.Category.Participants {
			add(p)
		}
		if c.Bracket != nil {
			for _, m := range c.Bracket.Matches {
				add(derefString(m.Player1ID))
				add(derefString(m.Player2ID))
			}
		}
	}

	names := make(map[string]string, len(ids))
	for _, id := range ids {
		names[id] = unknownPlayerName
	}
	if len(ids) == 0 {
		return names
	}

	users, err := s.users.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to resolve player names", slog.Any("error", err))
		return names
	}
	for i := range users {
		if name := users[i].DisplayName(); name != "" {
			names[users[i].ID] = name
		}
	}
	return names
}

// CloseEnrollmentForStartedTournaments moves DRAFT tournaments whose start
// date has passed to IN_PROGRESS and returns how many were moved.
func (s *TournamentService) CloseEnrollmentForStartedTournaments(ctx context.Context) (int, error) {
	drafts, err := s.tournaments.ListDraftsStartedBefore(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list started drafts: %w", err)
	}

	moved := 0
	for _, t := range drafts {
		if err := s.tournaments.UpdateStatus(ctx, nil, t.ID, models.TournamentStatusInProgress); err != nil {
			s.logger.ErrorContext(ctx, "Failed to close enrollment",
				slog.String("tournament_id", t.ID), slog.Any("error", err))
			continue
		}
		moved++
		s.logger.InfoContext(ctx, "Enrollment closed", slog.String("tournament_id", t.ID), slog.String("name", t.Name))
	}
	return moved, nil
}
