package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/models"
	"github.com/courtside/tournament-engine/repositories"
)

// Qualifier is a player who made it out of the group stage.
type Qualifier struct {
	UserID    string `json:"user_id"`
	GroupID   string `json:"group_id"`
	GroupSeed int    `json:"group_seed"`
	Position  int    `json:"position"`
}

type KnockoutService struct {
	tournaments repositories.TournamentRepository
	stages      repositories.GroupStageRepository
	tx          repositories.Transactor
	bracketSvc  *BracketService
	logger      *slog.Logger
}

func NewKnockoutService(
	tournaments repositories.TournamentRepository,
	stages repositories.GroupStageRepository,
	tx repositories.Transactor,
	bracketSvc *BracketService,
	logger *slog.Logger,
) *KnockoutService {
	return &KnockoutService{
		tournaments: tournaments,
		stages:      stages,
		tx:          tx,
		bracketSvc:  bracketSvc,
		logger:      logger,
	}
}

// AdvanceToKnockoutPhase takes the top finishers of every group of a
// completed group stage and draws the knockout bracket from them.
func (s *KnockoutService) AdvanceToKnockoutPhase(ctx context.Context, tournamentID, categoryID string) (*models.Bracket, error) {
	tournament, category, err := loadTournamentCategory(ctx, s.tournaments, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if !isTournamentEditable(tournament.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrTournamentNotEditable, tournament.Status)
	}
	stage, err := s.stages.FindByTournamentAndCategory(ctx, tournamentID, categoryID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if stage.Status != models.GroupStageStatusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrGroupStageNotCompleted, stage.Status)
	}
	if category.GroupStageConfig == nil || category.GroupStageConfig.AdvancePerGroup <= 0 {
		return nil, fmt.Errorf("%w: advance per group must be set on category %s", ErrGroupConfigRequired, categoryID)
	}
	if err := s.bracketSvc.ensureNoBracket(ctx, tournamentID, category); err != nil {
		return nil, err
	}

	advance := category.GroupStageConfig.AdvancePerGroup
	qualifiers := markQualifiers(stage, advance)
	if len(qualifiers) < 2 {
		return nil, fmt.Errorf("%w: only %d qualifiers", ErrNotEnoughParticipants, len(qualifiers))
	}

	order := KnockoutSeedOrder(qualifiers, advance)
	bracket, err := s.bracketSvc.buildBracket(ctx, tournamentID, categoryID, order)
	if err != nil {
		return nil, err
	}

	category.HasBracket = true
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.bracketSvc.brackets.Create(ctx, exec, bracket); err != nil {
			return err
		}
		if err := s.stages.Update(ctx, exec, stage); err != nil {
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

	s.logger.InfoContext(ctx, "Knockout bracket generated from groups",
		slog.String("tournament_id", tournamentID),
		slog.String("category_id", categoryID),
		slog.Int("qualifiers", len(qualifiers)),
		slog.Int("advance_per_group", advance),
	)
	notify(s.bracketSvc.notifier, tournamentID, brackets.MessageGroupStageUpdated, GroupStageUpdatePayload{
		TournamentID: tournamentID, CategoryID: categoryID, GroupStage: stage,
	})
	notify(s.bracketSvc.notifier, tournamentID, brackets.MessageBracketUpdated, BracketUpdatePayload{
		TournamentID: tournamentID, CategoryID: categoryID, Bracket: bracket,
	})
	return bracket, nil
}

// markQualifiers flags the top advance standings of every group and returns
// them ordered by group seed, then position.
func markQualifiers(stage *models.GroupStage, advance int) []Qualifier {
	groups := slices.Clone(stage.Groups)
	slices.SortStableFunc(groups, func(a, b models.Group) int { return cmp.Compare(a.Seed, b.Seed) })

	var qualifiers []Qualifier
	for _, g := range groups {
		standings := stage.Group(g.ID).Standings
		ranked := slices.Clone(standings)
		slices.SortStableFunc(ranked, func(a, b models.GroupStanding) int { return cmp.Compare(a.Position, b.Position) })

		for i := 0; i < advance && i < len(ranked); i++ {
			standing := stage.Group(g.ID).Standing(ranked[i].PlayerID)
			standing.QualifiedForKnockout = true
			qualifiers = append(qualifiers, Qualifier{
				UserID:    ranked[i].PlayerID,
				GroupID:   g.ID,
				GroupSeed: g.Seed,
				Position:  ranked[i].Position,
			})
		}
	}
	return qualifiers
}

// KnockoutSeedOrder turns qualifiers into a seed list for the bracket
// generator, best seed first.
//
// With two qualifiers per group, group winners take seeds 1..G by group seed
// and each winner's first-round opponent slot gets the runner-up of a
// partner group (neighbouring pairs for an even G, the next group for an odd
// G), so a winner never meets their own runner-up in round one. Runner-ups
// without a winner opposite them fill the remaining seeds in group order.
// Any other advance count is ordered by (position, group seed).
func KnockoutSeedOrder(qualifiers []Qualifier, advancePerGroup int) []string {
	byFinish := slices.Clone(qualifiers)
	slices.SortStableFunc(byFinish, func(a, b Qualifier) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.GroupSeed, b.GroupSeed))
	})

	var winners, runnersUp []Qualifier
	for _, q := range byFinish {
		switch q.Position {
		case 1:
			winners = append(winners, q)
		case 2:
			runnersUp = append(runnersUp, q)
		}
	}
	if advancePerGroup != 2 || len(winners) != len(runnersUp) || len(winners)+len(runnersUp) != len(byFinish) {
		return qualifierIDs(byFinish)
	}

	groupCount := len(winners)
	total := 2 * groupCount
	size := brackets.NextPowerOfTwo(total)

	slots := make([]string, total)
	used := make([]bool, groupCount)
	for g, w := range winners {
		slots[g] = w.UserID
		opponentSeed := size - g
		if opponentSeed > total {
			continue // первый раунд без соперника
		}
		partner := partnerGroup(g, groupCount)
		slots[opponentSeed-1] = runnersUp[partner].UserID
		used[partner] = true
	}

	next := 0
	for i := groupCount; i < total; i++ {
		if slots[i] != "" {
			continue
		}
		for used[next] {
			next++
		}
		slots[i] = runnersUp[next].UserID
		used[next] = true
	}
	return slots
}

func partnerGroup(g, groupCount int) int {
	if groupCount%2 == 0 {
		return g ^ 1
	}
	return (g + 1) % groupCount
}

func qualifierIDs(qualifiers []Qualifier) []string {
	ids := make([]string, len(qualifiers))
	for i, q := range qualifiers {
		ids[i] = q.UserID
	}
	return ids
}
