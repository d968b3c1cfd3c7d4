package services

import (
	"errors"
	"fmt"

	"github.com/courtside/tournament-engine/repositories"
)

// Категории ошибок. Хендлеры маппят их в HTTP-статусы через errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Not found
var (
	ErrTournamentNotFound    = fmt.Errorf("tournament %w", ErrNotFound)
	ErrCategoryNotFound      = fmt.Errorf("category %w", ErrNotFound)
	ErrBracketNotFound       = fmt.Errorf("bracket %w", ErrNotFound)
	ErrGroupStageNotFound    = fmt.Errorf("group stage %w", ErrNotFound)
	ErrGroupNotFound         = fmt.Errorf("group %w", ErrNotFound)
	ErrMatchNotFound         = fmt.Errorf("match %w", ErrNotFound)
	ErrParticipantNotFound   = fmt.Errorf("participant %w", ErrNotFound)
	ErrParticipantNotInGroup = fmt.Errorf("participant is not in the stated group: %w", ErrNotFound)
)

// Conflicts
var (
	ErrBracketExists           = fmt.Errorf("%w: bracket already exists for this category", ErrConflict)
	ErrGroupStageExists        = fmt.Errorf("%w: group stage already exists for this category", ErrConflict)
	ErrBracketHasResults       = fmt.Errorf("%w: bracket already has results", ErrConflict)
	ErrGroupStageHasResults    = fmt.Errorf("%w: group stage already has results", ErrConflict)
	ErrMatchAlreadyDecided     = fmt.Errorf("%w: match already has a winner", ErrConflict)
	ErrGroupStageLocked        = fmt.Errorf("%w: group stage is no longer in DRAFT", ErrConflict)
	ErrGroupStageNotCompleted  = fmt.Errorf("%w: group stage is not completed", ErrConflict)
	ErrAlreadyEnrolled         = fmt.Errorf("%w: player is already enrolled in this category", ErrConflict)
	ErrEnrollmentClosed        = fmt.Errorf("%w: enrollment is closed", ErrConflict)
	ErrTournamentNotEditable   = fmt.Errorf("%w: tournament is finished or cancelled", ErrConflict)
	ErrCategoryStructureLocked = fmt.Errorf("%w: category format is fixed once a bracket or group stage exists", ErrConflict)
	ErrInvalidStatusTransition = fmt.Errorf("%w: invalid tournament status transition", ErrConflict)
	ErrTournamentNameConflict  = fmt.Errorf("%w: tournament name already exists", ErrConflict)
	ErrConcurrentModification  = fmt.Errorf("%w: modified concurrently, reload and retry", ErrConflict)
)

// Invalid arguments
var (
	ErrValidationFailed      = fmt.Errorf("%w: validation failed", ErrInvalidArgument)
	ErrNotEnoughParticipants = fmt.Errorf("%w: not enough participants", ErrInvalidArgument)
	ErrWinnerNotInMatch      = fmt.Errorf("%w: winner is not a player of this match", ErrInvalidArgument)
	ErrMatchHasNoPlayers     = fmt.Errorf("%w: match has no assigned players", ErrInvalidArgument)
	ErrMatchNotReady         = fmt.Errorf("%w: match is still waiting for an opponent", ErrInvalidArgument)
	ErrGroupImbalance        = fmt.Errorf("%w: groups would differ in size by more than one", ErrInvalidArgument)
	ErrSameGroup             = fmt.Errorf("%w: source and target group are the same", ErrInvalidArgument)
	ErrGroupConfigRequired   = fmt.Errorf("%w: group stage config is required", ErrInvalidArgument)
	ErrGroupTooSmall         = fmt.Errorf("%w: every group needs at least two participants", ErrInvalidArgument)
	ErrEloOutOfRange         = fmt.Errorf("%w: player rating is outside the category band", ErrInvalidArgument)
	ErrInvalidStatus         = fmt.Errorf("%w: invalid tournament status", ErrInvalidArgument)
	ErrFinishedIsAutomatic   = fmt.Errorf("%w: FINISHED is set when every category has a champion", ErrInvalidArgument)
)

// handleRepositoryError converts repository sentinels into the service taxonomy.
// Anything else is returned as is.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrCategoryNotFound):
		return ErrCategoryNotFound
	case errors.Is(err, repositories.ErrBracketNotFound):
		return ErrBracketNotFound
	case errors.Is(err, repositories.ErrGroupStageNotFound):
		return ErrGroupStageNotFound
	case errors.Is(err, repositories.ErrBracketExists):
		return ErrBracketExists
	case errors.Is(err, repositories.ErrGroupStageExists):
		return ErrGroupStageExists
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	case errors.Is(err, repositories.ErrStaleAggregate):
		return ErrConcurrentModification
	}
	return err
}
