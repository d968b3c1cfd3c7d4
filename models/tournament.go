package models

import "time"

// TournamentStatus представляет статусы турнира.
type TournamentStatus string

const (
	TournamentStatusDraft      TournamentStatus = "DRAFT"
	TournamentStatusInProgress TournamentStatus = "IN_PROGRESS"
	TournamentStatusFinished   TournamentStatus = "FINISHED"
	TournamentStatusCancelled  TournamentStatus = "CANCELLED"
)

// CanTransitionTo reports whether the status may move to next.
// Statuses only move forward; FINISHED and CANCELLED are terminal.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	if s == next {
		return true
	}
	allowed := map[TournamentStatus][]TournamentStatus{
		TournamentStatusDraft:      {TournamentStatusInProgress, TournamentStatusCancelled},
		TournamentStatusInProgress: {TournamentStatusFinished, TournamentStatusCancelled},
		TournamentStatusFinished:   {},
		TournamentStatusCancelled:  {},
	}
	for _, candidate := range allowed[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s TournamentStatus) IsValid() bool {
	switch s {
	case TournamentStatusDraft, TournamentStatusInProgress, TournamentStatusFinished, TournamentStatusCancelled:
		return true
	}
	return false
}

type CategoryFormat string

const (
	FormatSingleElimination CategoryFormat = "SINGLE_ELIMINATION"
	FormatHybrid            CategoryFormat = "HYBRID"
)

func (f CategoryFormat) IsValid() bool {
	return f == FormatSingleElimination || f == FormatHybrid
}

// GroupStageConfig describes how a HYBRID category splits into groups
// and how many players per group go through to the knockout bracket.
type GroupStageConfig struct {
	NumberOfGroups  int `json:"number_of_groups"`
	AdvancePerGroup int `json:"advance_per_group"`
}

type Category struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Gender           string            `json:"gender"`
	MinElo           *int              `json:"min_elo,omitempty"`
	MaxElo           *int              `json:"max_elo,omitempty"`
	Participants     []string          `json:"participants"` // порядок = порядок регистрации
	Format           CategoryFormat    `json:"format"`
	GroupStageConfig *GroupStageConfig `json:"group_stage_config,omitempty"`
	HasBracket       bool              `json:"has_bracket"`
	HasGroupStage    bool              `json:"has_group_stage"`
	ChampionID       *string           `json:"champion_id,omitempty"`
	RunnerUpID       *string           `json:"runner_up_id,omitempty"`
}

// IsStructureLocked reports whether format and group-stage config are frozen.
func (c *Category) IsStructureLocked() bool {
	return c.HasBracket || c.HasGroupStage
}

func (c *Category) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Tournament представляет турнир клуба.
type Tournament struct {
	ID         string           `json:"id"`
	TenantID   string           `json:"tenant_id"`
	Name       string           `json:"name"`
	StartDate  time.Time        `json:"start_date"`
	EndDate    time.Time        `json:"end_date"`
	Status     TournamentStatus `json:"status"`
	Categories []Category       `json:"categories"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Category returns a pointer into t.Categories so callers can mutate it in place.
func (t *Tournament) Category(categoryID string) *Category {
	for i := range t.Categories {
		if t.Categories[i].ID == categoryID {
			return &t.Categories[i]
		}
	}
	return nil
}

// AllCategoriesDecided is true when every category has a champion.
func (t *Tournament) AllCategoriesDecided() bool {
	if len(t.Categories) == 0 {
		return false
	}
	for _, c := range t.Categories {
		if c.ChampionID == nil {
			return false
		}
	}
	return true
}
