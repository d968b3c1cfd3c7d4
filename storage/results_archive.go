package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/courtside/tournament-engine/models"
	"github.com/gosimple/slug"
)

// ArchivedCategory is the per-category section of a results document.
type ArchivedCategory struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	ChampionID *string         `json:"champion_id,omitempty"`
	RunnerUpID *string         `json:"runner_up_id,omitempty"`
	Bracket    *models.Bracket `json:"bracket,omitempty"`
}

type ResultsDocument struct {
	TournamentID string             `json:"tournament_id"`
	TenantID     string             `json:"tenant_id"`
	Name         string             `json:"name"`
	StartDate    time.Time          `json:"start_date"`
	EndDate      time.Time          `json:"end_date"`
	FinishedAt   time.Time          `json:"finished_at"`
	Categories   []ArchivedCategory `json:"categories"`
}

// ResultsArchive writes the final results of a tournament as one JSON object.
type ResultsArchive struct {
	uploader FileUploader
	now      func() time.Time
}

func NewResultsArchive(uploader FileUploader) *ResultsArchive {
	return &ResultsArchive{uploader: uploader, now: time.Now}
}

// ResultsKey builds results/<tenant>/<name-slug>-<id>.json.
func ResultsKey(tournament *models.Tournament) string {
	name := slug.Make(tournament.Name)
	if name == "" {
		name = "tournament"
	}
	return fmt.Sprintf("results/%s/%s-%s.json", slug.Make(tournament.TenantID), name, tournament.ID)
}

// ArchiveResults uploads the document and returns its public URL.
func (a *ResultsArchive) ArchiveResults(ctx context.Context, tournament *models.Tournament, all []models.Bracket) (string, error) {
	byCategory := make(map[string]*models.Bracket, len(all))
	for i := range all {
		byCategory[all[i].CategoryID] = &all[i]
	}

	doc := ResultsDocument{
		TournamentID: tournament.ID,
		TenantID:     tournament.TenantID,
		Name:         tournament.Name,
		StartDate:    tournament.StartDate,
		EndDate:      tournament.EndDate,
		FinishedAt:   a.now().UTC(),
		Categories:   make([]ArchivedCategory, 0, len(tournament.Categories)),
	}
	for _, c := range tournament.Categories {
		doc.Categories = append(doc.Categories, ArchivedCategory{
			ID:         c.ID,
			Name:       c.Name,
			ChampionID: c.ChampionID,
			RunnerUpID: c.RunnerUpID,
			Bracket:    byCategory[c.ID],
		})
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode results of tournament %s: %w", tournament.ID, err)
	}
	result, err := a.uploader.Upload(ctx, ResultsKey(tournament), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return result.Location, nil
}
