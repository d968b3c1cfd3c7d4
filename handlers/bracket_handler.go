package handlers

import (
	"context"
	"net/http"

	"github.com/courtside/tournament-engine/models"
)

type BracketService interface {
	GenerateBracket(ctx context.Context, tournamentID, categoryID string) (*models.Bracket, error)
	GetBracket(ctx context.Context, tournamentID, categoryID string) (*models.Bracket, error)
	RecordTournamentMatchResult(ctx context.Context, tournamentID, matchID, winnerID, score string) (*models.Bracket, error)
	EnrollPlayer(ctx context.Context, tournamentID, categoryID, userID string) error
	DeleteBracket(ctx context.Context, tournamentID, categoryID string) error
}

type KnockoutService interface {
	AdvanceToKnockoutPhase(ctx context.Context, tournamentID, categoryID string) (*models.Bracket, error)
}

type BracketHandler struct {
	bracketService  BracketService
	knockoutService KnockoutService
}

func NewBracketHandler(bs BracketService, ks KnockoutService) *BracketHandler {
	return &BracketHandler{bracketService: bs, knockoutService: ks}
}

type matchResultInput struct {
	WinnerID string `json:"winner_id"`
	Score    string `json:"score"`
}

// EnrollHandler обрабатывает POST .../categories/{categoryID}/participants
func (h *BracketHandler) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		UserID string `json:"user_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.bracketService.EnrollPlayer(r.Context(), ids[0], ids[1], input.UserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BracketHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.bracketService.GenerateBracket(r.Context(), ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.bracketService.GetBracket(r.Context(), ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.bracketService.DeleteBracket(r.Context(), ids[0], ids[1]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecordResultHandler обрабатывает POST /tournaments/{tournamentID}/matches/{matchID}/result
func (h *BracketHandler) RecordResultHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input matchResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.bracketService.RecordTournamentMatchResult(r.Context(), ids[0], ids[1], input.WinnerID, input.Score)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) AdvanceToKnockoutHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.knockoutService.AdvanceToKnockoutPhase(r.Context(), ids[0], ids[1])
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
