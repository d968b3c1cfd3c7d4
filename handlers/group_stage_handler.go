package handlers

import (
	"context"
	"net/http"

	"github.com/courtside/tournament-engine/models"
)

type GroupStageService interface {
	GenerateGroups(ctx context.Context, tournamentID, categoryID string, config *models.GroupStageConfig) (*models.GroupStage, error)
	GetGroupStage(ctx context.Context, tournamentID, categoryID string) (*models.GroupStage, error)
	MoveParticipantBetweenGroups(ctx context.Context, tournamentID, categoryID, participantID, fromGroupID, toGroupID string) (*models.GroupStage, error)
	SwapParticipantsBetweenGroups(ctx context.Context, tournamentID, categoryID, participantAID, groupAID, participantBID, groupBID string) (*models.GroupStage, error)
	LockGroupsAndGenerateFixtures(ctx context.Context, tournamentID, categoryID string) (*models.GroupStage, error)
	RecordGroupMatchResult(ctx context.Context, tournamentID, categoryID, matchID, winnerID, score string) (*models.GroupStage, error)
	DeleteGroupStage(ctx context.Context, tournamentID, categoryID string) error
}

type GroupStageHandler struct {
	groupStageService GroupStageService
}

func NewGroupStageHandler(gs GroupStageService) *GroupStageHandler {
	return &GroupStageHandler{groupStageService: gs}
}

func (h *GroupStageHandler) respond(w http.ResponseWriter, r *http.Request, status int, stage *models.GroupStage, err error) {
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, status, jsonResponse{"group_stage": stage}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerateHandler обрабатывает POST .../groups. Тело с конфигурацией
// необязательно: без него берётся конфигурация категории.
func (h *GroupStageHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var config *models.GroupStageConfig
	if r.ContentLength != 0 {
		config = &models.GroupStageConfig{}
		if err := readJSON(w, r, config); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	stage, err := h.groupStageService.GenerateGroups(r.Context(), ids[0], ids[1], config)
	h.respond(w, r, http.StatusCreated, stage, err)
}

func (h *GroupStageHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stage, err := h.groupStageService.GetGroupStage(r.Context(), ids[0], ids[1])
	h.respond(w, r, http.StatusOK, stage, err)
}

func (h *GroupStageHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.groupStageService.DeleteGroupStage(r.Context(), ids[0], ids[1]); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupStageHandler) MoveHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		ParticipantID string `json:"participant_id"`
		FromGroupID   string `json:"from_group_id"`
		ToGroupID     string `json:"to_group_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stage, err := h.groupStageService.MoveParticipantBetweenGroups(r.Context(), ids[0], ids[1],
		input.ParticipantID, input.FromGroupID, input.ToGroupID)
	h.respond(w, r, http.StatusOK, stage, err)
}

func (h *GroupStageHandler) SwapHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		ParticipantAID string `json:"participant_a_id"`
		GroupAID       string `json:"group_a_id"`
		ParticipantBID string `json:"participant_b_id"`
		GroupBID       string `json:"group_b_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stage, err := h.groupStageService.SwapParticipantsBetweenGroups(r.Context(), ids[0], ids[1],
		input.ParticipantAID, input.GroupAID, input.ParticipantBID, input.GroupBID)
	h.respond(w, r, http.StatusOK, stage, err)
}

func (h *GroupStageHandler) LockHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stage, err := h.groupStageService.LockGroupsAndGenerateFixtures(r.Context(), ids[0], ids[1])
	h.respond(w, r, http.StatusOK, stage, err)
}

func (h *GroupStageHandler) RecordResultHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := getIDsFromURL(r, "tournamentID", "categoryID", "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input matchResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stage, err := h.groupStageService.RecordGroupMatchResult(r.Context(), ids[0], ids[1], ids[2], input.WinnerID, input.Score)
	h.respond(w, r, http.StatusOK, stage, err)
}
