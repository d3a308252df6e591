package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/pong-tournament/middleware"
	"github.com/Dosada05/pong-tournament/services"
)

type MatchHandler struct {
	tournamentService services.TournamentService
	matchService      services.MatchService
}

func NewMatchHandler(ts services.TournamentService, ms services.MatchService) *MatchHandler {
	return &MatchHandler{
		tournamentService: ts,
		matchService:      ms,
	}
}

type matchResultRequest struct {
	UserScore     *int `json:"user_score"`
	OpponentScore *int `json:"opponent_score"`
}

// GetHandler обрабатывает GET /matches/{matchID}
func (h *MatchHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitResultHandler обрабатывает POST /matches/{matchID}/result.
// Токен необязателен: результат создателя турнира сохраняется с его стороны.
func (h *MatchHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input matchResultRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.UserScore == nil || input.OpponentScore == nil {
		badRequestResponse(w, r, errors.New("user_score and opponent_score are required"))
		return
	}

	outcome, err := h.tournamentService.UpdateMatchResults(r.Context(), services.UpdateMatchResultsInput{
		MatchID:        id,
		UserScore:      *input.UserScore,
		OpponentScore:  *input.OpponentScore,
		LoggedInUserID: middleware.OptionalUserID(r.Context()),
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, outcome, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
