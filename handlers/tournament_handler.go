package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/pong-tournament/middleware"
	"github.com/Dosada05/pong-tournament/models"
	"github.com/Dosada05/pong-tournament/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	matchService      services.MatchService
}

func NewTournamentHandler(ts services.TournamentService, ms services.MatchService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		matchService:      ms,
	}
}

type aliasRequest struct {
	Alias string `json:"alias"`
}

// CreateHandler обрабатывает POST /tournaments
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create tournament")
		return
	}

	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.CreatedBy = currentUserID

	created, err := h.tournamentService.CreateTournament(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, created, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /tournaments/{tournamentID}
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetTournamentDetails(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler обрабатывает GET /tournaments?status=&limit=&offset=
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var input services.ListTournamentsInput
	var err error

	if status := r.URL.Query().Get("status"); status != "" {
		input.Status = &status
	}
	if input.Limit, err = readIntQuery(r, "limit", 0); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Offset, err = readIntQuery(r, "offset", 0); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournaments, err := h.tournamentService.ListTournaments(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// JoinHandler обрабатывает POST /tournaments/{tournamentID}/players
func (h *TournamentHandler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input aliasRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	joined, err := h.tournamentService.JoinTournament(r.Context(), id, input.Alias)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, joined, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LeaveHandler обрабатывает DELETE /tournaments/{tournamentID}/players/{alias}
func (h *TournamentHandler) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	alias, err := getStringFromURL(r, "alias")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	left, err := h.tournamentService.LeaveTournament(r.Context(), id, alias)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, left, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartHandler обрабатывает POST /tournaments/{tournamentID}/start (только создатель)
func (h *TournamentHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.creatorTournamentID(w, r)
	if !ok {
		return
	}

	started, err := h.tournamentService.StartTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, started, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeclareChampionHandler обрабатывает POST /tournaments/{tournamentID}/champion (только создатель)
func (h *TournamentHandler) DeclareChampionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.creatorTournamentID(w, r)
	if !ok {
		return
	}

	var input aliasRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	champion, err := h.tournamentService.DeclareChampion(r.Context(), id, input.Alias)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, champion, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatchesHandler обрабатывает GET /tournaments/{tournamentID}/matches?round=
func (h *TournamentHandler) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var round *models.MatchRound
	switch value := models.MatchRound(r.URL.Query().Get("round")); value {
	case "":
	case models.RoundSemifinal, models.RoundFinal:
		round = &value
	default:
		badRequestResponse(w, r, errors.New("round must be semifinal or final"))
		return
	}

	matches, err := h.matchService.ListMatchesByTournament(r.Context(), id, round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// creatorTournamentID reads the tournament id and checks that the caller
// created it. It writes the error response itself.
func (h *TournamentHandler) creatorTournamentID(w http.ResponseWriter, r *http.Request) (int, bool) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return 0, false
	}
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, false
	}
	if err := h.tournamentService.EnsureCreator(r.Context(), id, currentUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return 0, false
	}
	return id, true
}
