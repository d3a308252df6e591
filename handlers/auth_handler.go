package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Dosada05/pong-tournament/middleware"
	"github.com/Dosada05/pong-tournament/services"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	authService services.AuthService
	jwtSecret   string
}

func NewAuthHandler(authService services.AuthService, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtSecret:   jwtSecret,
	}
}

// Login обрабатывает POST /auth/signin и выдает JWT создателю турниров
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	user, err := h.authService.Login(r.Context(), input)
	if err != nil {
		if errors.Is(err, services.ErrAuthInvalidCredentials) {
			unauthorizedResponse(w, r, err.Error())
			return
		}
		serverErrorResponse(w, r, err)
		return
	}

	token, err := middleware.IssueToken(h.jwtSecret, user.ID, tokenTTL)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	response := jsonResponse{
		"token":   token,
		"user_id": user.ID,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
