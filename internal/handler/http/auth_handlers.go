package httpapi

import (
	"net/http"
	"time"

	"todo-planner/internal/service"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "registration complete",
		"user":    newUserView(user),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    newUserView(user),
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    newUserView(userFrom(r.Context())),
	})
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	user, err := h.auth.UpdateProfile(r.Context(), userFrom(r.Context()), service.ProfileInput{
		Nickname: req.Nickname,
		Timezone: req.Timezone,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    newUserView(user),
	})
}

type linkCodeView struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) createLinkCode(w http.ResponseWriter, r *http.Request) {
	code, expires, err := h.auth.IssueLinkCode(r.Context(), userFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, linkCodeView{Code: code, ExpiresAt: expires})
}

func (h *Handler) unlinkTelegram(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.UnlinkTelegram(r.Context(), userFrom(r.Context())); err != nil {
		fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "telegram unlinked")
}
