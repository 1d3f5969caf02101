package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tolet/service/internal/response"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc       *Service
	sessions  *Sessions
	clientURL string
}

// NewHandler creates a new auth Handler. Logout redirects to clientURL.
func NewHandler(svc *Service, sessions *Sessions, clientURL string) *Handler {
	return &Handler{svc: svc, sessions: sessions, clientURL: clientURL}
}

// Routes mounts the auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/session", h.CreateSession)
	r.Get("/login/success", h.LoginSuccess)
	r.Get("/login/failed", h.LoginFailed)
	r.Get("/logout", h.Logout)
}

type sessionBody struct {
	Success bool  `json:"success" example:"true"`
	User    *User `json:"user"`
}

type loginSuccessBody struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"successful"`
	User    *User  `json:"user"`
}

// CreateSession godoc
//
//	@Summary		Start a session
//	@Description	Exchanges an identity-provider token for a session cookie.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	sessionBody
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/auth/session [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		response.Unauthorized(w, "authorization header required")
		return
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		response.Unauthorized(w, "invalid authorization header format")
		return
	}

	u, err := h.svc.Verify(parts[1])
	if err != nil {
		response.Unauthorized(w, err.Error())
		return
	}

	if err := h.sessions.SetUser(w, r, u); err != nil {
		response.InternalError(w, err)
		return
	}
	slog.Info("session started", "user", u.ID)
	response.OK(w, sessionBody{Success: true, User: u})
}

// LoginSuccess godoc
//
//	@Summary		Current user
//	@Description	Returns the signed-in user, or 403 when there is no session.
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	loginSuccessBody
//	@Failure		403	{object}	response.ErrorBody
//	@Router			/auth/login/success [get]
func (h *Handler) LoginSuccess(w http.ResponseWriter, r *http.Request) {
	u := h.sessions.User(r)
	if u == nil {
		response.Forbidden(w, "Not Authorized")
		return
	}
	response.OK(w, loginSuccessBody{Success: true, Message: "successful", User: u})
}

// LoginFailed godoc
//
//	@Summary		Sign-in failure
//	@Tags			auth
//	@Produce		json
//	@Failure		401	{object}	response.ErrorBody
//	@Router			/auth/login/failed [get]
func (h *Handler) LoginFailed(w http.ResponseWriter, r *http.Request) {
	response.Unauthorized(w, "Log in failure")
}

// Logout godoc
//
//	@Summary		Sign out
//	@Description	Clears the session and redirects to the client application.
//	@Tags			auth
//	@Success		302
//	@Router			/auth/logout [get]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(w, r); err != nil {
		response.InternalError(w, err)
		return
	}
	http.Redirect(w, r, h.clientURL, http.StatusFound)
}
