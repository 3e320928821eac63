// internal/httpserver/routes_auth.go
//
// Account endpoints and the auth middleware.
//   - POST /auth/register        → create account, returns {token, email}
//   - POST /auth/login           → returns {token, email}
//   - POST /auth/logout          → clears the auth cookie
//   - GET  /auth/me              → current user (gated)
//   - PUT  /auth/update-email    → re-issues the token (gated)
//   - PUT  /auth/update-password → (gated)
//
// Tokens are returned in the body for header-based clients and also set as
// an HttpOnly cookie.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/mindmaster/internal/auth"
	"github.com/robalobadob/mindmaster/internal/users"
)

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

func currentUser(ctx context.Context) *authUser {
	u, _ := ctx.Value(ctxUserKey{}).(*authUser)
	return u
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRes struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// mountAuthRoutes registers authentication + gated account routes.
func (s *Server) mountAuthRoutes() {
	s.r.Post("/auth/register", s.handleRegister)
	s.r.Post("/auth/login", s.handleLogin)
	s.r.Post("/auth/logout", s.handleLogout)

	s.r.Group(func(r chi.Router) {
		r.Use(s.requireAuth())
		r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, currentUser(r.Context()))
		})
		r.Put("/auth/update-email", s.handleUpdateEmail)
		r.Put("/auth/update-password", s.handleUpdatePassword)
	})
}

// handleRegister validates credentials, creates the user and signs a token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := decode(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json")
		return
	}
	email := auth.NormalizeEmail(body.Email)
	if err := auth.ValidateRegistration(email, body.Password); err != nil {
		writeErr(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		log.Error().Err(err).Msg("hash password")
		writeErr(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	u, err := s.deps.Users.Create(r.Context(), email, hash)
	if errors.Is(err, users.ErrEmailTaken) {
		writeErr(w, http.StatusBadRequest, "Email already registered")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("create user")
		writeErr(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	s.issueToken(w, u.ID, u.Email)
}

// handleLogin checks credentials and signs a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := decode(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json")
		return
	}
	email := auth.NormalizeEmail(body.Email)
	if err := auth.ValidateLogin(email, body.Password); err != nil {
		writeErr(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	u, err := s.deps.Users.FindByEmail(r.Context(), email)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		log.Error().Err(err).Msg("find user")
		writeErr(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, body.Password) {
		writeErr(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	s.issueToken(w, u.ID, u.Email)
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.setAuthCookie(w, "", time.Time{}, -1)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r.Context())
	var body struct {
		NewEmail string `json:"newEmail"`
	}
	if err := decode(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json")
		return
	}
	email := auth.NormalizeEmail(body.NewEmail)
	if err := auth.ValidateEmail(email); err != nil {
		writeErr(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	err := s.deps.Users.UpdateEmail(r.Context(), me.ID, email)
	if errors.Is(err, users.ErrEmailTaken) {
		writeErr(w, http.StatusBadRequest, "Email already in use")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user", me.ID).Msg("update email")
		writeErr(w, http.StatusInternalServerError, "Failed to update email")
		return
	}
	tok, exp, err := s.deps.Tokens.Sign(me.ID, email)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to update email")
		return
	}
	s.setAuthCookie(w, tok, exp, 0)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": tok, "email": email})
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r.Context())
	var body struct {
		NewPassword string `json:"newPassword"`
	}
	if err := decode(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := auth.ValidatePassword(body.NewPassword); err != nil {
		writeErr(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	hash, err := auth.HashPassword(body.NewPassword)
	if err == nil {
		err = s.deps.Users.UpdatePassword(r.Context(), me.ID, hash)
	}
	if err != nil {
		log.Error().Err(err).Str("user", me.ID).Msg("update password")
		writeErr(w, http.StatusInternalServerError, "Failed to update password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// validationMessage maps auth validation errors to the text clients display.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrCredentialsMissing):
		return "Email and password required"
	case errors.Is(err, auth.ErrInvalidEmail):
		return "Invalid email address"
	case errors.Is(err, auth.ErrPasswordTooShort):
		return "Password must be at least 6 characters"
	case errors.Is(err, auth.ErrEmailRequired):
		return "New email is required"
	case errors.Is(err, auth.ErrPasswordRequired):
		return "New password is required"
	}
	return err.Error()
}

// issueToken signs a token, sets the cookie and writes {token, email}.
func (s *Server) issueToken(w http.ResponseWriter, id, email string) {
	tok, exp, err := s.deps.Tokens.Sign(id, email)
	if err != nil {
		log.Error().Err(err).Msg("sign token")
		writeErr(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	s.setAuthCookie(w, tok, exp, 0)
	writeJSON(w, http.StatusOK, tokenRes{Token: tok, Email: email})
}

// setAuthCookie writes (or with maxAge<0 deletes) the auth cookie.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time, maxAge int) {
	sameSite := http.SameSiteLaxMode
	if s.deps.SecureCookies {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: sameSite,
		Expires:  exp,
		MaxAge:   maxAge,
	})
}

// ---------------------------- auth middleware ------------------------------

// resolveUser maps a request's token to a live account, or nil.
func (s *Server) resolveUser(r *http.Request) *authUser {
	claims, err := s.deps.Tokens.Parse(auth.TokenFromRequest(r))
	if err != nil {
		return nil
	}
	// Ensure user still exists
	u, err := s.deps.Users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			log.Warn().Err(err).Str("user", claims.UserID).Msg("resolve token user")
		}
		return nil
	}
	return &authUser{ID: u.ID, Email: u.Email}
}

// requireAuth enforces a valid token and injects authUser into request context.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.TokenFromRequest(r) == "" {
				writeErr(w, http.StatusUnauthorized, "Missing authorization")
				return
			}
			u := s.resolveUser(r)
			if u == nil {
				writeErr(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// withOptionalAuth decorates requests with user context if a valid token is present.
// It never 401s; used for routes where guests are allowed.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.TokenFromRequest(r) != "" {
				if u := s.resolveUser(r); u != nil {
					r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
