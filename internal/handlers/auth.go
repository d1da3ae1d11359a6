package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/campusfind/apiserver/internal/auth"
	"github.com/campusfind/apiserver/internal/services"
	"github.com/campusfind/apiserver/internal/store"
	"github.com/campusfind/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const sessionCookieName = "token"

const (
	minPasswordLen = 4
	maxPasswordLen = 72 // bcrypt input limit
	maxNameLen     = 100
)

// AuthHandler provides signup/login endpoints and session middleware.
// Sessions are carried in an HTTP-only cookie whose lifetime matches the
// token's; a bearer header is accepted as a fallback for non-browser
// clients.
type AuthHandler struct {
	userService  *services.UserService
	tokens       *auth.TokenIssuer
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, tokens *auth.TokenIssuer, secureCookie bool, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		userService:  userService,
		tokens:       tokens,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/signup", handler.Signup)
	r.Post("/login", handler.Login)
	r.Post("/federated", handler.Federated)
}

// RequireSession verifies the session credential and injects the user id
// into the request context. Expired and invalid credentials both yield 401,
// with distinct messages so clients can react differently.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := sessionToken(r)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "unauthorized, token missing")
			return
		}

		userID, err := h.tokens.Verify(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				writeFailure(w, http.StatusUnauthorized, "session expired, please log in again")
				return
			}
			h.logger.Warn("rejected invalid session token", "remote_addr", r.RemoteAddr)
			writeFailure(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type FederatedRequest struct {
	ProviderToken string `json:"providerToken"`
}

// Signup creates a password account and logs the user in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if errs := validateSignup(req); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.userService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeFailure(w, http.StatusConflict, "user already exists")
			return
		}
		writeFailure(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.respondWithSession(w, http.StatusCreated, "user registered successfully", user)
}

// Login verifies email/password credentials.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if errs := validateLogin(req); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeFailure(w, http.StatusNotFound, "user does not exist")
		case errors.Is(err, services.ErrFederatedOnly):
			writeFailure(w, http.StatusUnauthorized, "account uses federated sign-in; no password is set")
		case errors.Is(err, services.ErrInvalidCredential):
			writeFailure(w, http.StatusUnauthorized, "invalid password")
		default:
			writeFailure(w, http.StatusServiceUnavailable, "failed to authenticate")
		}
		return
	}

	h.respondWithSession(w, http.StatusOK, "user logged in successfully", user)
}

// Federated verifies a provider-issued identity token and logs the user in,
// creating or linking an account as needed.
func (h *AuthHandler) Federated(w http.ResponseWriter, r *http.Request) {
	var req FederatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.ProviderToken) == "" {
		writeValidationErrors(w, []string{"providerToken is required"})
		return
	}

	user, err := h.userService.LoginWithGoogle(r.Context(), req.ProviderToken)
	if err != nil {
		if errors.Is(err, auth.ErrFederatedVerification) {
			writeFailure(w, http.StatusUnauthorized, "federated identity verification failed")
			return
		}
		writeFailure(w, http.StatusServiceUnavailable, "failed to authenticate")
		return
	}

	h.respondWithSession(w, http.StatusOK, "user logged in successfully", user)
}

// respondWithSession mints the credential, sets the session cookie, and
// writes the auth payload. The cookie is the only server-driven persistence
// of the credential.
func (h *AuthHandler) respondWithSession(w http.ResponseWriter, status int, message string, user types.User) {
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, status, APIResponse{
		Success: true,
		Message: message,
		User:    user,
		Token:   token,
	})
}

func validateSignup(req SignupRequest) []string {
	var errs []string
	if req.Name == "" {
		errs = append(errs, "name is required")
	} else if len(req.Name) > maxNameLen {
		errs = append(errs, fmt.Sprintf("name cannot exceed %d characters", maxNameLen))
	}
	errs = append(errs, validateEmail(req.Email)...)
	errs = append(errs, validatePassword(req.Password)...)
	return errs
}

func validateLogin(req LoginRequest) []string {
	var errs []string
	errs = append(errs, validateEmail(req.Email)...)
	errs = append(errs, validatePassword(req.Password)...)
	return errs
}

func validateEmail(email string) []string {
	if email == "" {
		return []string{"email is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return []string{"email is not valid"}
	}
	return nil
}

func validatePassword(password string) []string {
	switch {
	case password == "":
		return []string{"password is required"}
	case len(password) < minPasswordLen:
		return []string{fmt.Sprintf("password must be at least %d characters long", minPasswordLen)}
	case len(password) > maxPasswordLen:
		return []string{fmt.Sprintf("password cannot exceed %d characters", maxPasswordLen)}
	}
	return nil
}

// sessionToken extracts the credential from the session cookie, falling
// back to an Authorization bearer header.
func sessionToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader == "" {
		return "", errors.New("missing credential")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization header")
	}
	return token, nil
}
