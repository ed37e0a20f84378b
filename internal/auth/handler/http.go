// Package handler exposes the auth operations over HTTP. Web clients (any
// Mozilla user-agent) receive the refresh token as an HttpOnly cookie; mobile
// clients receive it in the response body together with their device id.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"taskvault/backend/internal/apperr"
	authservice "taskvault/backend/internal/auth/service"
	"taskvault/backend/internal/server/middleware"
	"taskvault/backend/internal/server/respond"
	userdomain "taskvault/backend/internal/user/domain"
)

const refreshCookieName = "refreshToken"

// deviceIDHeader carries the client's stable device id; clients without one
// get a generated id back in the login response.
const deviceIDHeader = "X-Device-ID"

// UserDirectory is the user lookup needed by the profile endpoint.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*userdomain.User, error)
}

// AuthHandler handles /api/v1/auth.
type AuthHandler struct {
	svc          *authservice.AuthService
	users        UserDirectory
	refreshTTL   time.Duration
	secureCookie bool
}

// NewAuthHandler returns an AuthHandler. secureCookie should be true in
// production so the refresh cookie is HTTPS-only.
func NewAuthHandler(svc *authservice.AuthService, users UserDirectory, refreshTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{svc: svc, users: users, refreshTTL: refreshTTL, secureCookie: secureCookie}
}

// Routes mounts the auth endpoints. requireAuth guards logout and profile.
func (h *AuthHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Get("/device-id", h.DeviceID)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/logout", h.Logout)
		r.Get("/profile", h.Profile)
	})
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Register creates a user and issues a token pair. When the request carries a
// device id header a session is established immediately, like login.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperr.Validation("Invalid request body"))
		return
	}

	var device *authservice.DeviceContext
	if deviceID := r.Header.Get(deviceIDHeader); deviceID != "" {
		d := h.deviceContext(r, deviceID)
		device = &d
	}

	res, err := h.svc.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName, device)
	if err != nil {
		respond.Error(w, err)
		return
	}
	h.writeTokens(w, r, http.StatusCreated, res, "")
}

// Login authenticates and establishes a session for the device.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperr.Validation("Invalid request body"))
		return
	}

	deviceID := r.Header.Get(deviceIDHeader)
	if deviceID == "" {
		deviceID = h.svc.GenerateDeviceID()
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password, h.deviceContext(r, deviceID))
	if err != nil {
		respond.Error(w, err)
		return
	}
	// Mobile clients need the device id back so they can present it on
	// refresh and logout.
	h.writeTokens(w, r, http.StatusOK, res, deviceID)
}

// Refresh rotates the refresh token. Web clients present it via cookie,
// mobile clients in the body; the reply mirrors the transport it arrived on.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var raw string
	fromCookie := false
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		raw = c.Value
		fromCookie = true
	} else {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			raw = req.RefreshToken
		}
	}
	if raw == "" {
		respond.Error(w, apperr.Authentication("Refresh token is required"))
		return
	}

	deviceID := r.Header.Get(deviceIDHeader)
	res, err := h.svc.Refresh(r.Context(), raw, h.deviceContext(r, deviceID))
	if err != nil {
		if fromCookie {
			h.expireRefreshCookie(w)
		}
		respond.Error(w, err)
		return
	}

	if fromCookie {
		h.setRefreshCookie(w, res.RefreshToken)
		respond.Data(w, http.StatusOK, map[string]interface{}{"accessToken": res.AccessToken})
		return
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
	})
}

// Logout revokes the caller's sessions: only the device named by the header,
// or all devices when no header is sent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Authentication("User not authenticated"))
		return
	}
	if err := h.svc.Logout(r.Context(), userID, r.Header.Get(deviceIDHeader)); err != nil {
		respond.Error(w, err)
		return
	}
	if _, err := r.Cookie(refreshCookieName); err == nil {
		h.expireRefreshCookie(w)
	}
	respond.Message(w, http.StatusOK, "Logged out successfully")
}

// Profile returns the authenticated user's record, without the password hash.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Authentication("User not authenticated"))
		return
	}
	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		respond.Error(w, apperr.Database("Failed to look up user", err))
		return
	}
	if user == nil {
		respond.Error(w, apperr.NotFound("User not found"))
		return
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{
		"user": map[string]interface{}{
			"id":         user.ID,
			"email":      user.Email,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"is_active":  user.IsActive,
			"created_at": user.CreatedAt,
			"updated_at": user.UpdatedAt,
		},
	})
}

// DeviceID hands out a fresh opaque device id for clients without one.
func (h *AuthHandler) DeviceID(w http.ResponseWriter, r *http.Request) {
	respond.Data(w, http.StatusOK, map[string]interface{}{"deviceId": h.svc.GenerateDeviceID()})
}

func (h *AuthHandler) deviceContext(r *http.Request, deviceID string) authservice.DeviceContext {
	return authservice.DeviceContext{
		DeviceID:  deviceID,
		UserAgent: r.UserAgent(),
		IPAddress: middleware.ClientIPFromContext(r.Context()),
	}
}

// writeTokens writes the register/login success response. Web clients get
// the refresh token as a cookie; everyone else gets it in the body.
func (h *AuthHandler) writeTokens(w http.ResponseWriter, r *http.Request, status int, res *authservice.AuthResult, deviceID string) {
	if isWebRequest(r) {
		h.setRefreshCookie(w, res.RefreshToken)
		respond.Data(w, status, map[string]interface{}{
			"accessToken": res.AccessToken,
			"user":        res.User,
		})
		return
	}
	data := map[string]interface{}{
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
		"user":         res.User,
	}
	if deviceID != "" {
		data["deviceId"] = deviceID
	}
	respond.Data(w, status, data)
}

func isWebRequest(r *http.Request) bool {
	return strings.Contains(r.UserAgent(), "Mozilla")
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.refreshTTL / time.Second),
	})
}

func (h *AuthHandler) expireRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
