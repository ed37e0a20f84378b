package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	auditdomain "taskvault/backend/internal/audit/domain"
	audithandler "taskvault/backend/internal/audit/handler"
	"taskvault/backend/internal/auth/handler"
	authservice "taskvault/backend/internal/auth/service"
	"taskvault/backend/internal/security"
	"taskvault/backend/internal/server"
	sessiondomain "taskvault/backend/internal/session/domain"
	sessionrepo "taskvault/backend/internal/session/repository"
	taskdomain "taskvault/backend/internal/task/domain"
	taskhandler "taskvault/backend/internal/task/handler"
	taskrepo "taskvault/backend/internal/task/repository"
	taskservice "taskvault/backend/internal/task/service"
	userdomain "taskvault/backend/internal/user/domain"
	userrepo "taskvault/backend/internal/user/repository"
)

const (
	webUA    = "Mozilla/5.0 (X11; Linux x86_64)"
	mobileUA = "taskvault-android/1.4"
)

// In-memory repositories backing the full router under test.

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*userdomain.User
}

func (m *memUsers) FindByID(_ context.Context, id string) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id && u.IsActive {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byEmail[email]; ok && u.IsActive {
		return u, nil
	}
	return nil, nil
}

func (m *memUsers) Create(_ context.Context, u *userdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return userrepo.ErrEmailTaken
	}
	m.byEmail[u.Email] = u
	return nil
}

type memSessions struct {
	mu   sync.Mutex
	byID map[string]*sessiondomain.Session
}

func (m *memSessions) Create(_ context.Context, s *sessiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memSessions) FindActiveByFingerprint(_ context.Context, fingerprint string) (*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, s := range m.byID {
		if s.RefreshTokenHash == fingerprint && s.Active(now) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memSessions) Revoke(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[sessionID]; ok {
		s.Revoked = true
	}
	return nil
}

func (m *memSessions) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.UserID == userID {
			s.Revoked = true
		}
	}
	return nil
}

func (m *memSessions) RevokeForDevice(_ context.Context, userID, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.UserID == userID && s.DeviceID == deviceID {
			s.Revoked = true
		}
	}
	return nil
}

func (m *memSessions) Rotate(_ context.Context, oldSessionID string, next *sessiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.byID[oldSessionID]
	if !ok || old.Revoked {
		return sessionrepo.ErrAlreadyRevoked
	}
	old.Revoked = true
	cp := *next
	m.byID[next.ID] = &cp
	return nil
}

func (m *memSessions) TouchLastUsed(_ context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[sessionID]; ok {
		s.LastUsedAt = at
	}
	return nil
}

type memTasks struct {
	mu   sync.Mutex
	byID map[string]*taskdomain.Task
}

func (m *memTasks) Create(_ context.Context, t *taskdomain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTasks) FindByID(_ context.Context, id string) (*taskdomain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byID[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *memTasks) FindByUser(_ context.Context, userID string, _ taskrepo.Filter) ([]*taskdomain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*taskdomain.Task
	for _, t := range m.byID {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTasks) Update(_ context.Context, t *taskdomain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

type memAudit struct{}

func (memAudit) Create(context.Context, *auditdomain.AuditLog) error { return nil }
func (memAudit) ListByUser(context.Context, string, int32, int32) ([]*auditdomain.AuditLog, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	users := &memUsers{byEmail: map[string]*userdomain.User{}}
	sessions := &memSessions{byID: map[string]*sessiondomain.Session{}}
	tasks := &memTasks{byID: map[string]*taskdomain.Task{}}

	tokens, err := security.NewTokenProvider([]byte("access-secret-for-tests"), []byte("refresh-secret-for-tests"))
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	hasher := security.NewHasher(4)
	svc := authservice.NewAuthService(users, sessions, hasher, tokens, 15*time.Minute, 7*24*time.Hour, nil, nil)

	router := server.NewRouter(server.Deps{
		Auth:   handler.NewAuthHandler(svc, users, 7*24*time.Hour, false),
		Tasks:  taskhandler.NewTaskHandler(taskservice.NewTaskService(tasks)),
		Audit:  audithandler.NewAuditHandler(memAudit{}),
		Tokens: tokens,
		Env:    "test",
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
}

func doJSON(t *testing.T, method, url, userAgent string, headers map[string]string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, env
}

func registerMobile(t *testing.T, ts *httptest.Server, email string) envelope {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/register", mobileUA, nil,
		map[string]string{"email": email, "password": "correct-horse-battery"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201 (%s)", resp.StatusCode, env.Error)
	}
	return env
}

func TestRegisterMobileReturnsRefreshInBody(t *testing.T) {
	ts := newTestServer(t)

	env := registerMobile(t, ts, "alice@example.com")
	if !env.Success {
		t.Fatalf("success = false: %s", env.Error)
	}
	if env.Data["accessToken"] == "" || env.Data["refreshToken"] == "" {
		t.Error("mobile register must return both tokens in the body")
	}
	user, ok := env.Data["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected a user object")
	}
	if user["email"] != "alice@example.com" {
		t.Errorf("user email = %v", user["email"])
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash leaked into the response")
	}
}

func TestLoginWebSetsRefreshCookie(t *testing.T) {
	ts := newTestServer(t)
	registerMobile(t, ts, "alice@example.com")

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", webUA, nil,
		map[string]string{"email": "alice@example.com", "password": "correct-horse-battery"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d (%s)", resp.StatusCode, env.Error)
	}
	if _, inBody := env.Data["refreshToken"]; inBody {
		t.Error("web login must not return the refresh token in the body")
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "refreshToken" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected a refreshToken cookie")
	}
	if !cookie.HttpOnly {
		t.Error("refresh cookie must be HttpOnly")
	}
}

func TestLoginMobileReturnsDeviceID(t *testing.T) {
	ts := newTestServer(t)
	registerMobile(t, ts, "alice@example.com")

	_, env := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", mobileUA, nil,
		map[string]string{"email": "alice@example.com", "password": "correct-horse-battery"})
	if env.Data["refreshToken"] == "" {
		t.Error("mobile login must return the refresh token in the body")
	}
	if env.Data["deviceId"] == "" {
		t.Error("mobile login must return the generated device id")
	}
}

func TestRefreshViaBody(t *testing.T) {
	ts := newTestServer(t)
	registerMobile(t, ts, "alice@example.com")
	_, login := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", mobileUA,
		map[string]string{"X-Device-ID": "device-1"},
		map[string]string{"email": "alice@example.com", "password": "correct-horse-battery"})

	refreshToken := login.Data["refreshToken"].(string)
	resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/refresh", mobileUA,
		map[string]string{"X-Device-ID": "device-1"},
		map[string]string{"refreshToken": refreshToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d (%s)", resp.StatusCode, env.Error)
	}
	if env.Data["accessToken"] == "" || env.Data["refreshToken"] == "" {
		t.Error("mobile refresh must return a new pair in the body")
	}
	if env.Data["refreshToken"] == refreshToken {
		t.Error("refresh must rotate the token")
	}

	// The old token is single-use.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/refresh", mobileUA, nil,
		map[string]string{"refreshToken": refreshToken})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("old token refresh status = %d, want 401", resp.StatusCode)
	}
}

func TestRefreshViaCookie(t *testing.T) {
	ts := newTestServer(t)
	registerMobile(t, ts, "alice@example.com")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", webUA, nil,
		map[string]string{"email": "alice@example.com", "password": "correct-horse-battery"})
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "refreshToken" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no refresh cookie from login")
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/auth/refresh", nil)
	req.Header.Set("User-Agent", webUA)
	req.AddCookie(cookie)
	refreshResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	defer refreshResp.Body.Close()
	if refreshResp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d", refreshResp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(refreshResp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, inBody := env.Data["refreshToken"]; inBody {
		t.Error("cookie-based refresh must not put the new refresh token in the body")
	}
	rotated := false
	for _, c := range refreshResp.Cookies() {
		if c.Name == "refreshToken" && c.Value != "" && c.Value != cookie.Value {
			rotated = true
		}
	}
	if !rotated {
		t.Error("expected a rotated refreshToken cookie")
	}
}

func TestProtectedRoutesRequireAccessToken(t *testing.T) {
	ts := newTestServer(t)
	env := registerMobile(t, ts, "alice@example.com")
	access := env.Data["accessToken"].(string)
	refresh := env.Data["refreshToken"].(string)

	// No token.
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/profile", mobileUA, nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}

	// A refresh token is not an access token, even though it is correctly signed.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/profile", mobileUA,
		map[string]string{"Authorization": "Bearer " + refresh}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("refresh token as bearer: status = %d, want 401", resp.StatusCode)
	}

	// The access token works.
	resp, profile := doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/profile", mobileUA,
		map[string]string{"Authorization": "Bearer " + access}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d (%s)", resp.StatusCode, profile.Error)
	}
	user := profile.Data["user"].(map[string]interface{})
	if user["email"] != "alice@example.com" {
		t.Errorf("profile email = %v", user["email"])
	}
}

func TestLogoutRevokesSessions(t *testing.T) {
	ts := newTestServer(t)
	registerMobile(t, ts, "alice@example.com")
	_, login := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", mobileUA,
		map[string]string{"X-Device-ID": "device-1"},
		map[string]string{"email": "alice@example.com", "password": "correct-horse-battery"})
	access := login.Data["accessToken"].(string)
	refresh := login.Data["refreshToken"].(string)

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/logout", mobileUA,
		map[string]string{"Authorization": "Bearer " + access}, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("logout status = %d (%s)", resp.StatusCode, env.Error)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/refresh", mobileUA, nil,
		map[string]string{"refreshToken": refresh})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("refresh after logout: status = %d, want 401", resp.StatusCode)
	}
}

func TestDeviceIDEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/device-id", mobileUA, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("device-id status = %d", resp.StatusCode)
	}
	if env.Data["deviceId"] == "" {
		t.Error("expected a generated device id")
	}
}

func TestTaskCRUDOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	env := registerMobile(t, ts, "alice@example.com")
	auth := map[string]string{"Authorization": "Bearer " + env.Data["accessToken"].(string)}

	resp, created := doJSON(t, http.MethodPost, ts.URL+"/api/v1/tasks/", mobileUA, auth,
		map[string]string{"title": "write report", "priority": "high"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create task status = %d (%s)", resp.StatusCode, created.Error)
	}
	task := created.Data["task"].(map[string]interface{})
	taskID := task["id"].(string)

	resp, done := doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/v1/tasks/%s/complete", ts.URL, taskID), mobileUA, auth, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d (%s)", resp.StatusCode, done.Error)
	}
	completed := done.Data["task"].(map[string]interface{})
	if completed["status"] != "completed" {
		t.Errorf("status = %v, want completed", completed["status"])
	}

	// Another user cannot read it.
	other := registerMobile(t, ts, "mallory@example.com")
	otherAuth := map[string]string{"Authorization": "Bearer " + other.Data["accessToken"].(string)}
	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/tasks/%s/", ts.URL, taskID), mobileUA, otherAuth, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("cross-user get status = %d, want 403", resp.StatusCode)
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	ts := newTestServer(t)
	resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/v1/nope", mobileUA, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if env.Success {
		t.Error("unknown route must return a failure envelope")
	}
}
