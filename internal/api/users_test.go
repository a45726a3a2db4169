package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/friendsincode/heimdall_signage/internal/auth"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

func seedUser(t *testing.T, a *API, email, password string, role models.RoleName) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := a.db.Create(&models.User{
		ID:       "u-" + email,
		Email:    email,
		Password: string(hash),
		Role:     role,
		TenantID: "t1",
	}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func postLogin(t *testing.T, a *API, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.handleLogin(rr, req)
	return rr
}

func TestLoginIssuesUsableToken(t *testing.T) {
	a, _ := newTestAPI(t, wednesdayMorning)
	seedUser(t, a, "admin@example.com", "correct horse", models.RoleAdmin)

	rr := postLogin(t, a, "admin@example.com", "correct horse")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.Email != "admin@example.com" || resp.User.Role != models.RoleAdmin {
		t.Fatalf("unexpected user payload: %+v", resp.User)
	}

	claims, err := auth.Parse(a.jwtSecret, resp.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.TenantID != "t1" || !claims.HasRole(string(models.RoleAdmin)) {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLoginSameErrorForUnknownUserAndBadPassword(t *testing.T) {
	a, _ := newTestAPI(t, wednesdayMorning)
	seedUser(t, a, "admin@example.com", "correct horse", models.RoleAdmin)

	unknown := postLogin(t, a, "nobody@example.com", "whatever")
	badPass := postLogin(t, a, "admin@example.com", "wrong")

	if unknown.Code != 401 || badPass.Code != 401 {
		t.Fatalf("expected 401/401, got %d/%d", unknown.Code, badPass.Code)
	}
	if unknown.Body.String() != badPass.Body.String() {
		t.Fatalf("failure shapes differ: %s vs %s", unknown.Body.String(), badPass.Body.String())
	}
}

func TestUsersCreateRejectsShortPasswordAndBadRole(t *testing.T) {
	a, _ := newTestAPI(t, wednesdayMorning)

	rr, req := newAdminRequest(t, "POST", "/api/v1/users", map[string]string{
		"email": "new@example.com", "password": "short", "role": "admin",
	})
	a.handleUsersCreate(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for short password, got %d", rr.Code)
	}

	rr, req = newAdminRequest(t, "POST", "/api/v1/users", map[string]string{
		"email": "new@example.com", "password": "long enough", "role": "superuser",
	})
	a.handleUsersCreate(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for unknown role, got %d", rr.Code)
	}
}

func TestUsersCreateStoresHashedPassword(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)

	rr, req := newAdminRequest(t, "POST", "/api/v1/users", map[string]string{
		"email": "new@example.com", "password": "long enough", "role": "viewer",
	})
	a.handleUsersCreate(rr, req)
	if rr.Code != 201 {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	var user models.User
	if err := db.First(&user, "email = ?", "new@example.com").Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.Password == "long enough" {
		t.Fatal("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("long enough")) != nil {
		t.Fatal("stored hash does not verify")
	}
}
