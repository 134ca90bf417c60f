package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"saripos/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = passwordHash
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, "123456", userStore)
	if _, err := manager.Login(domain.LoginRequest{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := userStore.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestParseTokenRejectsTamperedToken(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "", nil)

	token, err := manager.sign("admin", "admin", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	other := NewAuthManager("different-secret", time.Hour, "", nil)
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	if _, err := manager.ParseToken(token + "x"); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}

	actor, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsExpiredToken(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "", nil)

	token, err := manager.sign("admin", "admin", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestCreateCashierStoresPasswordHash(t *testing.T) {
	userStore := &userStoreStub{users: map[string]domain.UserAccount{}}

	manager := NewAuthManager("test-secret", time.Hour, "123456", userStore)
	cashier, err := manager.CreateCashier(domain.CashierCreateRequest{
		Username: "Kasirbaru ",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create cashier failed: %v", err)
	}
	if cashier.Username != "kasirbaru" {
		t.Fatalf("expected lowercased trimmed username, got %s", cashier.Username)
	}

	users, err := userStore.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected cashier to be saved, got %d users", len(users))
	}
	if users[0].Password == "pass1234" || !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt hash, got %s", users[0].Password)
	}

	if _, err := manager.Login(domain.LoginRequest{Username: "kasirbaru", Password: "pass1234"}); err != nil {
		t.Fatalf("login with new cashier failed: %v", err)
	}
}

func TestCreateCashierValidation(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "123456", &userStoreStub{})

	cases := []struct {
		name string
		req  domain.CashierCreateRequest
	}{
		{"short username", domain.CashierCreateRequest{Username: "ab", Password: "pass1234"}},
		{"short password", domain.CashierCreateRequest{Username: "validname", Password: "abc"}},
		{"empty", domain.CashierCreateRequest{}},
	}
	for _, tc := range cases {
		if _, err := manager.CreateCashier(tc.req); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "654321", &userStoreStub{})

	if manager.managerPIN == "654321" {
		t.Fatalf("expected manager pin to be stored as hash, got plain-text")
	}
	if !manager.ValidateManagerPIN("654321") {
		t.Fatalf("expected manager pin validation to succeed")
	}
	if manager.ValidateManagerPIN("111111") {
		t.Fatalf("expected wrong manager pin to fail")
	}
	if manager.ValidateManagerPIN("") {
		t.Fatalf("expected empty pin to fail")
	}
}

func TestInactiveAccountCannotLogin(t *testing.T) {
	userStore := &userStoreStub{
		users: map[string]domain.UserAccount{
			"gone": {Username: "gone", Password: "secret99", Role: "cashier", Active: false, CreatedAt: time.Now().UTC()},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, "", userStore)
	if _, err := manager.Login(domain.LoginRequest{Username: "gone", Password: "secret99"}); err == nil {
		t.Fatalf("expected inactive account to be refused")
	}
}
