package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(Argon2Params{Time: 1, MemoryKB: 1024, Threads: 1, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	return h
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}

	ok, err := h.Verify("correct-horse-battery", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify correct password: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong-horse-battery", encoded)
	if err != nil || ok {
		t.Fatalf("Verify wrong password: ok=%v err=%v", ok, err)
	}
}

func TestPasswordHasher_SaltsDiffer(t *testing.T) {
	h := testHasher(t)
	a, _ := h.Hash("same-password-123")
	b, _ := h.Hash("same-password-123")
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestPasswordHasher_RejectsShortAndMalformed(t *testing.T) {
	h := testHasher(t)
	if _, err := h.Hash("short"); err == nil {
		t.Fatal("expected error for short password")
	}
	if _, err := h.Verify("anything-long", "$bcrypt$nope"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestTokenManager_IssueAndParse(t *testing.T) {
	now := time.Date(2025, 9, 20, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m, err := NewTokenManager(strings.Repeat("x", 32), "prize-hub", 8*time.Hour, clock)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	token, exp, err := m.Issue("admin-1", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(now.Add(8 * time.Hour)) {
		t.Fatalf("expiry = %s", exp)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.AdminID != "admin-1" || claims.Username != "alice" {
		t.Fatalf("claims = %+v", claims)
	}

	now = now.Add(8*time.Hour + time.Second)
	if _, err := m.Parse(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	a, _ := NewTokenManager(strings.Repeat("a", 32), "prize-hub", time.Hour, nil)
	b, _ := NewTokenManager(strings.Repeat("b", 32), "prize-hub", time.Hour, nil)

	token, _, err := a.Issue("admin-1", "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Parse(token); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
	if _, err := a.Parse(token + "x"); err == nil {
		t.Fatal("tampered token must be rejected")
	}
}

func TestOpenDatabase_SQLiteMigrates(t *testing.T) {
	db, err := OpenDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	for _, table := range []string{"competitions", "prize_breakdowns", "participants", "winners", "admin_users", "settings"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}
	if _, err := OpenDatabase("oracle", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
