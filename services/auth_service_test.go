package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"prize-hub/utils"
)

const testPassword = "correct-horse-battery"

func newAuth(t *testing.T, f *fixture) *AuthService {
	t.Helper()
	hasher, err := utils.NewPasswordHasher(utils.Argon2Params{Time: 1, MemoryKB: 1024, Threads: 1, KeyLength: 32})
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := utils.NewTokenManager(strings.Repeat("k", 32), "prize-hub", time.Hour, f.clock)
	if err != nil {
		t.Fatal(err)
	}
	auth := NewAuthService(f.db, hasher, tokens, 5, 15*time.Minute)
	auth.Now = f.clock
	if _, err := auth.CreateAdmin(context.Background(), "ops", testPassword, ""); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	return auth
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	f := newFixture(t)
	auth := newAuth(t, f)
	ctx := context.Background()

	res, err := auth.Login(ctx, "ops", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || !res.ExpiresAt.Equal(f.now.Add(time.Hour)) {
		t.Fatalf("result = %+v", res)
	}
	if res.Admin.LastLoginAt == nil {
		t.Error("last_login_at not stamped")
	}

	admin, err := auth.Verify(ctx, res.Token)
	if err != nil || admin.Username != "ops" {
		t.Fatalf("Verify = %+v, %v", admin, err)
	}
	if _, err := auth.Verify(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty token: got %v", err)
	}
	if _, err := auth.Verify(ctx, res.Token+"x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("tampered token: got %v", err)
	}

	f.now = f.now.Add(2 * time.Hour)
	if _, err := auth.Verify(ctx, res.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired token: got %v", err)
	}
}

func TestLogin_UnknownAndInactiveLookTheSame(t *testing.T) {
	f := newFixture(t)
	auth := newAuth(t, f)
	ctx := context.Background()

	if _, err := auth.Login(ctx, "ghost", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", err)
	}
	if _, err := auth.Login(ctx, "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty credentials: got %v", err)
	}

	res, err := auth.Login(ctx, "ops", testPassword)
	if err != nil {
		t.Fatal(err)
	}
	if err := auth.SetActive(ctx, "ops", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := auth.Login(ctx, "ops", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("inactive user: got %v", err)
	}
	if _, err := auth.Verify(ctx, res.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("token of inactive admin: got %v", err)
	}
	if err := auth.SetActive(ctx, "ghost", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetActive unknown: got %v", err)
	}
}

func TestLogin_LockoutAfterFiveFailures(t *testing.T) {
	f := newFixture(t)
	auth := newAuth(t, f)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := auth.Login(ctx, "ops", "wrong-password-1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}

	// locked even with the right password
	if _, err := auth.Login(ctx, "ops", testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("sixth attempt: got %v", err)
	}

	fifthFailure := f.now
	locked, err := auth.findByUsername(ctx, "ops")
	if err != nil {
		t.Fatal(err)
	}
	want := fifthFailure.Add(15 * time.Minute)
	if locked.LockedUntil == nil || !locked.LockedUntil.Equal(want) {
		t.Fatalf("locked_until = %v, want %s", locked.LockedUntil, want)
	}

	f.now = fifthFailure.Add(14 * time.Minute)
	if _, err := auth.Login(ctx, "ops", testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("still inside the lock: got %v", err)
	}
	f.now = want.Add(-time.Second)
	if _, err := auth.Login(ctx, "ops", testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("one second before expiry: got %v", err)
	}

	f.now = want
	if _, err := auth.Login(ctx, "ops", testPassword); err != nil {
		t.Fatalf("at lock expiry: %v", err)
	}

	admin, err := auth.findByUsername(ctx, "ops")
	if err != nil {
		t.Fatal(err)
	}
	if admin.FailedLoginAttempts != 0 || admin.LockedUntil != nil {
		t.Fatalf("counter not reset: %d %v", admin.FailedLoginAttempts, admin.LockedUntil)
	}
}

func TestLogin_ExpiredLockStartsFreshCount(t *testing.T) {
	f := newFixture(t)
	auth := newAuth(t, f)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = auth.Login(ctx, "ops", "wrong-password-1")
	}
	f.now = f.now.Add(16 * time.Minute)

	if _, err := auth.Login(ctx, "ops", "wrong-password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v", err)
	}
	admin, _ := auth.findByUsername(ctx, "ops")
	if admin.FailedLoginAttempts != 1 || admin.IsLocked(f.now) {
		t.Fatalf("attempts = %d locked = %v", admin.FailedLoginAttempts, admin.IsLocked(f.now))
	}
}

func TestRecordFailure_ConcurrentFailuresAllCount(t *testing.T) {
	f := newFixture(t)
	auth := newAuth(t, f)
	ctx := context.Background()

	// every request loaded the admin before any of them wrote
	snapshot, err := auth.findByUsername(ctx, "ops")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		stale := *snapshot
		if err := auth.recordFailure(ctx, &stale, f.now); err != nil {
			t.Fatalf("recordFailure %d: %v", i, err)
		}
	}
	admin, _ := auth.findByUsername(ctx, "ops")
	if admin.FailedLoginAttempts != 5 || !admin.IsLocked(f.now) {
		t.Fatalf("attempts = %d locked = %v", admin.FailedLoginAttempts, admin.IsLocked(f.now))
	}

	// two requests racing past an expired lock reset it once
	f.now = f.now.Add(20 * time.Minute)
	expired, _ := auth.findByUsername(ctx, "ops")
	for i := 0; i < 2; i++ {
		stale := *expired
		if err := auth.recordFailure(ctx, &stale, f.now); err != nil {
			t.Fatal(err)
		}
	}
	admin, _ = auth.findByUsername(ctx, "ops")
	if admin.FailedLoginAttempts != 2 || admin.LockedUntil != nil {
		t.Fatalf("after expired lock: attempts = %d locked_until = %v", admin.FailedLoginAttempts, admin.LockedUntil)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	auth := newAuth(t, f)
	ctx := context.Background()

	admin, _ := auth.findByUsername(ctx, "ops")
	if err := auth.ChangePassword(ctx, admin.ID, "not-the-password", "brand-new-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current: got %v", err)
	}
	if err := auth.ChangePassword(ctx, admin.ID, testPassword, "short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("short new password: got %v", err)
	}
	if err := auth.ChangePassword(ctx, admin.ID, testPassword, "brand-new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := auth.Login(ctx, "ops", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := auth.Login(ctx, "ops", "brand-new-password"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestCreateAdmin_Rejects(t *testing.T) {
	f := newFixture(t)
	auth := newAuth(t, f)
	ctx := context.Background()

	if _, err := auth.CreateAdmin(ctx, "ops", testPassword, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate: got %v", err)
	}
	if _, err := auth.CreateAdmin(ctx, "other", testPassword, "root"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad role: got %v", err)
	}
	if _, err := auth.CreateAdmin(ctx, "other", "short", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("short password: got %v", err)
	}
}
