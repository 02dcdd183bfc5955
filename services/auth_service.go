package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"prize-hub/models"
	"prize-hub/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoginResult is returned to the admin client after a successful login.
type LoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Admin     *models.AdminUser `json:"admin"`
}

// AuthService verifies admin credentials, enforces the lockout policy and issues session tokens.
type AuthService struct {
	DB               *gorm.DB
	Hasher           *utils.PasswordHasher
	Tokens           *utils.TokenManager
	LockoutThreshold int
	LockoutDuration  time.Duration
	Now              func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(db *gorm.DB, hasher *utils.PasswordHasher, tokens *utils.TokenManager, threshold int, lockout time.Duration) *AuthService {
	if threshold < 1 {
		threshold = 5
	}
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return &AuthService{
		DB:               db,
		Hasher:           hasher,
		Tokens:           tokens,
		LockoutThreshold: threshold,
		LockoutDuration:  lockout,
		Now:              time.Now,
	}
}

func (s *AuthService) now() time.Time {
	return s.Now().UTC()
}

// burnHash spends the same work as a real verification so unknown usernames are not
// distinguishable by response time.
func (s *AuthService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash(uuid.NewString())
		if err != nil {
			log.Printf("[AUTH] ⚠️ could not prepare dummy hash: %v", err)
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash != "" {
		_, _ = s.Hasher.Verify(password, s.dummyHash)
	}
}

func (s *AuthService) findByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var admin models.AdminUser
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&admin).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// Login checks username and password. Unknown users, wrong passwords and inactive admins
// all fail with ErrInvalidCredentials; a locked account fails with ErrAccountLocked even
// when the password is right.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	admin, err := s.findByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.burnHash(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		log.Printf("[AUTH] ❌ failed to load admin %q: %v", username, err)
		return nil, storageErr(err)
	}
	if !admin.IsActive {
		s.burnHash(password)
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if admin.IsLocked(now) {
		return nil, ErrAccountLocked
	}

	ok, err := s.Hasher.Verify(password, admin.PasswordHash)
	if err != nil {
		log.Printf("[AUTH] ⚠️ stored hash for %q is unreadable: %v", username, err)
		ok = false
	}
	if !ok {
		if err := s.recordFailure(ctx, admin, now); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	err = s.DB.WithContext(ctx).Model(&models.AdminUser{}).Where("id = ?", admin.ID).Updates(map[string]interface{}{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         now,
	}).Error
	if err != nil {
		log.Printf("[AUTH] ❌ failed to reset login state for %q: %v", username, err)
		return nil, storageErr(err)
	}
	admin.FailedLoginAttempts = 0
	admin.LockedUntil = nil
	admin.LastLoginAt = &now

	token, expiresAt, err := s.Tokens.Issue(admin.ID, admin.Username)
	if err != nil {
		log.Printf("[AUTH] ❌ failed to sign token for %q: %v", username, err)
		return nil, err
	}

	log.Printf("[AUTH] ✅ admin %s logged in", admin.Username)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Admin: admin}, nil
}

// recordFailure bumps the failure counter and locks the account once it reaches the threshold.
// A lock that has already expired starts a fresh count. The counter is incremented in SQL so
// concurrent failures are never lost.
func (s *AuthService) recordFailure(ctx context.Context, admin *models.AdminUser, now time.Time) error {
	var locked bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := func() *gorm.DB { return tx.Model(&models.AdminUser{}).Where("id = ?", admin.ID) }

		if admin.LockedUntil != nil {
			// only the first request to see the expired lock resets it
			err := users().Where("failed_login_attempts = ?", admin.FailedLoginAttempts).
				Updates(map[string]interface{}{"failed_login_attempts": 0, "locked_until": nil}).Error
			if err != nil {
				return err
			}
		}

		if err := users().Update("failed_login_attempts", gorm.Expr("failed_login_attempts + 1")).Error; err != nil {
			return err
		}

		res := users().Where("failed_login_attempts >= ? AND locked_until IS NULL", s.LockoutThreshold).
			Update("locked_until", now.Add(s.LockoutDuration))
		if res.Error != nil {
			return res.Error
		}
		locked = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		log.Printf("[AUTH] ❌ failed to record login failure for %q: %v", admin.Username, err)
		return storageErr(err)
	}
	if locked {
		log.Printf("[AUTH] 🔒 admin %s locked until %s after %d failed attempts", admin.Username, now.Add(s.LockoutDuration).Format(time.RFC3339), s.LockoutThreshold)
	}
	return nil
}

// Verify turns a session token into an active admin. A valid signature is not enough:
// the admin must still exist and be active.
func (s *AuthService) Verify(ctx context.Context, token string) (*models.AdminUser, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	var admin models.AdminUser
	err = s.DB.WithContext(ctx).Where("id = ?", claims.AdminID).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		log.Printf("[AUTH] ❌ failed to load admin %s during verify: %v", claims.AdminID, err)
		return nil, storageErr(err)
	}
	if !admin.IsActive {
		return nil, ErrUnauthorized
	}
	return &admin, nil
}

// ChangePassword replaces the admin's password. Tokens issued before the change stay valid
// until they expire.
func (s *AuthService) ChangePassword(ctx context.Context, adminID, current, next string) error {
	var admin models.AdminUser
	err := s.DB.WithContext(ctx).Where("id = ?", adminID).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return storageErr(err)
	}

	ok, err := s.Hasher.Verify(current, admin.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	hash, err := s.Hasher.Hash(next)
	if err != nil {
		return validationErr("%v", err)
	}
	if err := s.DB.WithContext(ctx).Model(&admin).Update("password_hash", hash).Error; err != nil {
		log.Printf("[AUTH] ❌ failed to store new password for %s: %v", admin.Username, err)
		return storageErr(err)
	}

	log.Printf("[AUTH] 🔑 admin %s changed password", admin.Username)
	return nil
}

// CreateAdmin provisions a new admin account. Used by prizectl.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password, role string) (*models.AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 64 {
		return nil, validationErr("username must be 1-64 characters")
	}
	if role == "" {
		role = models.AdminRoleAdmin
	}
	if role != models.AdminRoleAdmin && role != models.AdminRoleOwner {
		return nil, validationErr("unknown role %q", role)
	}

	if _, err := s.findByUsername(ctx, username); err == nil {
		return nil, validationErr("username %q already exists", username)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storageErr(err)
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, validationErr("%v", err)
	}

	admin := &models.AdminUser{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.DB.WithContext(ctx).Create(admin).Error; err != nil {
		return nil, storageErr(err)
	}
	log.Printf("[AUTH] 👤 created admin %s (%s)", admin.Username, admin.Role)
	return admin, nil
}

// SetActive enables or disables an admin. Disabled admins fail Verify immediately.
func (s *AuthService) SetActive(ctx context.Context, username string, active bool) error {
	res := s.DB.WithContext(ctx).Model(&models.AdminUser{}).Where("username = ?", username).Update("is_active", active)
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("admin %w", ErrNotFound)
	}
	return nil
}
