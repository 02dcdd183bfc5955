package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"

	"prize-hub/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultHeroPromoDays = 7

// PublicConfig is the typed view of the settings consumed by the prize page.
type PublicConfig struct {
	HeroPromoDaysBeforeStart int    `json:"hero_promo_days_before_start"`
	CacheVersion             string `json:"cache_version"`
	LeaderboardEnabled       bool   `json:"leaderboard_enabled"`
}

// SettingsService is the generic key/value configuration store.
type SettingsService struct {
	DB          *gorm.DB
	Validator   *Validator
	BuildMarker string
}

func NewSettingsService(db *gorm.DB, v *Validator, buildMarker string) *SettingsService {
	return &SettingsService{DB: db, Validator: v, BuildMarker: buildMarker}
}

// Put upserts one setting. The value may be any JSON document.
func (s *SettingsService) Put(ctx context.Context, in SettingInput) (*models.Setting, error) {
	in.Key = strings.TrimSpace(in.Key)
	if err := s.Validator.Struct(&in); err != nil {
		return nil, err
	}
	if !json.Valid(in.Value) {
		return nil, validationErr("value must be valid JSON")
	}

	setting := models.Setting{Key: in.Key, Value: datatypes.JSON(in.Value)}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		log.Printf("[SETTINGS] ❌ failed to store %s: %v", in.Key, err)
		return nil, storageErr(err)
	}

	log.Printf("[SETTINGS] ⚙️ %s = %s", in.Key, string(in.Value))
	return s.Get(ctx, in.Key)
}

func (s *SettingsService) Get(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	err := s.DB.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSettingNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &setting, nil
}

func (s *SettingsService) List(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	if err := s.DB.WithContext(ctx).Order("key ASC").Find(&settings).Error; err != nil {
		log.Printf("[SETTINGS] ❌ failed to list settings: %v", err)
		return nil, storageErr(err)
	}
	return settings, nil
}

// Config reads the known keys with their defaults. Values written by older tooling as
// strings ("7", "true") are accepted.
func (s *SettingsService) Config(ctx context.Context) (*PublicConfig, error) {
	settings, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	cfg := &PublicConfig{
		HeroPromoDaysBeforeStart: defaultHeroPromoDays,
		CacheVersion:             s.BuildMarker,
		LeaderboardEnabled:       true,
	}
	for _, setting := range settings {
		switch setting.Key {
		case models.SettingHeroPromoDays:
			if n, ok := jsonInt(setting.Value); ok {
				cfg.HeroPromoDaysBeforeStart = n
			}
		case models.SettingCacheVersion:
			if v, ok := jsonString(setting.Value); ok && v != "" {
				cfg.CacheVersion = v
			}
		case models.SettingLeaderboardEnabled:
			if b, ok := jsonBool(setting.Value); ok {
				cfg.LeaderboardEnabled = b
			}
		}
	}
	return cfg, nil
}

// jsonScalar unwraps a JSON scalar into its text form.
func jsonScalar(raw []byte) (string, bool) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func jsonInt(raw []byte) (int, bool) {
	s, ok := jsonScalar(raw)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

func jsonString(raw []byte) (string, bool) {
	return jsonScalar(raw)
}

func jsonBool(raw []byte) (bool, bool) {
	s, ok := jsonScalar(raw)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(s)
	return b, err == nil
}
