package models

import (
	"time"

	"gorm.io/datatypes"
)

// Known setting keys read by the prize view.
const (
	SettingHeroPromoDays      = "hero_promo_days_before_start"
	SettingCacheVersion       = "cache_version"
	SettingLeaderboardEnabled = "leaderboard_enabled"
)

// Setting is a generic key/value configuration row. Value holds any JSON scalar or document.
// The column is plain text so sqlite keeps scalars like 7 or true as their JSON source.
type Setting struct {
	Key       string         `json:"key" gorm:"primaryKey;type:varchar(64)"`
	Value     datatypes.JSON `json:"value" gorm:"type:text"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// All returns every model handled by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Competition{},
		&PrizeBreakdown{},
		&Participant{},
		&Winner{},
		&AdminUser{},
		&Setting{},
	}
}
