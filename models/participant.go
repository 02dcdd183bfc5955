package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant is a ranked entry in a competition's scoring ledger, fed by the external scoring feed.
type Participant struct {
	ID            string          `json:"id" gorm:"primaryKey"`
	CompetitionID string          `json:"competition_id" gorm:"not null;uniqueIndex:idx_participant_wallet"`
	WalletAddress string          `json:"wallet_address" gorm:"type:varchar(128);not null;uniqueIndex:idx_participant_wallet"`
	Username      string          `json:"username"`
	SearchName    string          `json:"-" gorm:"index"` // ASCII-folded lowercase username
	Score         decimal.Decimal `json:"score" gorm:"type:decimal(20,2);default:0"`
	Rank          int             `json:"rank" gorm:"index"`
	EntryDate     time.Time       `json:"entry_date"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}
