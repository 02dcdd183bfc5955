package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompetitionStatus is both the manually stored flag and the computed display state.
type CompetitionStatus string

const (
	CompetitionStatusDraft    CompetitionStatus = "draft"
	CompetitionStatusUpcoming CompetitionStatus = "upcoming"
	CompetitionStatusActive   CompetitionStatus = "active"
	CompetitionStatusEnded    CompetitionStatus = "ended"
)

// Competition is a time-boxed contest with a prize pool.
// Status is what an admin saved; ComputedStatus is what the dates say and always wins on read.
type Competition struct {
	ID            string            `json:"id" gorm:"primaryKey"`
	Name          string            `json:"name" gorm:"index"`
	Title         string            `json:"title" gorm:"not null"`
	Period        string            `json:"period"`
	StartDate     time.Time         `json:"start_date" gorm:"not null;index"`
	EndDate       time.Time         `json:"end_date" gorm:"not null;index"`
	PrizePool     decimal.Decimal   `json:"prize_pool" gorm:"type:decimal(18,2);not null"`
	Status        CompetitionStatus `json:"status" gorm:"type:varchar(16);default:'draft'"`
	HighlightCopy string            `json:"highlight_copy,omitempty"`
	CTAText       string            `json:"cta_text,omitempty" gorm:"column:cta_text"`
	CTALink       string            `json:"cta_link,omitempty" gorm:"column:cta_link"`
	CreatedAt     time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Breakdown    []PrizeBreakdown `json:"breakdown" gorm:"foreignKey:CompetitionID"`
	Winners      []Winner         `json:"winners,omitempty" gorm:"foreignKey:CompetitionID"`
	Participants []Participant    `json:"participants,omitempty" gorm:"foreignKey:CompetitionID"`

	// Calculated fields (not stored in DB)
	ComputedStatus CompetitionStatus `json:"computed_status" gorm:"-"`
}

// PrizeBreakdown maps a finishing place to its prize.
type PrizeBreakdown struct {
	ID            string          `json:"-" gorm:"primaryKey"`
	CompetitionID string          `json:"-" gorm:"not null;uniqueIndex:idx_breakdown_place"`
	Place         int             `json:"place" gorm:"not null;uniqueIndex:idx_breakdown_place"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(18,2);not null"`
	Percent       decimal.Decimal `json:"percent" gorm:"type:decimal(5,2);default:0"`
	IsSplit       bool            `json:"is_split" gorm:"default:false"`
	CreatedAt     time.Time       `json:"-" gorm:"autoCreateTime"`
}

// ComputeStatus derives the display state purely from the clock and the date range.
func ComputeStatus(now, start, end time.Time) CompetitionStatus {
	switch {
	case now.Before(start):
		return CompetitionStatusUpcoming
	case now.After(end):
		return CompetitionStatusEnded
	default:
		return CompetitionStatusActive
	}
}

// WithComputedStatus stamps ComputedStatus for the given instant.
func (c *Competition) WithComputedStatus(now time.Time) *Competition {
	c.ComputedStatus = ComputeStatus(now, c.StartDate, c.EndDate)
	return c
}

// PrizeForPlace returns the configured amount for place, or zero when the place is not in the breakdown.
func (c *Competition) PrizeForPlace(place int) decimal.Decimal {
	for _, b := range c.Breakdown {
		if b.Place == place {
			return b.Amount
		}
	}
	return decimal.Zero
}

// BreakdownTotal sums all configured prize amounts.
func (c *Competition) BreakdownTotal() decimal.Decimal {
	total := decimal.Zero
	for _, b := range c.Breakdown {
		total = total.Add(b.Amount)
	}
	return total
}
