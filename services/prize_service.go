package services

import (
	"context"
	"log"
	"sort"
	"time"

	"prize-hub/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const historyLimit = 5

// PrizeStats aggregates the history section of the prize page.
type PrizeStats struct {
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	TotalWinners     int             `json:"total_winners"`
	MonthsActive     int             `json:"months_active"`
}

// PrizeView is the public prize page payload.
type PrizeView struct {
	Current  []models.Competition `json:"current"`
	Upcoming []models.Competition `json:"upcoming"`
	History  []models.Competition `json:"history"`
	Stats    PrizeStats           `json:"stats"`
	Config   *PublicConfig        `json:"config"`
}

// Stats are the site-wide payout totals.
type Stats struct {
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	TotalWinners     int             `json:"total_winners"`
	MonthsActive     int             `json:"months_active"`
	CacheVersion     string          `json:"cache_version"`
}

// PrizeService composes the read-only views. Disqualified winners never appear in them.
type PrizeService struct {
	DB       *gorm.DB
	Settings *SettingsService
	Now      func() time.Time
}

func NewPrizeService(db *gorm.DB, settings *SettingsService) *PrizeService {
	return &PrizeService{DB: db, Settings: settings, Now: time.Now}
}

func countedWinners(db *gorm.DB) *gorm.DB {
	return db.Where("payment_status <> ?", models.PaymentStatusDisqualified).Order("place ASC")
}

func participantsByRank(db *gorm.DB) *gorm.DB {
	return db.Order("rank ASC")
}

// View partitions competitions around now: current ones contain now, upcoming ones start
// after it (soonest first), history holds the five most recently ended with their winners
// and participants.
func (s *PrizeService) View(ctx context.Context, now time.Time) (*PrizeView, error) {
	db := s.DB.WithContext(ctx)

	var competitions []models.Competition
	if err := db.Preload("Breakdown", breakdownByPlace).Find(&competitions).Error; err != nil {
		log.Printf("[PRIZES] ❌ failed to load competitions: %v", err)
		return nil, storageErr(err)
	}

	view := &PrizeView{
		Current:  []models.Competition{},
		Upcoming: []models.Competition{},
		History:  []models.Competition{},
	}
	var endedIDs []string
	var ended []models.Competition
	for i := range competitions {
		c := competitions[i].WithComputedStatus(now)
		switch c.ComputedStatus {
		case models.CompetitionStatusActive:
			view.Current = append(view.Current, *c)
		case models.CompetitionStatusUpcoming:
			view.Upcoming = append(view.Upcoming, *c)
		default:
			ended = append(ended, *c)
		}
	}

	sort.SliceStable(view.Current, func(i, j int) bool {
		return view.Current[i].StartDate.Before(view.Current[j].StartDate)
	})
	sort.SliceStable(view.Upcoming, func(i, j int) bool {
		return view.Upcoming[i].StartDate.Before(view.Upcoming[j].StartDate)
	})
	sort.SliceStable(ended, func(i, j int) bool {
		return ended[i].EndDate.After(ended[j].EndDate)
	})
	if len(ended) > historyLimit {
		ended = ended[:historyLimit]
	}
	for _, c := range ended {
		endedIDs = append(endedIDs, c.ID)
	}

	if len(endedIDs) > 0 {
		var history []models.Competition
		err := db.Preload("Breakdown", breakdownByPlace).
			Preload("Winners", countedWinners).
			Preload("Participants", participantsByRank).
			Where("id IN ?", endedIDs).
			Find(&history).Error
		if err != nil {
			log.Printf("[PRIZES] ❌ failed to load history: %v", err)
			return nil, storageErr(err)
		}
		byID := make(map[string]models.Competition, len(history))
		for _, c := range history {
			byID[c.ID] = *c.WithComputedStatus(now)
		}
		for _, id := range endedIDs {
			if c, ok := byID[id]; ok {
				if c.Winners == nil {
					c.Winners = []models.Winner{}
				}
				view.History = append(view.History, c)
			}
		}
	}

	view.Stats.TotalDistributed = decimal.Zero
	for _, c := range view.History {
		for _, w := range c.Winners {
			view.Stats.TotalDistributed = view.Stats.TotalDistributed.Add(w.Amount)
		}
		view.Stats.TotalWinners += len(c.Winners)
	}
	view.Stats.MonthsActive = len(view.History)

	cfg, err := s.Settings.Config(ctx)
	if err != nil {
		return nil, err
	}
	view.Config = cfg
	return view, nil
}

// Stats sums every counted winner. months_active is the number of distinct calendar months
// in which competitions were created.
func (s *PrizeService) Stats(ctx context.Context) (*Stats, error) {
	db := s.DB.WithContext(ctx)

	var amounts []decimal.Decimal
	err := db.Model(&models.Winner{}).
		Where("payment_status <> ?", models.PaymentStatusDisqualified).
		Pluck("amount", &amounts).Error
	if err != nil {
		log.Printf("[PRIZES] ❌ failed to load winner amounts: %v", err)
		return nil, storageErr(err)
	}

	var created []time.Time
	if err := db.Model(&models.Competition{}).Pluck("created_at", &created).Error; err != nil {
		log.Printf("[PRIZES] ❌ failed to load competition dates: %v", err)
		return nil, storageErr(err)
	}

	stats := &Stats{TotalDistributed: decimal.Zero, TotalWinners: len(amounts)}
	for _, a := range amounts {
		stats.TotalDistributed = stats.TotalDistributed.Add(a)
	}
	months := map[string]bool{}
	for _, t := range created {
		months[t.UTC().Format("2006-01")] = true
	}
	stats.MonthsActive = len(months)

	cfg, err := s.Settings.Config(ctx)
	if err != nil {
		return nil, err
	}
	stats.CacheVersion = cfg.CacheVersion
	return stats, nil
}
