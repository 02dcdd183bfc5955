package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"prize-hub/models"
	"prize-hub/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	sepStart = time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	sepEnd   = time.Date(2025, 9, 30, 23, 59, 59, 0, time.UTC)
	sepMid   = time.Date(2025, 9, 20, 12, 0, 0, 0, time.UTC)
	octFirst = time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (r *recordingNotifier) Notify(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, text)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

type fixture struct {
	db  *gorm.DB
	now time.Time

	validator    *Validator
	competitions *CompetitionService
	participants *ParticipantService
	winners      *WinnerService
	settings     *SettingsService
	prizes       *PrizeService
	notes        *recordingNotifier
}

func (f *fixture) clock() time.Time { return f.now }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := utils.OpenDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{db: db, now: sepMid, validator: NewValidator(), notes: &recordingNotifier{}}
	f.competitions = NewCompetitionService(db, f.validator)
	f.competitions.Now = f.clock
	f.participants = NewParticipantService(db, f.validator)
	f.participants.Now = f.clock
	f.winners = NewWinnerService(db, f.validator, f.notes)
	f.winners.Now = f.clock
	f.settings = NewSettingsService(db, f.validator, "202509")
	f.prizes = NewPrizeService(db, f.settings)
	f.prizes.Now = f.clock
	return f
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// septemberInput is a 15-30 September competition paying 5000/3000/2000.
func septemberInput() CompetitionInput {
	return CompetitionInput{
		Title:     "September Trading Cup",
		Period:    "September 2025",
		StartDate: sepStart,
		EndDate:   sepEnd,
		PrizePool: amount("10000"),
		Status:    "active",
		Breakdown: []BreakdownInput{
			{Place: 2, Amount: amount("3000")},
			{Place: 1, Amount: amount("5000")},
			{Place: 3, Amount: amount("2000")},
		},
	}
}

func (f *fixture) createCompetition(t *testing.T, in CompetitionInput) *models.Competition {
	t.Helper()
	c, err := f.competitions.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create competition: %v", err)
	}
	return c
}

// seedLedger ingests wallets in descending score order so wallet i ends at rank i+1.
func (f *fixture) seedLedger(t *testing.T, competitionID string, wallets ...string) {
	t.Helper()
	entries := make([]ParticipantEntry, 0, len(wallets))
	for i, w := range wallets {
		entries = append(entries, ParticipantEntry{
			WalletAddress: w,
			Username:      strings.ToUpper(w),
			Score:         decimal.NewFromInt(int64(1000 - i*100)),
		})
	}
	if _, err := f.participants.Ingest(context.Background(), competitionID, IngestRequest{Entries: entries}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
}

func (f *fixture) september(t *testing.T) *models.Competition {
	t.Helper()
	c := f.createCompetition(t, septemberInput())
	f.seedLedger(t, c.ID, "w1", "w2", "w3", "w4", "w5")
	return c
}

func (f *fixture) winnerRows(t *testing.T, competitionID string) []models.Winner {
	t.Helper()
	var rows []models.Winner
	if err := f.db.Where("competition_id = ?", competitionID).Order("place ASC").Order("wallet_address ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load winners: %v", err)
	}
	return rows
}
