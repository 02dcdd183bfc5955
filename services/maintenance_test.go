package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"prize-hub/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestDedup_RepairsLegacyRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.september(t)

	// legacy data predates the unique indexes
	m := f.db.Migrator()
	if err := m.DropIndex(&models.Participant{}, "idx_participant_wallet"); err != nil {
		t.Fatalf("drop participant index: %v", err)
	}
	if err := m.DropIndex(&models.PrizeBreakdown{}, "idx_breakdown_place"); err != nil {
		t.Fatalf("drop breakdown index: %v", err)
	}

	dup := models.Participant{
		ID:            uuid.NewString(),
		CompetitionID: c.ID,
		WalletAddress: "w1",
		Username:      "W1 again",
		Score:         decimal.NewFromInt(5000),
		EntryDate:     sepEnd,
	}
	if err := f.db.Create(&dup).Error; err != nil {
		t.Fatal(err)
	}
	extra := models.PrizeBreakdown{ID: uuid.NewString(), CompetitionID: c.ID, Place: 1, Amount: amount("1"), CreatedAt: time.Now().Add(time.Hour)}
	if err := f.db.Create(&extra).Error; err != nil {
		t.Fatal(err)
	}

	drifted := amount("123")
	if _, err := f.winners.Create(ctx, WinnerInput{SlotRef: slot(c, "w2", 2), Amount: &drifted}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.winners.Disqualify(ctx, slot(c, "w5", 3)); err != nil {
		t.Fatal(err)
	}

	report, err := NewMaintenanceService(f.db).Dedup(ctx)
	if err != nil {
		t.Fatalf("Dedup: %v", err)
	}
	if report.ParticipantsRemoved != 1 || report.BreakdownsRemoved != 1 || report.WinnersRepaired != 1 {
		t.Fatalf("report = %+v", report)
	}

	var kept []models.Participant
	f.db.Where("competition_id = ? AND wallet_address = ?", c.ID, "w1").Find(&kept)
	if len(kept) != 1 || kept[0].ID == dup.ID {
		t.Fatalf("kept = %+v", kept)
	}
	got, _ := f.competitions.Get(ctx, c.ID)
	if !got.PrizeForPlace(1).Equal(amount("5000")) || len(got.Breakdown) != 3 {
		t.Fatalf("breakdown = %+v", got.Breakdown)
	}
	rows := f.winnerRows(t, c.ID)
	for _, w := range rows {
		if w.PaymentStatus == models.PaymentStatusDisqualified && !w.Amount.IsZero() {
			t.Errorf("disqualified %s repaired to %s", w.WalletAddress, w.Amount)
		}
		if w.WalletAddress == "w2" && !w.Amount.Equal(amount("3000")) {
			t.Errorf("w2 amount = %s", w.Amount)
		}
	}

	again, err := NewMaintenanceService(f.db).Dedup(ctx)
	if err != nil || *again != (MaintenanceReport{}) {
		t.Fatalf("second pass = %+v, %v", again, err)
	}
}

type memoryStore struct {
	key         string
	contentType string
	body        []byte
	err         error
}

func (m *memoryStore) PutObject(_ context.Context, key, contentType string, body []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.key, m.contentType, m.body = key, contentType, body
	return "https://cdn.example.com/" + key, nil
}

func TestArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.september(t)
	if _, err := f.winners.Approve(ctx, slot(c, "w1", 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.winners.Disqualify(ctx, slot(c, "w2", 2)); err != nil {
		t.Fatal(err)
	}

	if _, err := NewArchiveService(f.db, nil).Archive(ctx, c.ID); !errors.Is(err, ErrArchiveDisabled) {
		t.Fatalf("without store: got %v", err)
	}

	store := &memoryStore{}
	archive := NewArchiveService(f.db, store)
	archive.Now = func() time.Time { return octFirst }

	res, err := archive.Archive(ctx, c.ID)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	wantKey := "archives/" + c.ID + "/september-trading-cup-winners-20251001T090000Z.json"
	if res.Key != wantKey || store.key != wantKey {
		t.Fatalf("key = %s", res.Key)
	}
	if res.URL != "https://cdn.example.com/"+wantKey || store.contentType != "application/json" {
		t.Fatalf("result = %+v", res)
	}
	if res.Winners != 2 {
		t.Fatalf("winners = %d, want 2", res.Winners)
	}
	body := string(store.body)
	if !strings.Contains(body, `"computed_status": "ended"`) || strings.Contains(body, `"disqualified"`) {
		t.Fatalf("body = %s", body)
	}

	if _, err := archive.Archive(ctx, "missing"); !errors.Is(err, ErrCompetitionNotFound) {
		t.Fatalf("missing competition: got %v", err)
	}
	store.err = errors.New("bucket gone")
	if _, err := archive.Archive(ctx, c.ID); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestFormatAmount(t *testing.T) {
	for in, want := range map[string]string{
		"5000":    "$5,000.00",
		"0":       "$0.00",
		"1234.5":  "$1,234.50",
		"1000000": "$1,000,000.00",
	} {
		if got := FormatAmount(amount(in)); got != want {
			t.Errorf("FormatAmount(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestWinnerNotice(t *testing.T) {
	w := &models.Winner{CompetitionID: "c1", WalletAddress: "0xabc", Place: 1, Amount: amount("5000"), PaymentStatus: models.PaymentStatusApproved}
	got := winnerNotice(models.EventApprove, "", w)
	if !strings.Contains(got, "c1") || !strings.Contains(got, "0xabc") || !strings.Contains(got, "$5,000.00") {
		t.Fatalf("notice = %q", got)
	}
}
