package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"prize-hub/services"
	"prize-hub/utils"

	"github.com/shopspring/decimal"
)

func TestScoreFeedWorker_SyncActive(t *testing.T) {
	db, err := utils.OpenDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	now := func() time.Time { return time.Date(2025, 9, 20, 12, 0, 0, 0, time.UTC) }
	v := services.NewValidator()
	competitions := services.NewCompetitionService(db, v)
	competitions.Now = now
	participants := services.NewParticipantService(db, v)
	participants.Now = now

	ctx := context.Background()
	active, err := competitions.Create(ctx, services.CompetitionInput{
		Title:     "September Trading Cup",
		StartDate: time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 9, 30, 23, 59, 59, 0, time.UTC),
		PrizePool: decimal.NewFromInt(10000),
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = competitions.Create(ctx, services.CompetitionInput{
		Title:     "August Trading Cup",
		StartDate: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 8, 31, 23, 59, 59, 0, time.UTC),
		PrizePool: decimal.NewFromInt(10000),
	})
	if err != nil {
		t.Fatal(err)
	}

	var requested []string
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		if r.Header.Get("X-Service-Token") != "feed-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(ScoreFeedResponse{Entries: []services.ParticipantEntry{
			{WalletAddress: "0xaaa", Username: "Alice", Score: decimal.NewFromInt(700)},
			{WalletAddress: "0xbbb", Username: "Bob", Score: decimal.NewFromInt(900)},
		}})
	}))
	defer feed.Close()

	worker := NewScoreFeedWorker(competitions, participants, feed.URL+"/", "feed-secret", time.Minute)
	synced, err := worker.SyncActive(ctx)
	if err != nil {
		t.Fatalf("SyncActive: %v", err)
	}
	if synced != 1 {
		t.Fatalf("synced = %d, want 1", synced)
	}
	if len(requested) != 1 || requested[0] != "/competitions/"+active.ID+"/scores" {
		t.Fatalf("requested = %v", requested)
	}

	_, list, err := participants.List(ctx, active.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].WalletAddress != "0xbbb" || list[0].Rank != 1 {
		t.Fatalf("ledger = %+v", list)
	}
}

func TestScoreFeedWorker_FetchScoresErrors(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			_, _ = w.Write([]byte("{not json"))
			return
		}
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer feed.Close()

	worker := NewScoreFeedWorker(nil, nil, feed.URL, "", 0)
	if worker.interval != 5*time.Minute {
		t.Errorf("default interval = %s", worker.interval)
	}

	_, err := worker.FetchScores(context.Background(), "c1")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("bad status: %v", err)
	}
	if _, err := worker.FetchScores(context.Background(), "broken"); err == nil {
		t.Fatal("expected decode error")
	}
}
