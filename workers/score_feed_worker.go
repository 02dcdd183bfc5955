// workers/score_feed_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prize-hub/models"
	"prize-hub/services"
	"prize-hub/utils"
)

// ScoreFeedResponse is what the scoring feed returns for one competition.
type ScoreFeedResponse struct {
	Entries []services.ParticipantEntry `json:"entries"`
}

// ScoreFeedWorker pulls scores for running competitions from the external scoring feed
// and pushes them through the participant ledger.
type ScoreFeedWorker struct {
	competitions *services.CompetitionService
	participants *services.ParticipantService
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8600"
	serviceToken string
	httpClient   *http.Client
}

func NewScoreFeedWorker(competitions *services.CompetitionService, participants *services.ParticipantService, baseURL, token string, interval time.Duration) *ScoreFeedWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ScoreFeedWorker{
		competitions: competitions,
		participants: participants,
		interval:     interval,
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: token,
		httpClient:   utils.HTTPClient,
	}
}

func (w *ScoreFeedWorker) Start(ctx context.Context) {
	log.Printf("🔁 Starting score feed worker (%s every %s)", w.baseURL, w.interval)
	go w.run(ctx)
}

func (w *ScoreFeedWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Score feed worker stopped.")
			return
		case <-ticker.C:
			if n, err := w.SyncActive(ctx); err != nil {
				log.Printf("❌ Score feed sync failed: %v", err)
			} else if n > 0 {
				log.Printf("✅ Score feed synced %d competition(s)", n)
			}
		}
	}
}

// SyncActive ingests fresh scores for every competition currently running. A failing
// competition is logged and skipped; the next tick retries it.
func (w *ScoreFeedWorker) SyncActive(ctx context.Context) (int, error) {
	competitions, err := w.competitions.List(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, c := range competitions {
		if c.ComputedStatus != models.CompetitionStatusActive {
			continue
		}
		entries, err := w.FetchScores(ctx, c.ID)
		if err != nil {
			log.Printf("❌ Error fetching scores for %s: %v", c.ID, err)
			continue
		}
		if len(entries) == 0 {
			continue
		}
		if _, err := w.participants.Ingest(ctx, c.ID, services.IngestRequest{Entries: entries}); err != nil {
			log.Printf("❌ Failed to ingest %d score(s) for %s: %v", len(entries), c.ID, err)
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *ScoreFeedWorker) FetchScores(ctx context.Context, competitionID string) ([]services.ParticipantEntry, error) {
	u, err := url.Parse(fmt.Sprintf("%s/competitions/%s/scores", w.baseURL, url.PathEscape(competitionID)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if w.serviceToken != "" {
		req.Header.Set("X-Service-Token", w.serviceToken)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call score feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("score feed returned status %d: %s", resp.StatusCode, string(body))
	}

	var response ScoreFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode score feed response: %w", err)
	}
	return response.Entries, nil
}
