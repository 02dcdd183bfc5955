package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"prize-hub/models"

	"gorm.io/gorm"
)

// ObjectStore is where archived winner lists are written. utils.R2Client satisfies it.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// ArchiveResult points at an uploaded archive.
type ArchiveResult struct {
	Key     string `json:"key"`
	URL     string `json:"url"`
	Winners int    `json:"winners"`
}

type winnerArchive struct {
	ArchivedAt  time.Time           `json:"archived_at"`
	Competition *models.Competition `json:"competition"`
}

// ArchiveService snapshots a competition's public winner list to object storage.
type ArchiveService struct {
	DB    *gorm.DB
	Store ObjectStore
	Now   func() time.Time
}

func NewArchiveService(db *gorm.DB, store ObjectStore) *ArchiveService {
	return &ArchiveService{DB: db, Store: store, Now: time.Now}
}

// Archive uploads the competition with its breakdown and counted winners as JSON.
func (s *ArchiveService) Archive(ctx context.Context, competitionID string) (*ArchiveResult, error) {
	if s.Store == nil {
		return nil, ErrArchiveDisabled
	}

	var competition models.Competition
	err := s.DB.WithContext(ctx).
		Preload("Breakdown", breakdownByPlace).
		Preload("Winners", countedWinners).
		Where("id = ?", competitionID).
		First(&competition).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompetitionNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}

	now := s.Now().UTC()
	competition.WithComputedStatus(now)
	body, err := json.MarshalIndent(winnerArchive{ArchivedAt: now, Competition: &competition}, "", "  ")
	if err != nil {
		return nil, err
	}

	name := competition.Name
	if name == "" {
		name = competition.ID
	}
	key := fmt.Sprintf("archives/%s/%s-winners-%s.json", competition.ID, name, now.Format("20060102T150405Z"))
	url, err := s.Store.PutObject(ctx, key, "application/json", body)
	if err != nil {
		log.Printf("[ARCHIVE] ❌ upload of %s failed: %v", key, err)
		return nil, err
	}

	log.Printf("[ARCHIVE] 📦 %s archived to %s", competition.Title, url)
	return &ArchiveResult{Key: key, URL: url, Winners: len(competition.Winners)}, nil
}
