package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"prize-hub/models"

	"github.com/google/uuid"
	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
)

// ParticipantService is the per-competition score ledger fed by the scoring feed.
type ParticipantService struct {
	DB        *gorm.DB
	Validator *Validator
	Now       func() time.Time
}

func NewParticipantService(db *gorm.DB, v *Validator) *ParticipantService {
	return &ParticipantService{DB: db, Validator: v, Now: time.Now}
}

// SearchKey folds a username to lowercase ASCII so "Zoë" and "zoe" match.
func SearchKey(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}

// IngestResult reports what an ingest batch changed.
type IngestResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Ranked  int `json:"ranked"`
}

// Ingest upserts a batch of scores by wallet and recomputes ranks for the whole competition.
// A wallet keeps its earliest entry_date.
func (s *ParticipantService) Ingest(ctx context.Context, competitionID string, req IngestRequest) (*IngestResult, error) {
	if err := s.Validator.Struct(&req); err != nil {
		return nil, err
	}

	result := &IngestResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := competitionExists(tx, competitionID); err != nil {
			return err
		}

		now := s.Now().UTC()
		for _, entry := range req.Entries {
			wallet := strings.TrimSpace(entry.WalletAddress)
			entryDate := now
			if entry.EntryDate != nil {
				entryDate = entry.EntryDate.UTC()
			}

			var existing models.Participant
			err := tx.Where("competition_id = ? AND wallet_address = ?", competitionID, wallet).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				p := models.Participant{
					ID:            uuid.NewString(),
					CompetitionID: competitionID,
					WalletAddress: wallet,
					Username:      entry.Username,
					SearchName:    SearchKey(entry.Username),
					Score:         entry.Score,
					EntryDate:     entryDate,
				}
				if err := tx.Create(&p).Error; err != nil {
					return storageErr(err)
				}
				result.Created++
			case err != nil:
				return storageErr(err)
			default:
				fields := map[string]interface{}{"score": entry.Score}
				if entry.Username != "" {
					fields["username"] = entry.Username
					fields["search_name"] = SearchKey(entry.Username)
				}
				if entryDate.Before(existing.EntryDate) {
					fields["entry_date"] = entryDate
				}
				if err := tx.Model(&existing).Updates(fields).Error; err != nil {
					return storageErr(err)
				}
				result.Updated++
			}
		}

		ranked, err := rerank(tx, competitionID)
		result.Ranked = ranked
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrValidation) {
			log.Printf("[LEDGER] ❌ ingest into %s failed: %v", competitionID, err)
		}
		return nil, err
	}

	log.Printf("[LEDGER] 📥 %s: %d new, %d updated, %d ranked", competitionID, result.Created, result.Updated, result.Ranked)
	return result, nil
}

func competitionExists(db *gorm.DB, competitionID string) error {
	var count int64
	if err := db.Model(&models.Competition{}).Where("id = ?", competitionID).Count(&count).Error; err != nil {
		return storageErr(err)
	}
	if count == 0 {
		return ErrCompetitionNotFound
	}
	return nil
}

// sortByStanding orders participants by score, then earlier entry, then wallet.
func sortByStanding(participants []models.Participant) {
	sort.SliceStable(participants, func(i, j int) bool {
		a, b := participants[i], participants[j]
		if c := a.Score.Cmp(b.Score); c != 0 {
			return c > 0
		}
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		return a.WalletAddress < b.WalletAddress
	})
}

// rerank assigns sequential 1-based ranks and writes only the rows whose rank moved.
func rerank(tx *gorm.DB, competitionID string) (int, error) {
	var participants []models.Participant
	if err := tx.Where("competition_id = ?", competitionID).Find(&participants).Error; err != nil {
		return 0, storageErr(err)
	}
	sortByStanding(participants)

	for i := range participants {
		rank := i + 1
		if participants[i].Rank == rank {
			continue
		}
		if err := tx.Model(&models.Participant{}).Where("id = ?", participants[i].ID).Update("rank", rank).Error; err != nil {
			return 0, storageErr(err)
		}
	}
	return len(participants), nil
}

// List returns the competition and its participants by rank. A non-empty query filters by
// username (accent-insensitive) or wallet prefix.
func (s *ParticipantService) List(ctx context.Context, competitionID, query string) (*models.Competition, []models.Participant, error) {
	db := s.DB.WithContext(ctx)

	var competition models.Competition
	err := db.Preload("Breakdown", breakdownByPlace).Where("id = ?", competitionID).First(&competition).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrCompetitionNotFound
	}
	if err != nil {
		return nil, nil, storageErr(err)
	}
	competition.WithComputedStatus(s.Now())

	q := db.Where("competition_id = ?", competitionID)
	if key := SearchKey(query); key != "" {
		q = q.Where("search_name LIKE ? OR LOWER(wallet_address) LIKE ?", "%"+key+"%", strings.ToLower(strings.TrimSpace(query))+"%")
	}

	var participants []models.Participant
	if err := q.Order("rank ASC").Find(&participants).Error; err != nil {
		log.Printf("[LEDGER] ❌ failed to list participants of %s: %v", competitionID, err)
		return nil, nil, storageErr(err)
	}
	return &competition, participants, nil
}

// rankedAfter returns participants ranked strictly below place, best first.
func rankedAfter(tx *gorm.DB, competitionID string, place int) ([]models.Participant, error) {
	var participants []models.Participant
	err := tx.Where("competition_id = ? AND rank > ?", competitionID, place).Order("rank ASC").Find(&participants).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return participants, nil
}
