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
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CompetitionService owns competitions and their prize breakdowns.
type CompetitionService struct {
	DB        *gorm.DB
	Validator *Validator
	Now       func() time.Time
}

func NewCompetitionService(db *gorm.DB, v *Validator) *CompetitionService {
	return &CompetitionService{DB: db, Validator: v, Now: time.Now}
}

func breakdownByPlace(db *gorm.DB) *gorm.DB {
	return db.Order("place ASC")
}

// List returns every competition with its breakdown, newest start first.
func (s *CompetitionService) List(ctx context.Context) ([]models.Competition, error) {
	var competitions []models.Competition
	if err := s.DB.WithContext(ctx).Preload("Breakdown", breakdownByPlace).Find(&competitions).Error; err != nil {
		log.Printf("[COMPETITIONS] ❌ failed to list competitions: %v", err)
		return nil, storageErr(err)
	}

	sort.SliceStable(competitions, func(i, j int) bool {
		return competitions[i].StartDate.After(competitions[j].StartDate)
	})
	now := s.Now()
	for i := range competitions {
		competitions[i].WithComputedStatus(now)
	}
	return competitions, nil
}

// Get loads one competition with its breakdown.
func (s *CompetitionService) Get(ctx context.Context, id string) (*models.Competition, error) {
	return s.load(s.DB.WithContext(ctx), id)
}

func (s *CompetitionService) load(db *gorm.DB, id string) (*models.Competition, error) {
	var competition models.Competition
	err := db.Preload("Breakdown", breakdownByPlace).Where("id = ?", id).First(&competition).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompetitionNotFound
	}
	if err != nil {
		log.Printf("[COMPETITIONS] ❌ failed to load competition %s: %v", id, err)
		return nil, storageErr(err)
	}
	return competition.WithComputedStatus(s.Now()), nil
}

func (s *CompetitionService) checkInput(in *CompetitionInput) error {
	if err := s.Validator.Struct(in); err != nil {
		return err
	}
	if !in.StartDate.Before(in.EndDate) {
		return validationErr("start_date must be before end_date")
	}
	if in.PrizePool.IsNegative() {
		return validationErr("prize_pool must not be negative")
	}

	seen := make(map[int]bool, len(in.Breakdown))
	total := decimal.Zero
	for _, b := range in.Breakdown {
		if seen[b.Place] {
			return validationErr("breakdown place %d is listed twice", b.Place)
		}
		seen[b.Place] = true
		if b.Amount.IsNegative() || b.Percent.IsNegative() {
			return validationErr("breakdown place %d has a negative value", b.Place)
		}
		total = total.Add(b.Amount)
	}
	if total.GreaterThan(in.PrizePool) {
		// not enforced, only logged
		log.Printf("[COMPETITIONS] ⚠️ breakdown total %s exceeds prize pool %s for %q", total.StringFixed(2), in.PrizePool.StringFixed(2), in.Title)
	}
	return nil
}

func competitionName(in *CompetitionInput) string {
	if name := strings.TrimSpace(in.Name); name != "" {
		return slug.Make(name)
	}
	return slug.Make(in.Title)
}

func buildBreakdown(competitionID string, in []BreakdownInput) []models.PrizeBreakdown {
	rows := make([]models.PrizeBreakdown, 0, len(in))
	for _, b := range in {
		rows = append(rows, models.PrizeBreakdown{
			ID:            uuid.NewString(),
			CompetitionID: competitionID,
			Place:         b.Place,
			Amount:        b.Amount,
			Percent:       b.Percent,
			IsSplit:       b.IsSplit,
		})
	}
	return rows
}

// Create stores a competition and its breakdown in one transaction.
func (s *CompetitionService) Create(ctx context.Context, in CompetitionInput) (*models.Competition, error) {
	if err := s.checkInput(&in); err != nil {
		return nil, err
	}

	status := models.CompetitionStatus(in.Status)
	if status == "" {
		status = models.CompetitionStatusDraft
	}
	competition := &models.Competition{
		ID:            uuid.NewString(),
		Name:          competitionName(&in),
		Title:         strings.TrimSpace(in.Title),
		Period:        in.Period,
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate.UTC(),
		PrizePool:     in.PrizePool,
		Status:        status,
		HighlightCopy: in.HighlightCopy,
		CTAText:       in.CTAText,
		CTALink:       in.CTALink,
	}
	breakdown := buildBreakdown(competition.ID, in.Breakdown)

	var created *models.Competition
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Breakdown", "Winners", "Participants").Create(competition).Error; err != nil {
			return storageErr(err)
		}
		if len(breakdown) > 0 {
			if err := tx.Create(&breakdown).Error; err != nil {
				return storageErr(err)
			}
		}
		var err error
		created, err = s.load(tx, competition.ID)
		return err
	})
	if err != nil {
		log.Printf("[COMPETITIONS] ❌ failed to create %q: %v", in.Title, err)
		return nil, err
	}

	log.Printf("[COMPETITIONS] ✅ created %s (%s) with %d prize places", created.Name, created.ID, len(created.Breakdown))
	return created, nil
}

// Update replaces the competition fields. A breakdown present in the request replaces the
// stored one; an absent breakdown leaves it alone.
func (s *CompetitionService) Update(ctx context.Context, id string, in CompetitionInput) (*models.Competition, error) {
	if err := s.checkInput(&in); err != nil {
		return nil, err
	}

	var updated *models.Competition
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.load(tx, id)
		if err != nil {
			return err
		}

		status := models.CompetitionStatus(in.Status)
		if status == "" {
			status = existing.Status
		}
		fields := map[string]interface{}{
			"name":           competitionName(&in),
			"title":          strings.TrimSpace(in.Title),
			"period":         in.Period,
			"start_date":     in.StartDate.UTC(),
			"end_date":       in.EndDate.UTC(),
			"prize_pool":     in.PrizePool,
			"status":         status,
			"highlight_copy": in.HighlightCopy,
			"cta_text":       in.CTAText,
			"cta_link":       in.CTALink,
		}
		if err := tx.Model(&models.Competition{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return storageErr(err)
		}

		if in.Breakdown != nil {
			if err := tx.Where("competition_id = ?", id).Delete(&models.PrizeBreakdown{}).Error; err != nil {
				return storageErr(err)
			}
			if rows := buildBreakdown(id, in.Breakdown); len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return storageErr(err)
				}
			}
		}

		updated, err = s.load(tx, id)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("[COMPETITIONS] ❌ failed to update %s: %v", id, err)
		}
		return nil, err
	}
	return updated, nil
}

// Delete removes the competition with its breakdown, winners and participants.
func (s *CompetitionService) Delete(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []interface{}{&models.PrizeBreakdown{}, &models.Winner{}, &models.Participant{}} {
			if err := tx.Where("competition_id = ?", id).Delete(child).Error; err != nil {
				return storageErr(err)
			}
		}
		res := tx.Where("id = ?", id).Delete(&models.Competition{})
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCompetitionNotFound
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("[COMPETITIONS] ❌ failed to delete %s: %v", id, err)
		}
		return err
	}
	log.Printf("[COMPETITIONS] 🗑️ deleted %s", id)
	return nil
}
