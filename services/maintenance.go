package services

import (
	"context"
	"log"
	"sort"

	"prize-hub/models"

	"gorm.io/gorm"
)

// MaintenanceReport counts what a cleanup pass changed.
type MaintenanceReport struct {
	ParticipantsRemoved int `json:"participants_removed"`
	BreakdownsRemoved   int `json:"breakdowns_removed"`
	WinnersRepaired     int `json:"winners_repaired"`
}

// MaintenanceService repairs data that predates the unique indexes: duplicate participants
// and breakdown places, and winner amounts that drifted from the breakdown.
type MaintenanceService struct {
	DB *gorm.DB
}

func NewMaintenanceService(db *gorm.DB) *MaintenanceService {
	return &MaintenanceService{DB: db}
}

// Dedup runs every repair in one transaction.
func (s *MaintenanceService) Dedup(ctx context.Context) (*MaintenanceReport, error) {
	report := &MaintenanceReport{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if report.ParticipantsRemoved, err = dedupParticipants(tx); err != nil {
			return err
		}
		if report.BreakdownsRemoved, err = dedupBreakdowns(tx); err != nil {
			return err
		}
		report.WinnersRepaired, err = repairWinnerAmounts(tx)
		return err
	})
	if err != nil {
		log.Printf("[MAINT] ❌ cleanup failed: %v", err)
		return nil, err
	}

	log.Printf("[MAINT] 🧹 removed %d duplicate participants, %d duplicate breakdown places, repaired %d winner amounts",
		report.ParticipantsRemoved, report.BreakdownsRemoved, report.WinnersRepaired)
	return report, nil
}

// dedupParticipants keeps the earliest entry per (competition, wallet) and re-ranks the
// competitions it touched.
func dedupParticipants(tx *gorm.DB) (int, error) {
	var participants []models.Participant
	if err := tx.Find(&participants).Error; err != nil {
		return 0, storageErr(err)
	}
	sort.SliceStable(participants, func(i, j int) bool {
		a, b := participants[i], participants[j]
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	kept := map[[2]string]bool{}
	touched := map[string]bool{}
	var doomed []string
	for _, p := range participants {
		key := [2]string{p.CompetitionID, p.WalletAddress}
		if kept[key] {
			doomed = append(doomed, p.ID)
			touched[p.CompetitionID] = true
			continue
		}
		kept[key] = true
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	if err := tx.Where("id IN ?", doomed).Delete(&models.Participant{}).Error; err != nil {
		return 0, storageErr(err)
	}
	for competitionID := range touched {
		if _, err := rerank(tx, competitionID); err != nil {
			return 0, err
		}
	}
	return len(doomed), nil
}

// dedupBreakdowns keeps the oldest row per (competition, place).
func dedupBreakdowns(tx *gorm.DB) (int, error) {
	var rows []models.PrizeBreakdown
	if err := tx.Order("created_at ASC").Find(&rows).Error; err != nil {
		return 0, storageErr(err)
	}

	type placeKey struct {
		competitionID string
		place         int
	}
	kept := map[placeKey]bool{}
	var doomed []string
	for _, b := range rows {
		key := placeKey{b.CompetitionID, b.Place}
		if kept[key] {
			doomed = append(doomed, b.ID)
			continue
		}
		kept[key] = true
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	if err := tx.Where("id IN ?", doomed).Delete(&models.PrizeBreakdown{}).Error; err != nil {
		return 0, storageErr(err)
	}
	return len(doomed), nil
}

// repairWinnerAmounts resets counted winners to the amount their place is configured for.
// Places missing from the breakdown are left alone.
func repairWinnerAmounts(tx *gorm.DB) (int, error) {
	var breakdown []models.PrizeBreakdown
	if err := tx.Find(&breakdown).Error; err != nil {
		return 0, storageErr(err)
	}
	type placeKey struct {
		competitionID string
		place         int
	}
	amounts := make(map[placeKey]models.PrizeBreakdown, len(breakdown))
	for _, b := range breakdown {
		amounts[placeKey{b.CompetitionID, b.Place}] = b
	}

	var winners []models.Winner
	if err := tx.Where("payment_status <> ?", models.PaymentStatusDisqualified).Find(&winners).Error; err != nil {
		return 0, storageErr(err)
	}

	repaired := 0
	for _, w := range winners {
		b, ok := amounts[placeKey{w.CompetitionID, w.Place}]
		if !ok || w.Amount.Equal(b.Amount) {
			continue
		}
		if err := tx.Model(&models.Winner{}).Where("id = ?", w.ID).Update("amount", b.Amount).Error; err != nil {
			return 0, storageErr(err)
		}
		log.Printf("[MAINT] 🔧 winner %s place %d: %s -> %s", w.WalletAddress, w.Place, w.Amount.StringFixed(2), b.Amount.StringFixed(2))
		repaired++
	}
	return repaired, nil
}
