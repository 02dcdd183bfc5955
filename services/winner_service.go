package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"prize-hub/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WinnerService runs the payout state machine for winner slots.
type WinnerService struct {
	DB        *gorm.DB
	Validator *Validator
	Notifier  Notifier
	Now       func() time.Time
}

func NewWinnerService(db *gorm.DB, v *Validator, n Notifier) *WinnerService {
	if n == nil {
		n = NopNotifier{}
	}
	return &WinnerService{DB: db, Validator: v, Notifier: n, Now: time.Now}
}

// DisqualifyResult carries the disqualified row and, when someone was eligible, the row
// promoted into the vacated place. Holder is set instead of Promoted when the next eligible
// participant was already an approved or paid winner of the place.
type DisqualifyResult struct {
	Disqualified *models.Winner `json:"disqualified"`
	Promoted     *models.Winner `json:"promoted,omitempty"`
	Holder       *models.Winner `json:"holder,omitempty"`
}

var slotColumns = []clause.Column{{Name: "competition_id"}, {Name: "wallet_address"}, {Name: "place"}}

func (s *WinnerService) now() time.Time {
	return s.Now().UTC()
}

func loadCompetition(tx *gorm.DB, id string) (*models.Competition, error) {
	var competition models.Competition
	err := tx.Preload("Breakdown", breakdownByPlace).Where("id = ?", id).First(&competition).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompetitionNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &competition, nil
}

func findParticipant(tx *gorm.DB, competitionID, wallet string) (*models.Participant, error) {
	var p models.Participant
	err := tx.Where("competition_id = ? AND wallet_address = ?", competitionID, wallet).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &p, nil
}

// findSlot returns the winner row for the slot key, or nil when the slot is empty.
func findSlot(tx *gorm.DB, competitionID, wallet string, place int) (*models.Winner, error) {
	var w models.Winner
	err := tx.Where("competition_id = ? AND wallet_address = ? AND place = ?", competitionID, wallet, place).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &w, nil
}

func statusOf(w *models.Winner) models.PaymentStatus {
	if w == nil {
		return models.PaymentStatusNone
	}
	return w.PaymentStatus
}

// upsertSlot writes w over whatever occupies its slot key. Concurrent writers to the same
// slot resolve to the last one.
func upsertSlot(tx *gorm.DB, w *models.Winner) (*models.Winner, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   slotColumns,
		DoUpdates: clause.AssignmentColumns([]string{"username", "amount", "payment_status", "paid_at", "tx_url", "updated_at"}),
	}).Create(w).Error
	if err != nil {
		return nil, storageErr(err)
	}
	stored, err := findSlot(tx, w.CompetitionID, w.WalletAddress, w.Place)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, storageErr(errors.New("winner row vanished after upsert"))
	}
	return stored, nil
}

// applyEvent adds the columns an event changes besides payment_status. Shared by the action
// routes, Create and Update.
func applyEvent(event models.WinnerEvent, competition *models.Competition, place int, now time.Time, fields map[string]interface{}) {
	switch event {
	case models.EventApprove:
		fields["amount"] = competition.PrizeForPlace(place)
		fields["paid_at"] = now
	case models.EventPay:
		fields["paid_at"] = now
	case models.EventPromote:
		fields["amount"] = competition.PrizeForPlace(place)
		fields["paid_at"] = nil
	case models.EventReinstate:
		fields["amount"] = competition.PrizeForPlace(place)
		fields["paid_at"] = nil
		fields["tx_url"] = ""
	case models.EventRevoke:
		fields["paid_at"] = nil
		fields["tx_url"] = ""
	case models.EventDisqualify:
		fields["amount"] = decimal.Zero
		fields["paid_at"] = nil
		fields["tx_url"] = ""
	}
}

func (s *WinnerService) notify(event models.WinnerEvent, competition *models.Competition, w *models.Winner) {
	title := ""
	if competition != nil {
		title = competition.Title
	}
	s.Notifier.Notify(winnerNotice(event, title, w))
}

func (s *WinnerService) checkRef(ref *SlotRef) error {
	ref.CompetitionID = strings.TrimSpace(ref.CompetitionID)
	ref.WalletAddress = strings.TrimSpace(ref.WalletAddress)
	return s.Validator.Struct(ref)
}

func logWinnerErr(op string, ref SlotRef, err error) {
	if errors.Is(err, ErrStorageFailure) {
		log.Printf("[WINNERS] ❌ %s %s/%s#%d failed: %v", op, ref.CompetitionID, ref.WalletAddress, ref.Place, err)
	}
}

// Approve marks the participant as the approved winner of place. Approving an already
// approved slot changes nothing.
func (s *WinnerService) Approve(ctx context.Context, ref SlotRef) (*models.Winner, error) {
	if err := s.checkRef(&ref); err != nil {
		return nil, err
	}

	var (
		competition *models.Competition
		result      *models.Winner
		changed     bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if competition, err = loadCompetition(tx, ref.CompetitionID); err != nil {
			return err
		}
		participant, err := findParticipant(tx, ref.CompetitionID, ref.WalletAddress)
		if err != nil {
			return err
		}
		existing, err := findSlot(tx, ref.CompetitionID, ref.WalletAddress, ref.Place)
		if err != nil {
			return err
		}

		from := statusOf(existing)
		next, err := from.Next(models.EventApprove)
		if err != nil {
			return transitionErr(err)
		}
		if from == models.PaymentStatusApproved {
			result = existing
			return nil
		}

		now := s.now()
		txURL := ""
		if existing != nil {
			txURL = existing.TxURL
		}
		result, err = upsertSlot(tx, &models.Winner{
			CompetitionID: ref.CompetitionID,
			WalletAddress: ref.WalletAddress,
			Place:         ref.Place,
			Username:      participant.Username,
			Amount:        competition.PrizeForPlace(ref.Place),
			PaymentStatus: next,
			PaidAt:        &now,
			TxURL:         txURL,
		})
		changed = err == nil
		return err
	})
	if err != nil {
		logWinnerErr("approve", ref, err)
		return nil, err
	}

	if changed {
		log.Printf("[WINNERS] ✅ approved %s at place %d of %s", result.WalletAddress, result.Place, result.CompetitionID)
		s.notify(models.EventApprove, competition, result)
	}
	return result, nil
}

// Disqualify marks the slot disqualified with a zero amount, then promotes exactly one
// replacement: the best-ranked participant below place with a different wallet and no
// disqualification in this competition. With nobody eligible the place stays vacant.
func (s *WinnerService) Disqualify(ctx context.Context, ref SlotRef) (*DisqualifyResult, error) {
	if err := s.checkRef(&ref); err != nil {
		return nil, err
	}

	var competition *models.Competition
	result := &DisqualifyResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if competition, err = loadCompetition(tx, ref.CompetitionID); err != nil {
			return err
		}
		existing, err := findSlot(tx, ref.CompetitionID, ref.WalletAddress, ref.Place)
		if err != nil {
			return err
		}

		username := ""
		if existing != nil {
			username = existing.Username
		} else {
			participant, err := findParticipant(tx, ref.CompetitionID, ref.WalletAddress)
			if err != nil {
				return err
			}
			username = participant.Username
		}

		next, err := statusOf(existing).Next(models.EventDisqualify)
		if err != nil {
			return transitionErr(err)
		}
		result.Disqualified, err = upsertSlot(tx, &models.Winner{
			CompetitionID: ref.CompetitionID,
			WalletAddress: ref.WalletAddress,
			Place:         ref.Place,
			Username:      username,
			Amount:        decimal.Zero,
			PaymentStatus: next,
			PaidAt:        nil,
		})
		if err != nil {
			return err
		}

		candidate, promoted, err := s.promoteNext(tx, competition, ref)
		if promoted {
			result.Promoted = candidate
		} else {
			result.Holder = candidate
		}
		return err
	})
	if err != nil {
		logWinnerErr("disqualify", ref, err)
		return nil, err
	}

	log.Printf("[WINNERS] 🚫 disqualified %s at place %d of %s", ref.WalletAddress, ref.Place, ref.CompetitionID)
	s.notify(models.EventDisqualify, competition, result.Disqualified)
	switch {
	case result.Promoted != nil:
		log.Printf("[WINNERS] ⬆️ promoted %s into place %d of %s", result.Promoted.WalletAddress, ref.Place, ref.CompetitionID)
		s.notify(models.EventPromote, competition, result.Promoted)
	case result.Holder != nil:
		log.Printf("[WINNERS] ℹ️ place %d of %s already held by %s (%s), nothing promoted", ref.Place, ref.CompetitionID, result.Holder.WalletAddress, result.Holder.PaymentStatus)
	default:
		log.Printf("[WINNERS] ⚠️ no eligible participant for place %d of %s, place left vacant", ref.Place, ref.CompetitionID)
	}
	return result, nil
}

// promoteNext performs the single promotion hop after a disqualification. It reports false
// with the existing row when the next eligible participant already holds the place.
func (s *WinnerService) promoteNext(tx *gorm.DB, competition *models.Competition, ref SlotRef) (*models.Winner, bool, error) {
	candidates, err := rankedAfter(tx, ref.CompetitionID, ref.Place)
	if err != nil {
		return nil, false, err
	}

	var banned []string
	err = tx.Model(&models.Winner{}).
		Where("competition_id = ? AND payment_status = ?", ref.CompetitionID, models.PaymentStatusDisqualified).
		Distinct().Pluck("wallet_address", &banned).Error
	if err != nil {
		return nil, false, storageErr(err)
	}
	disqualified := make(map[string]bool, len(banned)+1)
	for _, w := range banned {
		disqualified[w] = true
	}
	disqualified[ref.WalletAddress] = true

	for _, candidate := range candidates {
		if disqualified[candidate.WalletAddress] {
			continue
		}

		existing, err := findSlot(tx, ref.CompetitionID, candidate.WalletAddress, ref.Place)
		if err != nil {
			return nil, false, err
		}
		next, err := statusOf(existing).Next(models.EventPromote)
		if err != nil {
			// already an approved or paid winner of this place
			return existing, false, nil
		}
		promoted, err := upsertSlot(tx, &models.Winner{
			CompetitionID: ref.CompetitionID,
			WalletAddress: candidate.WalletAddress,
			Place:         ref.Place,
			Username:      candidate.Username,
			Amount:        competition.PrizeForPlace(ref.Place),
			PaymentStatus: next,
		})
		return promoted, err == nil, err
	}
	return nil, false, nil
}

// transition applies event to an existing slot. mutate may add columns on top of the
// event's own side effects.
func (s *WinnerService) transition(ctx context.Context, ref SlotRef, event models.WinnerEvent, mutate func(competition *models.Competition, fields map[string]interface{})) (*models.Winner, error) {
	if err := s.checkRef(&ref); err != nil {
		return nil, err
	}

	var (
		competition *models.Competition
		result      *models.Winner
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if competition, err = loadCompetition(tx, ref.CompetitionID); err != nil {
			return err
		}
		existing, err := findSlot(tx, ref.CompetitionID, ref.WalletAddress, ref.Place)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrWinnerNotFound
		}

		next, err := existing.PaymentStatus.Next(event)
		if err != nil {
			return transitionErr(err)
		}
		fields := map[string]interface{}{"payment_status": next}
		applyEvent(event, competition, ref.Place, s.now(), fields)
		if mutate != nil {
			mutate(competition, fields)
		}
		if err := tx.Model(existing).Updates(fields).Error; err != nil {
			return storageErr(err)
		}

		result, err = findSlot(tx, ref.CompetitionID, ref.WalletAddress, ref.Place)
		return err
	})
	if err != nil {
		logWinnerErr(string(event), ref, err)
		return nil, err
	}

	log.Printf("[WINNERS] 🔁 %s %s at place %d of %s -> %s", event, ref.WalletAddress, ref.Place, ref.CompetitionID, result.PaymentStatus)
	s.notify(event, competition, result)
	return result, nil
}

// Revoke takes back an approval or payment and returns the slot to pending. The payment
// proof is dropped with it.
func (s *WinnerService) Revoke(ctx context.Context, ref SlotRef) (*models.Winner, error) {
	return s.transition(ctx, ref, models.EventRevoke, nil)
}

// Reinstate returns a disqualified slot to pending with the place's prize restored.
func (s *WinnerService) Reinstate(ctx context.Context, ref SlotRef) (*models.Winner, error) {
	return s.transition(ctx, ref, models.EventReinstate, nil)
}

// MarkPaid records the payout of an approved slot.
func (s *WinnerService) MarkPaid(ctx context.Context, req MarkPaidRequest) (*models.Winner, error) {
	if err := s.Validator.Struct(&req); err != nil {
		return nil, err
	}
	return s.transition(ctx, req.SlotRef, models.EventPay, func(_ *models.Competition, fields map[string]interface{}) {
		if req.TxURL != "" {
			fields["tx_url"] = req.TxURL
		}
	})
}

// Finalize creates pending winners from the final ranking of an ended competition: for each
// breakdown place, the participant ranked at that place. Places that already have a
// non-disqualified winner, and slots that already exist, are left untouched.
func (s *WinnerService) Finalize(ctx context.Context, competitionID string) ([]models.Winner, error) {
	var competition *models.Competition
	created := []models.Winner{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if competition, err = loadCompetition(tx, competitionID); err != nil {
			return err
		}
		if models.ComputeStatus(s.Now(), competition.StartDate, competition.EndDate) != models.CompetitionStatusEnded {
			return ErrCompetitionNotEnded
		}

		for _, b := range competition.Breakdown {
			var held int64
			err := tx.Model(&models.Winner{}).
				Where("competition_id = ? AND place = ? AND payment_status <> ?", competitionID, b.Place, models.PaymentStatusDisqualified).
				Count(&held).Error
			if err != nil {
				return storageErr(err)
			}
			if held > 0 {
				continue
			}

			var p models.Participant
			err = tx.Where("competition_id = ? AND rank = ?", competitionID, b.Place).First(&p).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return storageErr(err)
			}

			existing, err := findSlot(tx, competitionID, p.WalletAddress, b.Place)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}

			w := models.Winner{
				ID:            uuid.NewString(),
				CompetitionID: competitionID,
				WalletAddress: p.WalletAddress,
				Place:         b.Place,
				Username:      p.Username,
				Amount:        b.Amount,
				PaymentStatus: models.PaymentStatusPending,
			}
			if err := tx.Create(&w).Error; err != nil {
				return storageErr(err)
			}
			created = append(created, w)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStorageFailure) {
			log.Printf("[WINNERS] ❌ finalize %s failed: %v", competitionID, err)
		}
		return nil, err
	}

	log.Printf("[WINNERS] 🏁 finalized %s: %d pending winners created", competitionID, len(created))
	if len(created) > 0 {
		s.Notifier.Notify(finalizeNotice(competition, created))
	}
	return created, nil
}

func finalizeNotice(c *models.Competition, created []models.Winner) string {
	var b strings.Builder
	b.WriteString("🏁 " + c.Title + " finalized")
	for i := range created {
		b.WriteString("\n" + winnerNotice(models.EventPromote, c.Title, &created[i]))
	}
	return b.String()
}

// List returns winners, optionally for one competition, ordered by competition and place.
// Competition titles are attached when they can be resolved.
func (s *WinnerService) List(ctx context.Context, competitionID string) ([]models.Winner, error) {
	db := s.DB.WithContext(ctx)

	q := db.Model(&models.Winner{})
	if competitionID != "" {
		q = q.Where("competition_id = ?", competitionID)
	}
	var winners []models.Winner
	if err := q.Order("competition_id ASC").Order("place ASC").Order("created_at ASC").Find(&winners).Error; err != nil {
		log.Printf("[WINNERS] ❌ failed to list winners: %v", err)
		return nil, storageErr(err)
	}

	ids := make([]string, 0)
	seen := map[string]bool{}
	for _, w := range winners {
		if !seen[w.CompetitionID] {
			seen[w.CompetitionID] = true
			ids = append(ids, w.CompetitionID)
		}
	}
	if len(ids) == 0 {
		return winners, nil
	}

	var competitions []models.Competition
	if err := db.Select("id", "title").Where("id IN ?", ids).Find(&competitions).Error; err != nil {
		log.Printf("[WINNERS] ⚠️ could not resolve competition titles: %v", err)
		return winners, nil
	}
	titles := make(map[string]string, len(competitions))
	for _, c := range competitions {
		titles[c.ID] = c.Title
	}
	for i := range winners {
		winners[i].CompetitionTitle = titles[winners[i].CompetitionID]
	}
	return winners, nil
}

// Create inserts a winner row by hand. The slot must be empty.
func (s *WinnerService) Create(ctx context.Context, in WinnerInput) (*models.Winner, error) {
	if err := s.checkRef(&in.SlotRef); err != nil {
		return nil, err
	}
	if err := s.Validator.Struct(&in); err != nil {
		return nil, err
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return nil, validationErr("amount must not be negative")
	}

	status := models.PaymentStatus(in.PaymentStatus)
	if status == models.PaymentStatusNone {
		status = models.PaymentStatusPending
	}
	// a new row starts from no state, so paid is never reachable here
	event, err := models.PaymentStatusNone.EventTo(status)
	if err != nil {
		return nil, transitionErr(err)
	}

	var (
		competition *models.Competition
		w           models.Winner
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if competition, err = loadCompetition(tx, in.CompetitionID); err != nil {
			return err
		}
		existing, err := findSlot(tx, in.CompetitionID, in.WalletAddress, in.Place)
		if err != nil {
			return err
		}
		if existing != nil {
			return validationErr("winner slot already exists")
		}

		username := in.Username
		if username == "" {
			if p, err := findParticipant(tx, in.CompetitionID, in.WalletAddress); err == nil {
				username = p.Username
			}
		}
		fields := map[string]interface{}{}
		applyEvent(event, competition, in.Place, s.now(), fields)
		if in.Amount != nil && event != models.EventDisqualify {
			fields["amount"] = *in.Amount
		}
		if event != models.EventDisqualify {
			fields["tx_url"] = in.TxURL
		}

		w = models.Winner{
			ID:            uuid.NewString(),
			CompetitionID: in.CompetitionID,
			WalletAddress: in.WalletAddress,
			Place:         in.Place,
			Username:      username,
			Amount:        fields["amount"].(decimal.Decimal),
			PaymentStatus: status,
			TxURL:         fields["tx_url"].(string),
		}
		if paidAt, ok := fields["paid_at"].(time.Time); ok {
			w.PaidAt = &paidAt
		}
		if err := tx.Create(&w).Error; err != nil {
			return storageErr(err)
		}
		return nil
	})
	if err != nil {
		logWinnerErr("create", in.SlotRef, err)
		return nil, err
	}

	w.CompetitionTitle = competition.Title
	log.Printf("[WINNERS] ➕ created %s at place %d of %s (%s)", w.WalletAddress, w.Place, w.CompetitionID, w.PaymentStatus)
	return &w, nil
}

// Update edits a winner row. A status change must be a legal transition; it does not
// cascade the way Disqualify does.
func (s *WinnerService) Update(ctx context.Context, id string, upd WinnerUpdate) (*models.Winner, error) {
	if err := s.Validator.Struct(&upd); err != nil {
		return nil, err
	}
	if upd.Amount != nil && upd.Amount.IsNegative() {
		return nil, validationErr("amount must not be negative")
	}

	var result models.Winner
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Winner
		err := tx.Where("id = ?", id).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWinnerNotFound
		}
		if err != nil {
			return storageErr(err)
		}

		fields := map[string]interface{}{}
		event := models.WinnerEvent("")
		if upd.PaymentStatus != nil {
			target := models.PaymentStatus(*upd.PaymentStatus)
			if target != existing.PaymentStatus {
				if event, err = existing.PaymentStatus.EventTo(target); err != nil {
					return transitionErr(err)
				}
				competition, err := loadCompetition(tx, existing.CompetitionID)
				if err != nil {
					return err
				}
				fields["payment_status"] = target
				applyEvent(event, competition, existing.Place, s.now(), fields)
			}
		}
		if upd.Username != nil {
			fields["username"] = *upd.Username
		}
		// a disqualified slot is always worth zero
		if upd.Amount != nil && event != models.EventDisqualify {
			fields["amount"] = *upd.Amount
		}
		if upd.TxURL != nil {
			fields["tx_url"] = *upd.TxURL
		}

		if len(fields) > 0 {
			if err := tx.Model(&existing).Updates(fields).Error; err != nil {
				return storageErr(err)
			}
		}
		if err := tx.Where("id = ?", id).First(&result).Error; err != nil {
			return storageErr(err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStorageFailure) {
			log.Printf("[WINNERS] ❌ update %s failed: %v", id, err)
		}
		return nil, err
	}
	return &result, nil
}

// Delete removes a winner row.
func (s *WinnerService) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Winner{})
	if res.Error != nil {
		log.Printf("[WINNERS] ❌ delete %s failed: %v", id, res.Error)
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrWinnerNotFound
	}
	log.Printf("[WINNERS] 🗑️ deleted %s", id)
	return nil
}
