package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Request payloads accepted by the admin surface. Handlers decode into these and
// services validate them before touching storage.

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=10,max=256"`
}

type BreakdownInput struct {
	Place   int             `json:"place" validate:"required,gte=1,lte=1000"`
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
	IsSplit bool            `json:"is_split"`
}

type CompetitionInput struct {
	Name          string           `json:"name" validate:"omitempty,max=128"`
	Title         string           `json:"title" validate:"required,max=200"`
	Period        string           `json:"period" validate:"max=64"`
	StartDate     time.Time        `json:"start_date" validate:"required"`
	EndDate       time.Time        `json:"end_date" validate:"required"`
	PrizePool     decimal.Decimal  `json:"prize_pool"`
	Status        string           `json:"status" validate:"omitempty,oneof=draft upcoming active ended"`
	HighlightCopy string           `json:"highlight_copy" validate:"max=500"`
	CTAText       string           `json:"cta_text" validate:"max=100"`
	CTALink       string           `json:"cta_link" validate:"omitempty,url"`
	Breakdown     []BreakdownInput `json:"breakdown" validate:"omitempty,dive"`
}

// SlotRef addresses one winner slot: a wallet at a place in a competition.
type SlotRef struct {
	CompetitionID string `json:"competition_id" validate:"required"`
	WalletAddress string `json:"wallet_address" validate:"required,max=128"`
	Place         int    `json:"place" validate:"required,gte=1"`
}

type MarkPaidRequest struct {
	SlotRef
	TxURL string `json:"tx_url" validate:"omitempty,url"`
}

type WinnerInput struct {
	SlotRef
	Username      string           `json:"username" validate:"max=100"`
	Amount        *decimal.Decimal `json:"amount"`
	PaymentStatus string           `json:"payment_status" validate:"omitempty,oneof=pending approved disqualified paid"`
	TxURL         string           `json:"tx_url" validate:"omitempty,url"`
}

type WinnerUpdate struct {
	Username      *string          `json:"username" validate:"omitempty,max=100"`
	Amount        *decimal.Decimal `json:"amount"`
	PaymentStatus *string          `json:"payment_status" validate:"omitempty,oneof=pending approved disqualified paid"`
	TxURL         *string          `json:"tx_url" validate:"omitempty,url"`
}

type ParticipantEntry struct {
	WalletAddress string          `json:"wallet_address" validate:"required,max=128"`
	Username      string          `json:"username" validate:"max=100"`
	Score         decimal.Decimal `json:"score"`
	EntryDate     *time.Time      `json:"entry_date"`
}

type IngestRequest struct {
	Entries []ParticipantEntry `json:"entries" validate:"required,min=1,max=5000,dive"`
}

type SettingInput struct {
	Key   string          `json:"key" validate:"required,max=64"`
	Value json.RawMessage `json:"value" validate:"required"`
}

// Validator wraps go-playground/validator so validation failures surface as ErrValidation.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
		}
		return validationErr("%s", strings.Join(msgs, "; "))
	}
	return validationErr("%v", err)
}
