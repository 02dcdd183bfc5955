package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the state of a winner slot. The empty value means "no winner row yet".
type PaymentStatus string

const (
	PaymentStatusNone         PaymentStatus = ""
	PaymentStatusPending      PaymentStatus = "pending"
	PaymentStatusApproved     PaymentStatus = "approved"
	PaymentStatusDisqualified PaymentStatus = "disqualified"
	PaymentStatusPaid         PaymentStatus = "paid"
)

// WinnerEvent names an admin action applied to a winner slot.
type WinnerEvent string

const (
	EventApprove    WinnerEvent = "approve"
	EventDisqualify WinnerEvent = "disqualify"
	EventPromote    WinnerEvent = "promote"
	EventRevoke     WinnerEvent = "revoke"
	EventReinstate  WinnerEvent = "reinstate"
	EventPay        WinnerEvent = "pay"
)

// winnerTransitions lists the legal source states for every event and the state it lands on.
var winnerTransitions = map[WinnerEvent]struct {
	from []PaymentStatus
	to   PaymentStatus
}{
	EventApprove:    {from: []PaymentStatus{PaymentStatusNone, PaymentStatusPending, PaymentStatusApproved}, to: PaymentStatusApproved},
	EventDisqualify: {from: []PaymentStatus{PaymentStatusNone, PaymentStatusPending, PaymentStatusApproved, PaymentStatusDisqualified}, to: PaymentStatusDisqualified},
	EventPromote:    {from: []PaymentStatus{PaymentStatusNone, PaymentStatusPending}, to: PaymentStatusPending},
	EventRevoke:     {from: []PaymentStatus{PaymentStatusApproved, PaymentStatusPaid}, to: PaymentStatusPending},
	EventReinstate:  {from: []PaymentStatus{PaymentStatusDisqualified}, to: PaymentStatusPending},
	EventPay:        {from: []PaymentStatus{PaymentStatusApproved}, to: PaymentStatusPaid},
}

// TransitionError reports an event that is not legal from the current state.
type TransitionError struct {
	From  PaymentStatus
	Event WinnerEvent
}

func (e *TransitionError) Error() string {
	from := string(e.From)
	if from == "" {
		from = "none"
	}
	return fmt.Sprintf("cannot %s a winner in state %s", e.Event, from)
}

// Next returns the state reached by applying event to s.
func (s PaymentStatus) Next(event WinnerEvent) (PaymentStatus, error) {
	t, ok := winnerTransitions[event]
	if !ok {
		return s, fmt.Errorf("unknown winner event %q", event)
	}
	for _, from := range t.from {
		if from == s {
			return t.to, nil
		}
	}
	return s, &TransitionError{From: s, Event: event}
}

// EventTo picks the event that moves s to target. Staying in place is only legal where
// the machine allows it (approve on approved, disqualify on disqualified, promote on pending).
func (s PaymentStatus) EventTo(target PaymentStatus) (WinnerEvent, error) {
	for _, event := range []WinnerEvent{EventApprove, EventDisqualify, EventPay, EventRevoke, EventReinstate, EventPromote} {
		if next, err := s.Next(event); err == nil && next == target {
			return event, nil
		}
	}
	return "", &TransitionError{From: s, Event: WinnerEvent("set " + string(target))}
}

// Valid reports whether s is one of the stored states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusDisqualified, PaymentStatusPaid:
		return true
	}
	return false
}

// Winner is a participant formally assigned a place; the only record of money owed.
type Winner struct {
	ID            string          `json:"id" gorm:"primaryKey"`
	CompetitionID string          `json:"competition_id" gorm:"not null;uniqueIndex:idx_winner_slot"`
	WalletAddress string          `json:"wallet_address" gorm:"type:varchar(128);not null;uniqueIndex:idx_winner_slot"`
	Place         int             `json:"place" gorm:"not null;uniqueIndex:idx_winner_slot"`
	Username      string          `json:"username"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(18,2);default:0"`
	PaymentStatus PaymentStatus   `json:"payment_status" gorm:"type:varchar(16);not null;default:'pending';index"`
	PaidAt        *time.Time      `json:"paid_at"`
	TxURL         string          `json:"tx_url,omitempty"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`

	// Filled on admin listings only
	CompetitionTitle string `json:"competition_title,omitempty" gorm:"-"`
}

// Counts reports whether the row is shown publicly and counted in payout stats.
func (w *Winner) Counts() bool {
	return w.PaymentStatus != PaymentStatusDisqualified
}
