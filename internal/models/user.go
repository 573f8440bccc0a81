package models

import (
	"slices"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusNone     PaymentStatus = "none"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// State is the user's position in the conversation state machine.
type State string

const (
	StateIdle State = "idle"

	StateSelectLanguage State = "select_language"
	StateSelectGender   State = "select_gender"
	StateSelectRegion   State = "select_region"
	StateSelectCountry  State = "select_country"

	StateSearchLanguage State = "search_language"
	StateSearchGender   State = "search_gender"
	StateSearchRegion   State = "search_region"
	StateSearchCountry  State = "search_country"

	StateAwaitingPaymentProof State = "awaiting_payment_proof"
)

type User struct {
	TelegramID int64 `gorm:"primaryKey"`

	Language string
	Gender   string
	Region   string
	Country  string

	State State `gorm:"default:idle"`

	// PartnerID is set on both sides of an active link or on neither.
	PartnerID *int64 `gorm:"index"`

	BlockedIDs []int64 `gorm:"type:jsonb;serializer:json"`
	Banned     bool

	PaymentStatus PaymentStatus `gorm:"default:none"`

	// SearchDraft accumulates partial search-dialog selections so a
	// restart mid-dialog does not strand the user.
	SearchDraft *Criteria `gorm:"type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (u *User) ProfileComplete() bool {
	return u.Language != "" && u.Gender != "" && u.Region != "" && u.Country != ""
}

func (u *User) HasBlocked(id int64) bool {
	return slices.Contains(u.BlockedIDs, id)
}

func (u *User) Block(id int64) {
	if !u.HasBlocked(id) {
		u.BlockedIDs = append(u.BlockedIDs, id)
	}
}

func (u *User) PremiumUnlocked() bool {
	return u.PaymentStatus == PaymentStatusApproved
}
