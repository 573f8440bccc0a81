package models

import (
	"fmt"
	"time"
)

type PendingPayment struct {
	ID     string `gorm:"type:uuid;primaryKey"`
	UserID int64  `gorm:"index"`

	// Proof is whatever the user submitted: free text or a file reference.
	Proof string

	Status PaymentStatus `gorm:"default:pending"`

	CreatedAt  time.Time `gorm:"autoCreateTime"`
	ResolvedAt *time.Time
}

func (p *PendingPayment) Resolved() bool {
	return p.Status == PaymentStatusApproved || p.Status == PaymentStatusRejected
}

func (p *PendingPayment) String() string {
	return fmt.Sprintf("PendingPayment(%s, user=%d, %s)", p.ID, p.UserID, p.Status)
}
