// Package payments tracks manual payment verification: users submit proof,
// admins approve or reject, and approval unlocks the premium search filters.
package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"multichat/bot/internal/models"
)

type Store interface {
	SaveUser(ctx context.Context, user *models.User) error
	CreatePayment(ctx context.Context, payment *models.PendingPayment) error
	ResolvePayment(ctx context.Context, id string, status models.PaymentStatus) (*models.PendingPayment, error)
}

// SubmittedFunc tells the admins a new proof is awaiting review.
type SubmittedFunc func(payment *models.PendingPayment)

type Service struct {
	store     Store
	submitted SubmittedFunc
}

func New(store Store, submitted SubmittedFunc) *Service {
	return &Service{store: store, submitted: submitted}
}

// SubmitProof creates a pending payment for the user's proof and marks the
// user pending. A rejected user may resubmit; each submission is a fresh
// pending payment.
func (s *Service) SubmitProof(ctx context.Context, user *models.User, proof string) (*models.PendingPayment, error) {
	payment := &models.PendingPayment{
		ID:     uuid.New().String(),
		UserID: user.TelegramID,
		Proof:  proof,
		Status: models.PaymentStatusPending,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("creating payment: %w", err)
	}

	user.PaymentStatus = models.PaymentStatusPending
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}

	logrus.Infof("user %d submitted payment proof %s", user.TelegramID, payment.ID)
	if s.submitted != nil {
		s.submitted(payment)
	}
	return payment, nil
}

// Resolve applies an admin decision. Resolution is terminal: a second
// decision on the same payment fails with storage.ErrAlreadyResolved and
// the original outcome stands.
func (s *Service) Resolve(ctx context.Context, paymentID string, decision models.PaymentStatus) (*models.PendingPayment, error) {
	if decision != models.PaymentStatusApproved && decision != models.PaymentStatusRejected {
		return nil, fmt.Errorf("invalid decision %q", decision)
	}
	payment, err := s.store.ResolvePayment(ctx, paymentID, decision)
	if err != nil {
		return payment, err
	}
	logrus.Infof("payment %s resolved as %s", payment.ID, decision)
	return payment, nil
}
