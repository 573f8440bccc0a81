package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"multichat/bot/internal/models"
	"multichat/bot/internal/storage"
)

type fakeStore struct {
	users    map[int64]*models.User
	payments map[string]*models.PendingPayment
}

func newFakeStore(users ...*models.User) *fakeStore {
	s := &fakeStore{
		users:    make(map[int64]*models.User),
		payments: make(map[string]*models.PendingPayment),
	}
	for _, u := range users {
		s.users[u.TelegramID] = u
	}
	return s
}

func (s *fakeStore) SaveUser(_ context.Context, user *models.User) error {
	s.users[user.TelegramID] = user
	return nil
}

func (s *fakeStore) CreatePayment(_ context.Context, payment *models.PendingPayment) error {
	s.payments[payment.ID] = payment
	return nil
}

func (s *fakeStore) ResolvePayment(_ context.Context, id string, status models.PaymentStatus) (*models.PendingPayment, error) {
	payment, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", id)
	}
	if payment.Resolved() {
		return payment, storage.ErrAlreadyResolved
	}
	now := time.Now()
	payment.Status = status
	payment.ResolvedAt = &now
	if user, ok := s.users[payment.UserID]; ok {
		user.PaymentStatus = status
	}
	return payment, nil
}

func TestSubmitProofCreatesPendingPayment(t *testing.T) {
	user := &models.User{TelegramID: 1}
	store := newFakeStore(user)

	var submitted []*models.PendingPayment
	svc := New(store, func(p *models.PendingPayment) {
		submitted = append(submitted, p)
	})

	payment, err := svc.SubmitProof(context.Background(), user, "txn-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Status != models.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", payment.Status)
	}
	if payment.Proof != "txn-1" || payment.UserID != 1 {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if user.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("expected user marked pending, got %s", user.PaymentStatus)
	}
	if len(submitted) != 1 || submitted[0].ID != payment.ID {
		t.Fatalf("expected admins notified once, got %v", submitted)
	}
}

func TestResolveIsTerminal(t *testing.T) {
	user := &models.User{TelegramID: 1}
	store := newFakeStore(user)
	svc := New(store, nil)
	ctx := context.Background()

	payment, err := svc.SubmitProof(ctx, user, "txn-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, err := svc.Resolve(ctx, payment.ID, models.PaymentStatusApproved)
	if err != nil {
		t.Fatalf("unexpected error approving: %v", err)
	}
	if resolved.Status != models.PaymentStatusApproved {
		t.Fatalf("expected approved, got %s", resolved.Status)
	}
	if !user.PremiumUnlocked() {
		t.Fatal("approval must unlock premium filters")
	}

	// The second decision is a no-op and the original outcome stands.
	again, err := svc.Resolve(ctx, payment.ID, models.PaymentStatusRejected)
	if !errors.Is(err, storage.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	if again.Status != models.PaymentStatusApproved {
		t.Fatalf("resolution must stay approved, got %s", again.Status)
	}
	if !user.PremiumUnlocked() {
		t.Fatal("user must stay unlocked")
	}
}

func TestResolveRejectsInvalidDecision(t *testing.T) {
	svc := New(newFakeStore(), nil)
	if _, err := svc.Resolve(context.Background(), "p1", models.PaymentStatusPending); err == nil {
		t.Fatal("expected an error for a non-terminal decision")
	}
}

func TestRejectedUserMayResubmit(t *testing.T) {
	user := &models.User{TelegramID: 1}
	store := newFakeStore(user)
	svc := New(store, nil)
	ctx := context.Background()

	first, err := svc.SubmitProof(ctx, user, "txn-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Resolve(ctx, first.ID, models.PaymentStatusRejected); err != nil {
		t.Fatalf("unexpected error rejecting: %v", err)
	}

	second, err := svc.SubmitProof(ctx, user, "txn-2")
	if err != nil {
		t.Fatalf("unexpected error resubmitting: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("resubmission must create a fresh pending payment")
	}
	if user.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("expected user pending again, got %s", user.PaymentStatus)
	}
}
