package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"multichat/bot/internal/models"
)

type fakeUserStore map[int64]*models.User

func (s fakeUserStore) GetUser(_ context.Context, telegramID int64) (*models.User, error) {
	u, ok := s[telegramID]
	if !ok {
		return nil, fmt.Errorf("user %d not found", telegramID)
	}
	return u, nil
}

type sentMessage struct {
	to   int64
	text string
}

func link(a, b *models.User) {
	a.PartnerID = &b.TelegramID
	b.PartnerID = &a.TelegramID
}

func TestRelayForwardsVerbatim(t *testing.T) {
	u1 := &models.User{TelegramID: 1}
	u2 := &models.User{TelegramID: 2}
	link(u1, u2)
	store := fakeUserStore{1: u1, 2: u2}

	var sent []sentMessage
	r := New(store, func(userID int64, text string) error {
		sent = append(sent, sentMessage{to: userID, text: text})
		return nil
	})

	if err := r.Relay(context.Background(), 1, "hello there"); err != nil {
		t.Fatalf("unexpected relay error: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 forwarded message, got %d", len(sent))
	}
	if sent[0].to != 2 || sent[0].text != "hello there" {
		t.Fatalf("unexpected forward: %+v", sent[0])
	}
}

func TestRelayWithoutPartner(t *testing.T) {
	store := fakeUserStore{1: &models.User{TelegramID: 1}}
	r := New(store, func(int64, string) error {
		t.Fatal("nothing should be sent")
		return nil
	})

	err := r.Relay(context.Background(), 1, "hello")
	if !errors.Is(err, ErrNoActivePartner) {
		t.Fatalf("expected ErrNoActivePartner, got %v", err)
	}
}

func TestRelayBlockedBothDirections(t *testing.T) {
	// A block placed mid-conversation cuts the relay immediately, even
	// though the link still exists.
	u1 := &models.User{TelegramID: 1}
	u2 := &models.User{TelegramID: 2}
	link(u1, u2)
	u1.Block(2)
	store := fakeUserStore{1: u1, 2: u2}

	r := New(store, func(int64, string) error {
		t.Fatal("nothing should be sent")
		return nil
	})

	for _, fromID := range []int64{1, 2} {
		err := r.Relay(context.Background(), fromID, "hello")
		if !errors.Is(err, ErrBlocked) {
			t.Fatalf("expected ErrBlocked relaying from %d, got %v", fromID, err)
		}
	}
}

func TestRelayBannedPartner(t *testing.T) {
	u1 := &models.User{TelegramID: 1}
	u2 := &models.User{TelegramID: 2, Banned: true}
	link(u1, u2)
	store := fakeUserStore{1: u1, 2: u2}

	r := New(store, func(int64, string) error {
		t.Fatal("nothing should be sent")
		return nil
	})

	err := r.Relay(context.Background(), 1, "hello")
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestRelaySendFailure(t *testing.T) {
	u1 := &models.User{TelegramID: 1}
	u2 := &models.User{TelegramID: 2}
	link(u1, u2)
	store := fakeUserStore{1: u1, 2: u2}

	sendErr := errors.New("telegram down")
	r := New(store, func(int64, string) error { return sendErr })

	err := r.Relay(context.Background(), 1, "hello")
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}
