// Package relay forwards messages between linked partners.
package relay

import (
	"context"
	"errors"
	"fmt"

	"multichat/bot/internal/models"
)

var (
	ErrNoActivePartner = errors.New("no active partner")
	ErrBlocked         = errors.New("conversation blocked")
)

type UserStore interface {
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
}

// SendFunc delivers text to a user. Fire-and-forget from the router's
// point of view beyond the returned error.
type SendFunc func(userID int64, text string) error

type Router struct {
	users UserStore
	send  SendFunc
}

func New(users UserStore, send SendFunc) *Router {
	return &Router{users: users, send: send}
}

// Partner resolves the active partner for a sender, re-checking bans and
// block lists at relay time: a block placed mid-conversation takes effect
// immediately, even over an existing link.
func (r *Router) Partner(ctx context.Context, fromID int64) (int64, error) {
	from, err := r.users.GetUser(ctx, fromID)
	if err != nil {
		return 0, fmt.Errorf("getting sender: %w", err)
	}
	if from.PartnerID == nil {
		return 0, ErrNoActivePartner
	}

	partner, err := r.users.GetUser(ctx, *from.PartnerID)
	if err != nil {
		return 0, fmt.Errorf("getting partner: %w", err)
	}

	if from.Banned || partner.Banned {
		return 0, ErrBlocked
	}
	if from.HasBlocked(partner.TelegramID) || partner.HasBlocked(from.TelegramID) {
		return 0, ErrBlocked
	}

	return partner.TelegramID, nil
}

// Relay forwards content verbatim to the sender's partner. No persistence
// side effects.
func (r *Router) Relay(ctx context.Context, fromID int64, content string) error {
	partnerID, err := r.Partner(ctx, fromID)
	if err != nil {
		return err
	}
	if err := r.send(partnerID, content); err != nil {
		return fmt.Errorf("forwarding to %d: %w", partnerID, err)
	}
	return nil
}
