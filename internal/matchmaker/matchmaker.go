// Package matchmaker keeps the pool of users currently searching for a
// partner and pairs mutually compatible searchers.
package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"multichat/bot/internal/models"
	"multichat/bot/internal/storage"
)

type UserStore interface {
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	LinkPartners(ctx context.Context, aID, bID int64) error
}

// NotifyFunc tells a waiting user their partner was found.
type NotifyFunc func(userID int64, partner *models.User)

type request struct {
	userID     int64
	criteria   models.Criteria
	enqueuedAt time.Time
}

type Matchmaker struct {
	users  UserStore
	notify NotifyFunc

	// mu serializes enqueue, dequeue and the match scan so two
	// concurrent searches cannot double-book a third party.
	mu    sync.Mutex
	queue []*request
}

func New(users UserStore, notify NotifyFunc) *Matchmaker {
	return &Matchmaker{
		users:  users,
		notify: notify,
	}
}

// Enqueue registers a search request for user and immediately scans the
// pool for the earliest-enqueued mutually compatible candidate. On a match
// both sides are linked atomically, the waiting side is notified, and the
// matched partner is returned. With no candidate the request stays pooled
// and nil is returned.
func (m *Matchmaker) Enqueue(ctx context.Context, user *models.User, criteria models.Criteria) (*models.User, error) {
	m.mu.Lock()
	candidate, err := m.enqueueLocked(ctx, user, criteria)
	m.mu.Unlock()
	if err != nil || candidate == nil {
		return nil, err
	}

	// The notification is a network send; it must not stall other
	// searches by running under the pool mutex.
	if m.notify != nil {
		m.notify(candidate.TelegramID, user)
	}
	return candidate, nil
}

func (m *Matchmaker) enqueueLocked(ctx context.Context, user *models.User, criteria models.Criteria) (*models.User, error) {
	// At most one outstanding request per user.
	m.remove(user.TelegramID)

	for i := 0; i < len(m.queue); i++ {
		req := m.queue[i]

		candidate, err := m.users.GetUser(ctx, req.userID)
		if err != nil {
			return nil, fmt.Errorf("loading candidate %d: %w", req.userID, err)
		}
		if candidate.PartnerID != nil {
			// Got taken outside the pool; the request is stale.
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			i--
			continue
		}

		if !compatible(user, criteria, candidate, req.criteria) {
			continue
		}

		if err := m.users.LinkPartners(ctx, user.TelegramID, candidate.TelegramID); err != nil {
			if errors.Is(err, storage.ErrAlreadyLinked) {
				continue
			}
			return nil, fmt.Errorf("linking partners: %w", err)
		}

		m.queue = append(m.queue[:i], m.queue[i+1:]...)

		user.PartnerID = &candidate.TelegramID
		user.SearchDraft = nil
		candidate.PartnerID = &user.TelegramID
		candidate.SearchDraft = nil

		logrus.Infof("matched users %d and %d", user.TelegramID, candidate.TelegramID)
		return candidate, nil
	}

	m.queue = append(m.queue, &request{
		userID:     user.TelegramID,
		criteria:   criteria,
		enqueuedAt: time.Now(),
	})
	return nil, nil
}

// Dequeue cancels the user's outstanding search request, if any.
func (m *Matchmaker) Dequeue(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(userID)
}

// Waiting reports whether the user has an outstanding search request.
func (m *Matchmaker) Waiting(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.queue {
		if req.userID == userID {
			return true
		}
	}
	return false
}

func (m *Matchmaker) remove(userID int64) bool {
	for i, req := range m.queue {
		if req.userID == userID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}

// compatible requires symmetric agreement: each side's criteria must accept
// the other side's profile, neither may be banned or mid-conversation, and
// neither may appear in the other's block list.
func compatible(a *models.User, ac models.Criteria, b *models.User, bc models.Criteria) bool {
	if a.TelegramID == b.TelegramID {
		return false
	}
	if a.Banned || b.Banned {
		return false
	}
	if a.PartnerID != nil || b.PartnerID != nil {
		return false
	}
	if a.HasBlocked(b.TelegramID) || b.HasBlocked(a.TelegramID) {
		return false
	}
	return ac.Accepts(b) && bc.Accepts(a)
}
