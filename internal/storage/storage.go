package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"multichat/bot/internal/models"
)

var (
	// ErrAlreadyResolved is returned when resolving a payment that has
	// already been approved or rejected.
	ErrAlreadyResolved = errors.New("payment already resolved")

	// ErrAlreadyLinked is returned when linking users one of which
	// already has an active partner.
	ErrAlreadyLinked = errors.New("user already linked")

	// ErrNotLinked is returned when unlinking a user without a partner.
	ErrNotLinked = errors.New("user not linked")
)

type Storage struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.PendingPayment{},
		&models.GlobalState{},
	); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("getting user %d: %w", telegramID, err)
	}
	return &user, nil
}

// GetOrCreateUser lazily creates the record on a user's first contact.
func (s *Storage) GetOrCreateUser(ctx context.Context, telegramID int64) (*models.User, error) {
	userToCreate := &models.User{
		TelegramID:    telegramID,
		State:         models.StateIdle,
		PaymentStatus: models.PaymentStatusNone,
	}

	var user models.User
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "telegram_id"}},
				DoNothing: true,
			}).
			Create(userToCreate).
			Error; err != nil {
			return fmt.Errorf("creating user: %w", err)
		}

		if err := tx.
			Where("telegram_id = ?", telegramID).
			First(&user).
			Error; err != nil {
			return fmt.Errorf("getting user: %w", err)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("in tx: %w", err)
	}

	return &user, nil
}

func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("saving user %d: %w", user.TelegramID, err)
	}
	return nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	var result []*models.User
	if err := s.db.
		WithContext(ctx).
		Order("created_at").
		Find(&result).
		Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return result, nil
}

func (s *Storage) SetUserBanned(ctx context.Context, telegramID int64, banned bool) error {
	if err := s.db.
		WithContext(ctx).
		Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]any{
			"banned": banned,
		}).
		Error; err != nil {
		return fmt.Errorf("updating user %d: %w", telegramID, err)
	}
	return nil
}

// LinkPartners sets both partner_id fields in one transaction. It fails
// with ErrAlreadyLinked, committing nothing, if either side already has a
// partner, so a half-linked state is never visible.
func (s *Storage) LinkPartners(ctx context.Context, aID, bID int64) error {
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users []models.User
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("telegram_id IN ?", []int64{aID, bID}).
			Find(&users).
			Error; err != nil {
			return fmt.Errorf("locking users: %w", err)
		}
		if len(users) != 2 {
			return fmt.Errorf("expected 2 users, found %d", len(users))
		}
		for _, u := range users {
			if u.PartnerID != nil {
				return ErrAlreadyLinked
			}
		}

		if err := tx.
			Model(&models.User{}).
			Where("telegram_id = ?", aID).
			Updates(map[string]any{"partner_id": bID, "search_draft": nil}).
			Error; err != nil {
			return fmt.Errorf("linking %d: %w", aID, err)
		}
		if err := tx.
			Model(&models.User{}).
			Where("telegram_id = ?", bID).
			Updates(map[string]any{"partner_id": aID, "search_draft": nil}).
			Error; err != nil {
			return fmt.Errorf("linking %d: %w", bID, err)
		}
		return nil
	}); err != nil {
		if errors.Is(err, ErrAlreadyLinked) {
			return err
		}
		return fmt.Errorf("in tx: %w", err)
	}
	return nil
}

// UnlinkPartners clears both sides of userID's link in one transaction and
// returns the former partner's id.
func (s *Storage) UnlinkPartners(ctx context.Context, userID int64) (int64, error) {
	var partnerID int64
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("telegram_id = ?", userID).
			First(&user).
			Error; err != nil {
			return fmt.Errorf("locking user: %w", err)
		}
		if user.PartnerID == nil {
			return ErrNotLinked
		}
		partnerID = *user.PartnerID

		if err := tx.
			Model(&models.User{}).
			Where("telegram_id IN ?", []int64{userID, partnerID}).
			Updates(map[string]any{"partner_id": nil}).
			Error; err != nil {
			return fmt.Errorf("clearing links: %w", err)
		}
		return nil
	}); err != nil {
		if errors.Is(err, ErrNotLinked) {
			return 0, err
		}
		return 0, fmt.Errorf("in tx: %w", err)
	}
	return partnerID, nil
}

func (s *Storage) CreatePayment(ctx context.Context, payment *models.PendingPayment) error {
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}
	return nil
}

func (s *Storage) GetPayment(ctx context.Context, id string) (*models.PendingPayment, error) {
	var payment models.PendingPayment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, fmt.Errorf("getting payment %s: %w", id, err)
	}
	return &payment, nil
}

// ResolvePayment marks the payment approved or rejected and mirrors the
// decision onto the user's payment_status. Resolution is terminal:
// a second call fails with ErrAlreadyResolved and changes nothing.
func (s *Storage) ResolvePayment(ctx context.Context, id string, status models.PaymentStatus) (*models.PendingPayment, error) {
	var payment models.PendingPayment
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&payment).
			Error; err != nil {
			return fmt.Errorf("getting payment: %w", err)
		}
		if payment.Resolved() {
			return ErrAlreadyResolved
		}

		now := time.Now()
		payment.Status = status
		payment.ResolvedAt = &now
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("saving payment: %w", err)
		}

		if err := tx.
			Model(&models.User{}).
			Where("telegram_id = ?", payment.UserID).
			Updates(map[string]any{"payment_status": status}).
			Error; err != nil {
			return fmt.Errorf("updating user payment status: %w", err)
		}
		return nil
	}); err != nil {
		if errors.Is(err, ErrAlreadyResolved) {
			return &payment, err
		}
		return nil, fmt.Errorf("in tx: %w", err)
	}
	return &payment, nil
}

func (s *Storage) GetOrCreateGlobalState(ctx context.Context) (*models.GlobalState, error) {
	state := &models.GlobalState{ID: 1}
	if err := s.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(state).
		Error; err != nil {
		return nil, fmt.Errorf("creating global state: %w", err)
	}
	if err := s.db.WithContext(ctx).First(state).Error; err != nil {
		return nil, fmt.Errorf("getting global state: %w", err)
	}
	return state, nil
}

func (s *Storage) UpdateLastUpdate(ctx context.Context, updateID int) error {
	if err := s.db.
		WithContext(ctx).
		Model(&models.GlobalState{}).
		Where("id = 1").
		Updates(map[string]any{"last_update_id": updateID}).
		Error; err != nil {
		return fmt.Errorf("updating last update: %w", err)
	}
	return nil
}
