// Package dialog drives the multi-step profile-setup, partner-search and
// payment-proof conversations. It is a deterministic finite-state machine
// keyed per user; the current state lives on the user record and each
// accepted step is persisted before the user sees a reply.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"multichat/bot/internal/catalog"
	"multichat/bot/internal/models"
)

var (
	// ErrInvalidInput means the input is outside the current step's
	// option set. State is unchanged; the returned reply re-prompts.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIdle means the user is not in any dialog.
	ErrIdle = errors.New("no active dialog")
)

type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
}

type Seeker interface {
	Enqueue(ctx context.Context, user *models.User, criteria models.Criteria) (*models.User, error)
}

type ProofSink interface {
	SubmitProof(ctx context.Context, user *models.User, proof string) (*models.PendingPayment, error)
}

// Reply is what the user should see after a step: a text and, optionally,
// one keyboard button per option.
type Reply struct {
	Text    string
	Options []string
}

type stepFunc func(ctx context.Context, user *models.User, input string) (*Reply, error)

type Engine struct {
	users   UserStore
	catalog *catalog.Catalog
	seeker  Seeker
	proofs  ProofSink

	steps map[models.State]stepFunc
}

func New(users UserStore, cat *catalog.Catalog, seeker Seeker, proofs ProofSink) *Engine {
	e := &Engine{
		users:   users,
		catalog: cat,
		seeker:  seeker,
		proofs:  proofs,
	}
	e.steps = map[models.State]stepFunc{
		models.StateSelectLanguage:       e.selectLanguage,
		models.StateSelectGender:         e.selectGender,
		models.StateSelectRegion:         e.selectRegion,
		models.StateSelectCountry:        e.selectCountry,
		models.StateSearchLanguage:       e.searchLanguage,
		models.StateSearchGender:         e.searchGender,
		models.StateSearchRegion:         e.searchRegion,
		models.StateSearchCountry:        e.searchCountry,
		models.StateAwaitingPaymentProof: e.paymentProof,
	}
	return e
}

// Active reports whether the user is mid-dialog.
func (e *Engine) Active(user *models.User) bool {
	return user.State != models.StateIdle
}

// Start begins the profile dialog. Entering a dialog implicitly cancels
// any other dialog in progress.
func (e *Engine) Start(ctx context.Context, user *models.User) (*Reply, error) {
	user.State = models.StateSelectLanguage
	user.SearchDraft = nil
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return e.languagePrompt(), nil
}

// StartSearch begins the partner-search dialog. The profile must be
// complete and the user must not be in an active conversation.
func (e *Engine) StartSearch(ctx context.Context, user *models.User) (*Reply, error) {
	if !user.ProfileComplete() {
		return &Reply{Text: "Please set up your profile with /start before searching."}, nil
	}
	if user.PartnerID != nil {
		return &Reply{Text: "You are already in a conversation. Use /stop to leave it first."}, nil
	}

	user.State = models.StateSearchLanguage
	user.SearchDraft = &models.Criteria{}
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return &Reply{
		Text:    "Which language should your partner speak?",
		Options: withAny(e.catalog.Languages),
	}, nil
}

// StartPaymentProof begins the payment-proof dialog.
func (e *Engine) StartPaymentProof(ctx context.Context, user *models.User) (*Reply, error) {
	user.State = models.StateAwaitingPaymentProof
	user.SearchDraft = nil
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return &Reply{Text: "Please send your payment proof (a screenshot or a transaction reference). Use /cancel to abort."}, nil
}

// Cancel exits any dialog, discarding partial selections. Profile
// attributes already written by completed steps stay in place: each
// select step persists on acceptance, so only the step in flight is
// lost. Search drafts are dropped wholesale.
func (e *Engine) Cancel(ctx context.Context, user *models.User) (*Reply, error) {
	if user.State == models.StateIdle {
		return &Reply{Text: "Nothing to cancel."}, nil
	}
	user.State = models.StateIdle
	user.SearchDraft = nil
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return &Reply{Text: "Cancelled."}, nil
}

// HandleInput routes input to the current step. Returns ErrIdle when no
// dialog is active so the caller can fall through to the relay.
func (e *Engine) HandleInput(ctx context.Context, user *models.User, input string) (*Reply, error) {
	step, ok := e.steps[user.State]
	if !ok {
		return nil, ErrIdle
	}
	return step(ctx, user, input)
}

func (e *Engine) languagePrompt() *Reply {
	return &Reply{Text: "Welcome! Which language do you speak?", Options: e.catalog.Languages}
}

func (e *Engine) selectLanguage(ctx context.Context, user *models.User, input string) (*Reply, error) {
	value := strings.ToLower(strings.TrimSpace(input))
	if !e.catalog.ValidLanguage(value) {
		return e.languagePrompt(), ErrInvalidInput
	}
	user.Language = value
	user.State = models.StateSelectGender
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return &Reply{Text: "What is your gender?", Options: e.catalog.Genders}, nil
}

func (e *Engine) selectGender(ctx context.Context, user *models.User, input string) (*Reply, error) {
	value := strings.ToLower(strings.TrimSpace(input))
	if !e.catalog.ValidGender(value) {
		return &Reply{Text: "What is your gender?", Options: e.catalog.Genders}, ErrInvalidInput
	}
	user.Gender = value
	user.State = models.StateSelectRegion
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return &Reply{Text: "Which region are you from?", Options: e.catalog.Regions}, nil
}

func (e *Engine) selectRegion(ctx context.Context, user *models.User, input string) (*Reply, error) {
	value := strings.TrimSpace(input)
	if !e.catalog.ValidRegion(value) {
		return &Reply{Text: "Which region are you from?", Options: e.catalog.Regions}, ErrInvalidInput
	}
	user.Region = value
	user.State = models.StateSelectCountry
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return &Reply{Text: "Which country are you from?", Options: e.catalog.CountriesIn(value)}, nil
}

func (e *Engine) selectCountry(ctx context.Context, user *models.User, input string) (*Reply, error) {
	value := strings.TrimSpace(input)
	// Country options depend on the region chosen earlier in this dialog.
	if !e.catalog.ValidCountry(user.Region, value) {
		return &Reply{Text: "Which country are you from?", Options: e.catalog.CountriesIn(user.Region)}, ErrInvalidInput
	}
	user.Country = value
	user.State = models.StateIdle
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return &Reply{Text: fmt.Sprintf(
		"Your profile is complete: %s, %s, %s, %s. Use /search to find a partner.",
		user.Language, user.Gender, user.Region, user.Country,
	)}, nil
}

func (e *Engine) searchLanguage(ctx context.Context, user *models.User, input string) (*Reply, error) {
	value := strings.ToLower(strings.TrimSpace(input))
	if value != models.Any && !e.catalog.ValidLanguage(value) {
		return &Reply{
			Text:    "Which language should your partner speak?",
			Options: withAny(e.catalog.Languages),
		}, ErrInvalidInput
	}
	draft := e.draft(user)
	draft.Language = value

	// Gender, region and country filters are a premium capability;
	// without an approved payment the search runs on language alone.
	if !user.PremiumUnlocked() {
		draft.Gender = models.Any
		draft.Region = models.Any
		draft.Country = models.Any
		return e.completeSearch(ctx, user)
	}

	user.State = models.StateSearchGender
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return &Reply{
		Text:    "Which gender are you looking for?",
		Options: withAny(e.catalog.Genders),
	}, nil
}

func (e *Engine) searchGender(ctx context.Context, user *models.User, input string) (*Reply, error) {
	value := strings.ToLower(strings.TrimSpace(input))
	if value != models.Any && !e.catalog.ValidGender(value) {
		return &Reply{
			Text:    "Which gender are you looking for?",
			Options: withAny(e.catalog.Genders),
		}, ErrInvalidInput
	}
	e.draft(user).Gender = value
	user.State = models.StateSearchRegion
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return &Reply{
		Text:    "Which region should your partner be from?",
		Options: withAny(e.catalog.Regions),
	}, nil
}

func (e *Engine) searchRegion(ctx context.Context, user *models.User, input string) (*Reply, error) {
	value := strings.TrimSpace(input)
	anyRegion := strings.EqualFold(value, models.Any)
	if !anyRegion && !e.catalog.ValidRegion(value) {
		return &Reply{
			Text:    "Which region should your partner be from?",
			Options: withAny(e.catalog.Regions),
		}, ErrInvalidInput
	}

	draft := e.draft(user)
	if anyRegion {
		// Without a region there is no country list to choose from.
		draft.Region = models.Any
		draft.Country = models.Any
		return e.completeSearch(ctx, user)
	}

	draft.Region = value
	user.State = models.StateSearchCountry
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return &Reply{
		Text:    "Which country should your partner be from?",
		Options: withAny(e.catalog.CountriesIn(value)),
	}, nil
}

func (e *Engine) searchCountry(ctx context.Context, user *models.User, input string) (*Reply, error) {
	value := strings.TrimSpace(input)
	draft := e.draft(user)
	anyCountry := strings.EqualFold(value, models.Any)
	if !anyCountry && !e.catalog.ValidCountry(draft.Region, value) {
		return &Reply{
			Text:    "Which country should your partner be from?",
			Options: withAny(e.catalog.CountriesIn(draft.Region)),
		}, ErrInvalidInput
	}
	if anyCountry {
		draft.Country = models.Any
	} else {
		draft.Country = value
	}
	return e.completeSearch(ctx, user)
}

// completeSearch persists the finished dialog and hands the criteria to
// the matchmaker.
func (e *Engine) completeSearch(ctx context.Context, user *models.User) (*Reply, error) {
	criteria := *e.draft(user)
	user.State = models.StateIdle
	if err := e.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	partner, err := e.seeker.Enqueue(ctx, user, criteria)
	if err != nil {
		return nil, fmt.Errorf("enqueueing search: %w", err)
	}
	if partner != nil {
		return &Reply{Text: "Partner found! Say hi — your messages are now relayed. Use /stop to end the conversation."}, nil
	}
	return &Reply{Text: "Searching for a partner… You will be notified when one is found. Use /stop to cancel."}, nil
}

func (e *Engine) paymentProof(ctx context.Context, user *models.User, input string) (*Reply, error) {
	// Any non-command content counts as the proof. The state flip is
	// persisted by SubmitProof together with the payment status change.
	user.State = models.StateIdle
	if _, err := e.proofs.SubmitProof(ctx, user, input); err != nil {
		user.State = models.StateAwaitingPaymentProof
		return nil, fmt.Errorf("submitting proof: %w", err)
	}
	return &Reply{Text: "Thanks! Your payment proof was submitted and is awaiting review."}, nil
}

func (e *Engine) draft(user *models.User) *models.Criteria {
	if user.SearchDraft == nil {
		user.SearchDraft = &models.Criteria{}
	}
	return user.SearchDraft
}

func withAny(options []string) []string {
	out := make([]string, 0, len(options)+1)
	out = append(out, options...)
	return append(out, models.Any)
}
