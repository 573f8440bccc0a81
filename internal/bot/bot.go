// Package bot connects the Telegram transport to the dialog engine, the
// matchmaker, the relay router and the payment gate. Every inbound update
// is first routed to the active dialog step if one exists, then to the
// relay if the sender has a partner, and otherwise answered with a hint.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"

	"multichat/bot/internal/catalog"
	"multichat/bot/internal/config"
	"multichat/bot/internal/dialog"
	"multichat/bot/internal/matchmaker"
	"multichat/bot/internal/models"
	"multichat/bot/internal/payments"
	"multichat/bot/internal/relay"
	"multichat/bot/internal/storage"
)

type Service struct {
	config *config.Config
	store  *storage.Storage
	bot    telebot.API

	dialogs  *dialog.Engine
	match    *matchmaker.Matchmaker
	router   *relay.Router
	payments *payments.Service
}

func New(cfg *config.Config, store *storage.Storage, cat *catalog.Catalog, b telebot.API) *Service {
	s := &Service{
		config: cfg,
		store:  store,
		bot:    b,
	}
	s.match = matchmaker.New(store, s.notifyMatched)
	s.payments = payments.New(store, s.notifyPaymentSubmitted)
	s.dialogs = dialog.New(store, cat, s.match, s.payments)
	s.router = relay.New(store, s.sendText)
	return s
}

func (s *Service) Register(b *telebot.Bot) {
	b.Handle("/start", s.handle("start", s.onStart))
	b.Handle("/search", s.handle("search", s.onSearch))
	b.Handle("/cancel", s.handle("cancel", s.onCancel))
	b.Handle("/stop", s.handle("stop", s.onStop))
	b.Handle("/payment", s.handle("payment", s.onPayment))
	b.Handle("/block", s.handle("block", s.onBlock))
	b.Handle("/unblock", s.handle("unblock", s.onUnblock))
	b.Handle("/users", s.handle("users", s.onUsers))
	b.Handle(telebot.OnText, s.handle("text", s.onText))
	b.Handle(telebot.OnPhoto, s.handle("photo", s.onPhoto))
	b.Handle(telebot.OnCallback, s.handle("callback", s.onCallback))
}

type handlerFunc func(uc *UpdateContext, user *models.User) error

// handle wraps a handler with the per-update timeout, poller offset
// bookkeeping, lazy user creation and the ban check.
func (s *Service) handle(name string, fn handlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.BotHandleTimeout)
		defer cancel()

		uc := NewUpdateContext(ctx, c)

		if err := s.store.UpdateLastUpdate(uc, c.Update().ID); err != nil {
			uc.L().Errorf("failed to update last update: %v", err)
		}

		if c.Chat() != nil && c.Chat().Type != telebot.ChatPrivate {
			uc.L().Debugf("ignoring update from non-private chat %d", c.Chat().ID)
			return nil
		}
		if c.Sender() == nil {
			uc.L().Debug("ignoring update without sender")
			return nil
		}

		user, err := s.store.GetOrCreateUser(uc, c.Sender().ID)
		if err != nil {
			uc.L().Errorf("failed to get or create user: %v", err)
			return c.Send("Something went wrong, please try again.")
		}

		if user.Banned && !s.config.IsAdmin(user.TelegramID) {
			uc.L().Infof("ignoring update from banned user %d", user.TelegramID)
			return c.Send("You are blocked from using this bot.")
		}

		if err := fn(uc, user); err != nil {
			uc.L().Errorf("failed to handle %s: %v", name, err)
			return c.Send("Something went wrong, please try again.")
		}
		return nil
	}
}

func (s *Service) onStart(uc *UpdateContext, user *models.User) error {
	reply, err := s.dialogs.Start(uc, user)
	if err != nil {
		return err
	}
	return s.sendReply(uc, reply)
}

func (s *Service) onSearch(uc *UpdateContext, user *models.User) error {
	reply, err := s.dialogs.StartSearch(uc, user)
	if err != nil {
		return err
	}
	return s.sendReply(uc, reply)
}

func (s *Service) onCancel(uc *UpdateContext, user *models.User) error {
	reply, err := s.dialogs.Cancel(uc, user)
	if err != nil {
		return err
	}
	return s.sendReply(uc, reply)
}

func (s *Service) onStop(uc *UpdateContext, user *models.User) error {
	if user.PartnerID != nil {
		partnerID, err := s.store.UnlinkPartners(uc, user.TelegramID)
		if err != nil && !errors.Is(err, storage.ErrNotLinked) {
			return fmt.Errorf("unlinking partners: %w", err)
		}
		if err == nil {
			s.sendTextLogged(uc, partnerID, "Your partner left the conversation. Use /search to find a new one.")
		}
		return uc.TC().Send("You left the conversation.")
	}

	if s.match.Dequeue(user.TelegramID) {
		return uc.TC().Send("Search cancelled.")
	}
	return uc.TC().Send("You are not in a conversation or searching.")
}

func (s *Service) onPayment(uc *UpdateContext, user *models.User) error {
	if user.PremiumUnlocked() {
		return uc.TC().Send("Your payment is already approved. Premium search filters are unlocked.")
	}
	if user.PaymentStatus == models.PaymentStatusPending {
		return uc.TC().Send("Your payment proof is awaiting review.")
	}

	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("I have paid, verify me", CallbackActionVerifyPayment.String())))
	return uc.TC().Send(
		"Premium search filters (gender, region, country) require a one-time payment. "+
			"After paying, press the button below and send your proof.",
		markup,
	)
}

// onBlock doubles as the user-level and the admin-level block: a plain user
// mid-conversation blocks their current partner, an admin with a numeric
// argument bans that user globally.
func (s *Service) onBlock(uc *UpdateContext, user *models.User) error {
	args := uc.TC().Args()
	if s.config.IsAdmin(user.TelegramID) && len(args) > 0 {
		targetID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return uc.TC().Send("Usage: /block <telegram id>")
		}
		if err := s.store.SetUserBanned(uc, targetID, true); err != nil {
			return fmt.Errorf("banning user: %w", err)
		}
		uc.L().Infof("admin %d banned user %d", user.TelegramID, targetID)
		return uc.TC().Send(fmt.Sprintf("User %d is now blocked.", targetID))
	}

	if user.PartnerID == nil {
		return uc.TC().Send("You are not in a conversation; there is nobody to block.")
	}

	partnerID := *user.PartnerID
	user.Block(partnerID)
	if err := s.store.SaveUser(uc, user); err != nil {
		return fmt.Errorf("saving block list: %w", err)
	}
	if _, err := s.store.UnlinkPartners(uc, user.TelegramID); err != nil && !errors.Is(err, storage.ErrNotLinked) {
		return fmt.Errorf("unlinking partners: %w", err)
	}

	s.sendTextLogged(uc, partnerID, "Your partner left the conversation. Use /search to find a new one.")
	return uc.TC().Send("Blocked. You will not be matched with this user again.")
}

func (s *Service) onUnblock(uc *UpdateContext, user *models.User) error {
	if !s.config.IsAdmin(user.TelegramID) {
		return uc.TC().Send("This command is for admins only.")
	}
	args := uc.TC().Args()
	if len(args) == 0 {
		return uc.TC().Send("Usage: /unblock <telegram id>")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return uc.TC().Send("Usage: /unblock <telegram id>")
	}
	if err := s.store.SetUserBanned(uc, targetID, false); err != nil {
		return fmt.Errorf("unbanning user: %w", err)
	}
	uc.L().Infof("admin %d unbanned user %d", user.TelegramID, targetID)
	return uc.TC().Send(fmt.Sprintf("User %d is now unblocked.", targetID))
}

func (s *Service) onUsers(uc *UpdateContext, user *models.User) error {
	if !s.config.IsAdmin(user.TelegramID) {
		return uc.TC().Send("This command is for admins only.")
	}

	users, err := s.store.ListUsers(uc)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	if len(users) == 0 {
		return uc.TC().Send("No users yet.")
	}

	var sb strings.Builder
	for _, u := range users {
		flags := make([]string, 0, 3)
		if u.Banned {
			flags = append(flags, "blocked")
		}
		if u.PartnerID != nil {
			flags = append(flags, fmt.Sprintf("chatting with %d", *u.PartnerID))
		}
		if u.PaymentStatus != models.PaymentStatusNone {
			flags = append(flags, fmt.Sprintf("payment %s", u.PaymentStatus))
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " [" + strings.Join(flags, ", ") + "]"
		}
		fmt.Fprintf(&sb, "%d: %s / %s / %s / %s%s\n",
			u.TelegramID,
			orUnset(u.Language), orUnset(u.Gender), orUnset(u.Region), orUnset(u.Country),
			suffix,
		)
	}
	return uc.TC().Send(sb.String())
}

func (s *Service) onText(uc *UpdateContext, user *models.User) error {
	if s.dialogs.Active(user) {
		reply, err := s.dialogs.HandleInput(uc, user, uc.TC().Text())
		if errors.Is(err, dialog.ErrInvalidInput) {
			uc.L().Debugf("invalid dialog input in state %s", user.State)
			if sendErr := uc.TC().Send("That is not one of the options."); sendErr != nil {
				return sendErr
			}
			return s.sendReply(uc, reply)
		}
		if err != nil {
			return err
		}
		return s.sendReply(uc, reply)
	}

	err := s.router.Relay(uc, user.TelegramID, uc.TC().Text())
	switch {
	case errors.Is(err, relay.ErrNoActivePartner):
		return uc.TC().Send("You have no active partner. Use /search to find one.")
	case errors.Is(err, relay.ErrBlocked):
		return uc.TC().Send("You cannot message this user.")
	case err != nil:
		return err
	}
	return nil
}

func (s *Service) onPhoto(uc *UpdateContext, user *models.User) error {
	photo := uc.Message().Photo
	if photo == nil {
		return nil
	}

	if s.dialogs.Active(user) {
		// A photo is a valid payment proof; for any other dialog step
		// it is just input outside the option set.
		reply, err := s.dialogs.HandleInput(uc, user, "photo:"+photo.FileID)
		if errors.Is(err, dialog.ErrInvalidInput) {
			if sendErr := uc.TC().Send("That is not one of the options."); sendErr != nil {
				return sendErr
			}
			return s.sendReply(uc, reply)
		}
		if err != nil {
			return err
		}
		return s.sendReply(uc, reply)
	}

	partnerID, err := s.router.Partner(uc, user.TelegramID)
	switch {
	case errors.Is(err, relay.ErrNoActivePartner):
		return uc.TC().Send("You have no active partner. Use /search to find one.")
	case errors.Is(err, relay.ErrBlocked):
		return uc.TC().Send("You cannot message this user.")
	case err != nil:
		return err
	}

	forward := &telebot.Photo{File: photo.File, Caption: uc.Message().Caption}
	if _, err := s.bot.Send(&telebot.User{ID: partnerID}, forward); err != nil {
		return fmt.Errorf("forwarding photo to %d: %w", partnerID, err)
	}
	return nil
}

func (s *Service) onCallback(uc *UpdateContext, user *models.User) error {
	callback := uc.TC().Callback()
	if callback == nil {
		return nil
	}
	data := callback.Data

	switch {
	case CallbackActionVerifyPayment.DataMatches(data):
		reply, err := s.dialogs.StartPaymentProof(uc, user)
		if err != nil {
			return err
		}
		if err := uc.TC().Respond(&telebot.CallbackResponse{}); err != nil {
			uc.L().Warnf("failed to respond to callback: %v", err)
		}
		return s.sendReply(uc, reply)

	case CallbackActionApprovePayment.DataMatches(data):
		return s.resolvePayment(uc, user, CallbackActionApprovePayment.Payload(data), models.PaymentStatusApproved)

	case CallbackActionRejectPayment.DataMatches(data):
		return s.resolvePayment(uc, user, CallbackActionRejectPayment.Payload(data), models.PaymentStatusRejected)
	}

	uc.L().Debugf("ignoring unknown callback data %q", data)
	return uc.TC().Respond(&telebot.CallbackResponse{})
}

func (s *Service) resolvePayment(uc *UpdateContext, admin *models.User, paymentID string, decision models.PaymentStatus) error {
	if !s.config.IsAdmin(admin.TelegramID) {
		return uc.TC().Respond(&telebot.CallbackResponse{Text: "Admins only."})
	}

	payment, err := s.payments.Resolve(uc, paymentID, decision)
	if errors.Is(err, storage.ErrAlreadyResolved) {
		return uc.TC().Respond(&telebot.CallbackResponse{
			Text: fmt.Sprintf("Already resolved as %s.", payment.Status),
		})
	}
	if err != nil {
		return fmt.Errorf("resolving payment: %w", err)
	}

	switch decision {
	case models.PaymentStatusApproved:
		s.sendTextLogged(uc, payment.UserID, "Your payment was approved. Premium search filters are unlocked!")
	case models.PaymentStatusRejected:
		s.sendTextLogged(uc, payment.UserID, "Your payment was rejected. You can submit a new proof via /payment.")
	}

	return uc.TC().Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("Payment %s.", decision)})
}

func (s *Service) notifyMatched(userID int64, partner *models.User) {
	_, err := s.bot.Send(
		&telebot.User{ID: userID},
		fmt.Sprintf(
			"Partner found (%s speaker from %s)! Say hi — your messages are now relayed. Use /stop to end the conversation.",
			partner.Language, partner.Country,
		),
	)
	if err != nil {
		logrus.WithField("user_id", userID).Warnf("failed to notify matched user: %v", err)
	}
}

func (s *Service) notifyPaymentSubmitted(payment *models.PendingPayment) {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("Approve", CallbackActionApprovePayment.String(), payment.ID),
		markup.Data("Reject", CallbackActionRejectPayment.String(), payment.ID),
	))

	text := fmt.Sprintf("Payment proof from user %d:\n%s", payment.UserID, payment.Proof)
	for _, adminID := range s.config.AdminTelegramIDs() {
		if _, err := s.bot.Send(&telebot.User{ID: adminID}, text, markup); err != nil {
			logrus.WithField("admin_id", adminID).Warnf("failed to notify admin about payment %s: %v", payment.ID, err)
		}
	}
}

func (s *Service) sendText(userID int64, text string) error {
	_, err := s.bot.Send(&telebot.User{ID: userID}, text)
	return err
}

func (s *Service) sendTextLogged(uc *UpdateContext, userID int64, text string) {
	if err := s.sendText(userID, text); err != nil {
		uc.L().Warnf("failed to send message to %d: %v", userID, err)
	}
}

func (s *Service) sendReply(uc *UpdateContext, reply *dialog.Reply) error {
	return uc.TC().Send(reply.Text, optionsMarkup(reply.Options))
}

// optionsMarkup renders dialog options as a reply keyboard, three buttons
// per row; no options removes any previous keyboard.
func optionsMarkup(options []string) *telebot.ReplyMarkup {
	if len(options) == 0 {
		return &telebot.ReplyMarkup{RemoveKeyboard: true}
	}

	markup := &telebot.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	var rows []telebot.Row
	var row []telebot.Btn
	for _, option := range options {
		row = append(row, markup.Text(option))
		if len(row) == 3 {
			rows = append(rows, markup.Row(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, markup.Row(row...))
	}
	markup.Reply(rows...)
	return markup
}

func orUnset(v string) string {
	if v == "" {
		return "unset"
	}
	return v
}
