package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"speed-dating-events/internal/models"
	"speed-dating-events/internal/qr"
	"speed-dating-events/internal/registry"
)

// Sender replies into a WhatsApp chat
type Sender interface {
	Reply(ctx context.Context, chat types.JID, message string) error
}

// Guests is the part of the registry the check-in flow reads
type Guests interface {
	ResolveGuestByToken(guestID string) (models.Guest, error)
	AvailablePolls(guestID string) ([]models.Poll, error)
	HasVoted(p models.Poll, guestID string) bool
}

// CheckinHandler answers guests who text their token or QR link with
// their current standing.
type CheckinHandler struct {
	guests  Guests
	sender  Sender
	baseURL string
	log     zerolog.Logger
	timeout time.Duration
}

// NewCheckinHandler creates a check-in handler
func NewCheckinHandler(guests Guests, sender Sender, baseURL string, log zerolog.Logger) *CheckinHandler {
	return &CheckinHandler{
		guests:  guests,
		sender:  sender,
		baseURL: baseURL,
		log:     log,
		timeout: 30 * time.Second,
	}
}

// HandleMessage processes one incoming message. Messages that do not
// look like a guest token are ignored.
func (h *CheckinHandler) HandleMessage(msg *events.Message) error {
	if msg.Message == nil {
		return nil
	}

	text := msg.Message.GetConversation()
	if text == "" {
		text = msg.Message.GetExtendedTextMessage().GetText()
	}
	token, err := qr.TokenFromText(text)
	if err != nil || !strings.HasPrefix(strings.ToUpper(token), models.GuestTokenPrefix) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	reply, err := h.reply(token)
	if err != nil {
		return err
	}
	if err := h.sender.Reply(ctx, msg.Info.Chat, reply); err != nil {
		return fmt.Errorf("failed to send check-in reply: %w", err)
	}

	h.log.Info().Str("sender", msg.Info.Sender.String()).Str("guest_token", token).Msg("Check-in answered")
	return nil
}

func (h *CheckinHandler) reply(token string) (string, error) {
	guest, err := h.guests.ResolveGuestByToken(token)
	if errors.Is(err, registry.ErrNotFound) {
		return "We couldn't find that guest code yet. Please try again in a moment.", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve guest: %w", err)
	}

	polls, err := h.guests.AvailablePolls(guest.ID)
	if err != nil {
		return "", fmt.Errorf("failed to list polls: %w", err)
	}
	open := 0
	for _, p := range polls {
		if !h.guests.HasVoted(p, guest.ID) {
			open++
		}
	}

	return fmt.Sprintf(
		"Hi %s!\n\n"+
			"Points: %d\n"+
			"Open polls: %d\n\n"+
			"Your page: %s",
		guest.Name, guest.Points, open, qr.GuestURL(h.baseURL, guest.GuestID),
	), nil
}
