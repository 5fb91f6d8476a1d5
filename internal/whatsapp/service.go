package whatsapp

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"speed-dating-events/internal/logging"
	"speed-dating-events/internal/qr"
)

// MessageHandler is a callback for incoming messages
type MessageHandler func(*events.Message) error

type Config struct {
	DataDir string
	// OrganizerPhone receives registration notices; empty disables them
	OrganizerPhone string
	// CountryCode replaces the trunk prefix 0 of local numbers
	CountryCode string
}

type Service struct {
	client         *whatsmeow.Client
	cfg            *Config
	log            zerolog.Logger
	messageHandler MessageHandler
}

// NewService opens the device store and creates the client. The session
// keys live in whatsmeow.db inside cfg.DataDir.
func NewService(ctx context.Context, cfg *Config, log zerolog.Logger) (*Service, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(cfg.DataDir, "whatsmeow.db"))
	// nil logger: sqlstore and the client fall back to no-op logging
	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	service := &Service{
		client: whatsmeow.NewClient(deviceStore, nil),
		cfg:    cfg,
		log:    logging.Component(log, "WhatsApp"),
	}
	service.client.AddEventHandler(service.eventHandler)

	return service, nil
}

// NormalizePhoneNumber strips formatting and converts local numbers
// (leading 0, ten digits) to international form using countryCode.
func NormalizePhoneNumber(phoneNumber, countryCode string) string {
	phoneNumber = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phoneNumber)
	if countryCode == "" {
		return phoneNumber
	}

	if strings.HasPrefix(phoneNumber, "0") && len(phoneNumber) == 10 {
		phoneNumber = countryCode + phoneNumber[1:]
	}
	// country code followed by the trunk 0, e.g. 9720...
	if strings.HasPrefix(phoneNumber, countryCode+"0") {
		phoneNumber = countryCode + phoneNumber[len(countryCode)+1:]
	}
	return phoneNumber
}

// Connect connects to WhatsApp. On first run the login QR code is
// written to out and Connect blocks until pairing finishes.
func (s *Service) Connect(ctx context.Context, out io.Writer) error {
	if s.client.Store.ID != nil {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			s.log.Info().Str("event", evt.Event).Msg("Login event")
			continue
		}
		code, err := qr.Terminal(evt.Code)
		if err != nil {
			fmt.Fprintf(out, "QR Code: %s\n", evt.Code)
			continue
		}
		fmt.Fprintln(out, "\n"+code)
		fmt.Fprintln(out, "Scan the QR code above with WhatsApp (Settings > Linked Devices > Link a Device)")
	}
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// SendMessage sends a text message to a phone number after checking
// that the number is on WhatsApp.
func (s *Service) SendMessage(ctx context.Context, phoneNumber, message string) error {
	phoneNumber = NormalizePhoneNumber(phoneNumber, s.cfg.CountryCode)

	resp, err := s.client.IsOnWhatsApp(ctx, []string{phoneNumber})
	if err != nil {
		return fmt.Errorf("failed to verify number on WhatsApp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return fmt.Errorf("number %s is not registered on WhatsApp", phoneNumber)
	}

	return s.sendTo(ctx, resp[0].JID, message)
}

// Reply answers the chat a message came from
func (s *Service) Reply(ctx context.Context, chat types.JID, message string) error {
	return s.sendTo(ctx, chat, message)
}

// Notify sends an organizer notice. Without an organizer phone it does nothing.
func (s *Service) Notify(ctx context.Context, text string) error {
	if s.cfg.OrganizerPhone == "" {
		return nil
	}
	return s.SendMessage(ctx, s.cfg.OrganizerPhone, text)
}

func (s *Service) sendTo(ctx context.Context, jid types.JID, message string) error {
	s.log.Debug().Str("jid", jid.String()).Msg("Sending message")
	sent, err := s.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: &message,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", jid.String(), err)
	}
	s.log.Debug().Str("id", sent.ID).Time("timestamp", sent.Timestamp).Msg("Message sent")
	return nil
}

func (s *Service) eventHandler(evt any) {
	switch evt := evt.(type) {
	case *events.Message:
		s.handleMessage(evt)
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Warn().Msg("Logged out from WhatsApp")
	}
}

func (s *Service) handleMessage(msg *events.Message) {
	if msg.Info.IsFromMe {
		return
	}

	if s.messageHandler == nil {
		s.log.Info().Str("sender", msg.Info.Sender.String()).Msg("Received message")
		return
	}
	if err := s.messageHandler(msg); err != nil {
		s.log.Error().Err(err).Msg("Error handling message")
	}
}

// SetMessageHandler sets a custom handler for incoming messages
func (s *Service) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}
