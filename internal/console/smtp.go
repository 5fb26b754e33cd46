package console

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/lexintake/console/pkg/email"
	"github.com/lexintake/console/pkg/observability/logger"
	"github.com/lexintake/console/pkg/resilience"
)

// ErrSMTPNotConfigured is returned when mail is requested before settings exist.
var ErrSMTPNotConfigured = errors.New("smtp is not configured")

// SMTPSettings is the single outgoing mail configuration row.
type SMTPSettings struct {
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	Username    string    `json:"username"`
	Password    string    `json:"-"`
	FromAddress string    `json:"from_address"`
	EnableTLS   bool      `json:"enable_tls"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SMTPView is SMTPSettings as shown to admins, without the password.
type SMTPView struct {
	Configured  bool      `json:"configured"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	Username    string    `json:"username"`
	PasswordSet bool      `json:"password_set"`
	FromAddress string    `json:"from_address"`
	EnableTLS   bool      `json:"enable_tls"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// SMTPUpdate replaces the settings. A nil Password keeps the stored one.
type SMTPUpdate struct {
	Host        string  `json:"host"`
	Port        int     `json:"port"`
	Username    string  `json:"username"`
	Password    *string `json:"password"`
	FromAddress string  `json:"from_address"`
	EnableTLS   bool    `json:"enable_tls"`
}

// Validate checks host, port range and sender address.
func (u SMTPUpdate) Validate() error {
	if strings.TrimSpace(u.Host) == "" {
		return invalid("host", "host is required")
	}
	if u.Port < 1 || u.Port > 65535 {
		return invalid("port", "port must be between 1 and 65535")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(u.FromAddress)); err != nil {
		return invalid("from_address", "from_address must be a valid email address")
	}
	return nil
}

// SettingsStore persists the SMTP row. GetSMTPSettings returns ErrNotFound when unset.
type SettingsStore interface {
	GetSMTPSettings(ctx context.Context) (*SMTPSettings, error)
	SaveSMTPSettings(ctx context.Context, s *SMTPSettings) error
}

// MailerFactory builds a mail provider from settings.
type MailerFactory func(cfg email.SMTPConfig, log logger.Logger) (email.Provider, error)

func defaultMailer(cfg email.SMTPConfig, log logger.Logger) (email.Provider, error) {
	return email.NewSMTPProvider(cfg, log)
}

// SMTPService manages the mail settings and sends console mail with them.
type SMTPService struct {
	store     SettingsStore
	newMailer MailerFactory
	log       logger.Logger
	now       func() time.Time
	notify    *resilience.Breaker
}

var _ Notifier = (*SMTPService)(nil)

// SMTPOption configures an SMTPService.
type SMTPOption func(*SMTPService)

// WithNotifyBreaker guards assignment notifications with b. Test messages bypass it
// so an admin always sees the real delivery error.
func WithNotifyBreaker(b *resilience.Breaker) SMTPOption {
	return func(s *SMTPService) {
		s.notify = b
	}
}

// NewSMTPService creates the service. A nil factory uses email.NewSMTPProvider.
func NewSMTPService(store SettingsStore, factory MailerFactory, log logger.Logger, opts ...SMTPOption) *SMTPService {
	if factory == nil {
		factory = defaultMailer
	}
	if log == nil {
		log = logger.NewNop()
	}
	s := &SMTPService{store: store, newMailer: factory, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current settings without the password.
func (s *SMTPService) Get(ctx context.Context) (SMTPView, error) {
	settings, err := s.store.GetSMTPSettings(ctx)
	if errors.Is(err, ErrNotFound) {
		return SMTPView{}, nil
	}
	if err != nil {
		return SMTPView{}, fmt.Errorf("smtp settings: %w", err)
	}
	return viewOf(settings), nil
}

// Update validates and stores new settings.
func (s *SMTPService) Update(ctx context.Context, u SMTPUpdate) (SMTPView, error) {
	if err := u.Validate(); err != nil {
		return SMTPView{}, err
	}

	password := ""
	if u.Password != nil {
		password = *u.Password
	} else {
		current, err := s.store.GetSMTPSettings(ctx)
		switch {
		case err == nil:
			password = current.Password
		case !errors.Is(err, ErrNotFound):
			return SMTPView{}, fmt.Errorf("smtp settings: %w", err)
		}
	}

	settings := &SMTPSettings{
		Host:        strings.TrimSpace(u.Host),
		Port:        u.Port,
		Username:    strings.TrimSpace(u.Username),
		Password:    password,
		FromAddress: strings.TrimSpace(u.FromAddress),
		EnableTLS:   u.EnableTLS,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.store.SaveSMTPSettings(ctx, settings); err != nil {
		return SMTPView{}, fmt.Errorf("save smtp settings: %w", err)
	}
	if s.notify != nil {
		s.notify.Reset()
	}
	s.log.WithContext(ctx).Info("smtp settings updated", "host", settings.Host, "port", settings.Port)
	return viewOf(settings), nil
}

// SendTest sends a fixed message to to using the stored settings.
func (s *SMTPService) SendTest(ctx context.Context, to string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(to)); err != nil {
		return invalid("to", "to must be a valid email address")
	}
	err := s.send(ctx, email.Message{
		To:       []string{strings.TrimSpace(to)},
		Subject:  "Intake console test message",
		TextBody: "This is a test message from the intake console. Your SMTP settings work.",
	})
	if errors.Is(err, ErrSMTPNotConfigured) {
		return invalid("smtp", "smtp is not configured")
	}
	if err != nil {
		return &Error{Kind: KindValidation, Code: "smtp.send_failed", Message: "test message could not be sent: " + err.Error(), Cause: err}
	}
	return nil
}

// NotifyAssignment tells the client which attorney took their request.
func (s *SMTPService) NotifyAssignment(ctx context.Context, req IntakeRequest, attorney Attorney) error {
	msg := email.Message{
		To:      []string{req.ClientEmail},
		Subject: "Your legal request has been assigned",
		TextBody: fmt.Sprintf(
			"Hello %s,\n\nYour %s request has been assigned to %s, who will contact you shortly.\n",
			req.ClientName, req.PracticeArea, attorney.FullName,
		),
		Headers: map[string]string{"X-Intake-ID": req.ID.String()},
	}
	if s.notify == nil {
		return s.send(ctx, msg)
	}
	// Missing settings are not a delivery failure.
	unconfigured := false
	err := s.notify.Execute(ctx, func(ctx context.Context) error {
		err := s.send(ctx, msg)
		if errors.Is(err, ErrSMTPNotConfigured) {
			unconfigured = true
			return nil
		}
		return err
	})
	if err == nil && unconfigured {
		return ErrSMTPNotConfigured
	}
	return err
}

func (s *SMTPService) send(ctx context.Context, msg email.Message) error {
	settings, err := s.store.GetSMTPSettings(ctx)
	if errors.Is(err, ErrNotFound) {
		return ErrSMTPNotConfigured
	}
	if err != nil {
		return fmt.Errorf("smtp settings: %w", err)
	}

	mailer, err := s.newMailer(email.SMTPConfig{
		Host:      settings.Host,
		Port:      settings.Port,
		Username:  settings.Username,
		Password:  settings.Password,
		From:      settings.FromAddress,
		EnableTLS: settings.EnableTLS,
	}, s.log)
	if err != nil {
		return err
	}
	defer mailer.Close()
	return mailer.Send(ctx, msg)
}

func viewOf(s *SMTPSettings) SMTPView {
	return SMTPView{
		Configured:  true,
		Host:        s.Host,
		Port:        s.Port,
		Username:    s.Username,
		PasswordSet: s.Password != "",
		FromAddress: s.FromAddress,
		EnableTLS:   s.EnableTLS,
		UpdatedAt:   s.UpdatedAt,
	}
}
