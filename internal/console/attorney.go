package console

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lexintake/console/pkg/observability/logger"
)

// AttorneyStatus is an attorney's onboarding state.
type AttorneyStatus string

// Attorney statuses.
const (
	AttorneyPending   AttorneyStatus = "pending"
	AttorneyActive    AttorneyStatus = "active"
	AttorneySuspended AttorneyStatus = "suspended"
)

// AttorneyStatuses lists every status.
var AttorneyStatuses = []AttorneyStatus{AttorneyPending, AttorneyActive, AttorneySuspended}

// Valid reports whether s is a known status.
func (s AttorneyStatus) Valid() bool {
	switch s {
	case AttorneyPending, AttorneyActive, AttorneySuspended:
		return true
	}
	return false
}

// Attorney is a lawyer onboarded onto the platform.
type Attorney struct {
	ID            uuid.UUID      `json:"id"`
	FullName      string         `json:"full_name"`
	Email         string         `json:"email"`
	BarNumber     string         `json:"bar_number"`
	PracticeAreas []string       `json:"practice_areas"`
	Bio           string         `json:"bio,omitempty"`
	PhotoKey      string         `json:"photo_key,omitempty"`
	Status        AttorneyStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewAttorney is the onboarding form.
type NewAttorney struct {
	FullName      string   `json:"full_name"`
	Email         string   `json:"email"`
	BarNumber     string   `json:"bar_number"`
	PracticeAreas []string `json:"practice_areas"`
	Bio           string   `json:"bio"`
}

// Validate checks the onboarding fields.
func (n NewAttorney) Validate() error {
	switch {
	case strings.TrimSpace(n.FullName) == "":
		return invalid("full_name", "full_name is required")
	case utf8.RuneCountInString(n.FullName) > 200:
		return invalid("full_name", "full_name must be at most 200 characters")
	case strings.TrimSpace(n.BarNumber) == "":
		return invalid("bar_number", "bar_number is required")
	case len(cleanList(n.PracticeAreas)) == 0:
		return invalid("practice_areas", "at least one practice area is required")
	case utf8.RuneCountInString(n.Bio) > 5000:
		return invalid("bio", "bio must be at most 5000 characters")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(n.Email)); err != nil {
		return invalid("email", "email must be a valid email address")
	}
	return nil
}

// AttorneyStore persists attorneys. CreateAttorney returns ErrConflict when the email
// or bar number is taken. SetAttorneyStatus only writes while the stored status is one
// of from and returns ErrStaleStatus otherwise.
type AttorneyStore interface {
	CreateAttorney(ctx context.Context, a *Attorney) error
	GetAttorney(ctx context.Context, id uuid.UUID) (*Attorney, error)
	ListAttorneys(ctx context.Context, status AttorneyStatus) ([]Attorney, error)
	SetAttorneyStatus(ctx context.Context, id uuid.UUID, next AttorneyStatus, from []AttorneyStatus, at time.Time) error
	SetAttorneyPhoto(ctx context.Context, id uuid.UUID, key string, at time.Time) error
	CountAttorneysByStatus(ctx context.Context) (map[AttorneyStatus]int, error)
}

// AttorneyService manages attorney onboarding.
type AttorneyService struct {
	store AttorneyStore
	media *MediaService
	log   logger.Logger
	now   func() time.Time
}

// NewAttorneyService creates the service.
func NewAttorneyService(store AttorneyStore, media *MediaService, log logger.Logger) *AttorneyService {
	if log == nil {
		log = logger.NewNop()
	}
	return &AttorneyService{store: store, media: media, log: log, now: time.Now}
}

// Onboard registers a pending attorney.
func (s *AttorneyService) Onboard(ctx context.Context, in NewAttorney) (*Attorney, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	a := &Attorney{
		ID:            uuid.New(),
		FullName:      strings.TrimSpace(in.FullName),
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		BarNumber:     strings.TrimSpace(in.BarNumber),
		PracticeAreas: cleanList(in.PracticeAreas),
		Bio:           strings.TrimSpace(in.Bio),
		Status:        AttorneyPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateAttorney(ctx, a); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflict("attorney.duplicate", "an attorney with this email or bar number already exists", err)
		}
		return nil, err
	}
	s.log.WithContext(ctx).Info("attorney onboarded", "attorney_id", a.ID)
	return a, nil
}

// List returns attorneys, optionally filtered by status.
func (s *AttorneyService) List(ctx context.Context, status AttorneyStatus) ([]Attorney, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("status", "unknown status "+string(status))
	}
	return s.store.ListAttorneys(ctx, status)
}

// Get returns one attorney.
func (s *AttorneyService) Get(ctx context.Context, id uuid.UUID) (*Attorney, error) {
	a, err := s.store.GetAttorney(ctx, id)
	if err != nil {
		return nil, lookupErr("attorney", err)
	}
	return a, nil
}

// Activate moves a pending or suspended attorney to active.
func (s *AttorneyService) Activate(ctx context.Context, id uuid.UUID) (*Attorney, error) {
	return s.transition(ctx, id, AttorneyActive, AttorneyPending, AttorneySuspended)
}

// Suspend moves an active attorney to suspended.
func (s *AttorneyService) Suspend(ctx context.Context, id uuid.UUID) (*Attorney, error) {
	return s.transition(ctx, id, AttorneySuspended, AttorneyActive)
}

func (s *AttorneyService) transition(ctx context.Context, id uuid.UUID, next AttorneyStatus, from ...AttorneyStatus) (*Attorney, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, st := range from {
		if a.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, conflict("attorney.invalid_transition",
			"cannot move attorney from "+string(a.Status)+" to "+string(next), nil)
	}

	if err := s.store.SetAttorneyStatus(ctx, id, next, from, s.now().UTC()); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, conflict("attorney.invalid_transition", "attorney status changed, reload and retry", err)
		}
		return nil, lookupErr("attorney", err)
	}
	s.log.WithContext(ctx).Info("attorney status changed", "attorney_id", id, "from", a.Status, "status", next)
	return s.Get(ctx, id)
}

// UploadPhoto stores the attorney's photo under attorneys/<id>/photo<ext>, removing a
// previous photo stored under a different extension.
func (s *AttorneyService) UploadPhoto(ctx context.Context, id uuid.UUID, data []byte) (*Attorney, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	info, err := s.media.UploadImage(ctx, "attorneys/"+a.ID.String()+"/photo", data)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetAttorneyPhoto(ctx, id, info.Key, s.now().UTC()); err != nil {
		return nil, lookupErr("attorney", err)
	}
	if previous := a.PhotoKey; previous != "" && previous != info.Key {
		if err := s.media.Remove(ctx, previous); err != nil {
			s.log.WithContext(ctx).Warn("remove previous photo failed", "key", previous, "error", err)
		}
	}
	return s.Get(ctx, id)
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
