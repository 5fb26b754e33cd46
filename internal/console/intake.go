package console

import (
	"context"
	"errors"
	"net/mail"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lexintake/console/pkg/observability/logger"
	"github.com/lexintake/console/pkg/repository"
)

// IntakeStatus is the lifecycle state of an intake request.
type IntakeStatus string

// Intake statuses.
const (
	IntakeNew      IntakeStatus = "new"
	IntakeInReview IntakeStatus = "in_review"
	IntakeAssigned IntakeStatus = "assigned"
	IntakeClosed   IntakeStatus = "closed"
)

// IntakeStatuses lists every status in lifecycle order.
var IntakeStatuses = []IntakeStatus{IntakeNew, IntakeInReview, IntakeAssigned, IntakeClosed}

var intakeTransitions = map[IntakeStatus][]IntakeStatus{
	IntakeNew:      {IntakeInReview, IntakeClosed},
	IntakeInReview: {IntakeAssigned, IntakeClosed},
	IntakeAssigned: {IntakeClosed, IntakeInReview},
	IntakeClosed:   {},
}

// Valid reports whether s is a known status.
func (s IntakeStatus) Valid() bool {
	_, ok := intakeTransitions[s]
	return ok
}

// CanTransition reports whether a request may move from s to next.
func (s IntakeStatus) CanTransition(next IntakeStatus) bool {
	return slices.Contains(intakeTransitions[s], next)
}

// IntakeRequest is a prospective client's request for legal help.
type IntakeRequest struct {
	ID                 uuid.UUID    `json:"id"`
	ClientName         string       `json:"client_name"`
	ClientEmail        string       `json:"client_email"`
	Phone              string       `json:"phone,omitempty"`
	PracticeArea       string       `json:"practice_area"`
	Description        string       `json:"description"`
	Status             IntakeStatus `json:"status"`
	AssignedAttorneyID *uuid.UUID   `json:"assigned_attorney_id,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// NewIntake is the public intake form.
type NewIntake struct {
	ClientName   string `json:"client_name"`
	ClientEmail  string `json:"client_email"`
	Phone        string `json:"phone"`
	PracticeArea string `json:"practice_area"`
	Description  string `json:"description"`
}

// Validate checks the form fields.
func (n NewIntake) Validate() error {
	switch {
	case strings.TrimSpace(n.ClientName) == "":
		return invalid("client_name", "client_name is required")
	case utf8.RuneCountInString(n.ClientName) > 200:
		return invalid("client_name", "client_name must be at most 200 characters")
	case strings.TrimSpace(n.PracticeArea) == "":
		return invalid("practice_area", "practice_area is required")
	case strings.TrimSpace(n.Description) == "":
		return invalid("description", "description is required")
	case utf8.RuneCountInString(n.Description) > 5000:
		return invalid("description", "description must be at most 5000 characters")
	case utf8.RuneCountInString(n.Phone) > 40:
		return invalid("phone", "phone must be at most 40 characters")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(n.ClientEmail)); err != nil {
		return invalid("client_email", "client_email must be a valid email address")
	}
	return nil
}

// IntakeFilter selects a page of intake requests. An empty Status matches all.
type IntakeFilter struct {
	Status IntakeStatus
	Page   repository.Pagination
}

// IntakeStore persists intake requests. UpdateIntake writes only when the stored status
// still equals from and returns ErrStaleStatus otherwise.
type IntakeStore interface {
	CreateIntake(ctx context.Context, req *IntakeRequest) error
	GetIntake(ctx context.Context, id uuid.UUID) (*IntakeRequest, error)
	ListIntakes(ctx context.Context, filter IntakeFilter) ([]IntakeRequest, int, error)
	UpdateIntake(ctx context.Context, req *IntakeRequest, from IntakeStatus) error
	DeleteIntake(ctx context.Context, id uuid.UUID) error
	CountIntakesByStatus(ctx context.Context) (map[IntakeStatus]int, error)
}

// Notifier tells clients about progress on their request.
type Notifier interface {
	NotifyAssignment(ctx context.Context, req IntakeRequest, attorney Attorney) error
}

// IntakeService manages intake requests.
type IntakeService struct {
	store     IntakeStore
	attorneys AttorneyStore
	notifier  Notifier
	log       logger.Logger
	now       func() time.Time
}

// NewIntakeService creates the service. notifier may be nil.
func NewIntakeService(store IntakeStore, attorneys AttorneyStore, notifier Notifier, log logger.Logger) *IntakeService {
	if log == nil {
		log = logger.NewNop()
	}
	return &IntakeService{store: store, attorneys: attorneys, notifier: notifier, log: log, now: time.Now}
}

// Create records a new request from the public form.
func (s *IntakeService) Create(ctx context.Context, in NewIntake) (*IntakeRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	req := &IntakeRequest{
		ID:           uuid.New(),
		ClientName:   strings.TrimSpace(in.ClientName),
		ClientEmail:  strings.TrimSpace(in.ClientEmail),
		Phone:        strings.TrimSpace(in.Phone),
		PracticeArea: strings.TrimSpace(in.PracticeArea),
		Description:  strings.TrimSpace(in.Description),
		Status:       IntakeNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateIntake(ctx, req); err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Info("intake request created", "intake_id", req.ID, "practice_area", req.PracticeArea)
	return req, nil
}

// List returns one page of requests and the total match count.
func (s *IntakeService) List(ctx context.Context, filter IntakeFilter) ([]IntakeRequest, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, invalid("status", "unknown status "+string(filter.Status))
	}
	filter.Page = filter.Page.Normalize()
	return s.store.ListIntakes(ctx, filter)
}

// Get returns one request.
func (s *IntakeService) Get(ctx context.Context, id uuid.UUID) (*IntakeRequest, error) {
	req, err := s.store.GetIntake(ctx, id)
	if err != nil {
		return nil, lookupErr("intake_request", err)
	}
	return req, nil
}

// UpdateStatus moves a request along the status machine. Moving to "assigned" needs an
// attorney and goes through Assign; moving back to "in_review" clears the assignment.
func (s *IntakeService) UpdateStatus(ctx context.Context, id uuid.UUID, next IntakeStatus) (*IntakeRequest, error) {
	if !next.Valid() {
		return nil, invalid("status", "unknown status "+string(next))
	}
	if next == IntakeAssigned {
		return nil, invalid("status", "use the assign operation to assign an attorney")
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransition(next) {
		return nil, conflict("intake_request.invalid_transition",
			"cannot move request from "+string(req.Status)+" to "+string(next), nil)
	}

	prev := req.Status
	req.Status = next
	if next == IntakeInReview {
		req.AssignedAttorneyID = nil
	}
	req.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateIntake(ctx, req, prev); err != nil {
		return nil, intakeWriteErr(err)
	}
	s.log.WithContext(ctx).Info("intake status changed", "intake_id", id, "from", prev, "to", next)
	return req, nil
}

// Assign hands an in-review request to an active attorney and notifies the client on a
// best-effort basis.
func (s *IntakeService) Assign(ctx context.Context, id, attorneyID uuid.UUID) (*IntakeRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransition(IntakeAssigned) {
		return nil, conflict("intake_request.invalid_transition",
			"cannot assign a request in status "+string(req.Status), nil)
	}

	attorney, err := s.attorneys.GetAttorney(ctx, attorneyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("attorney_id", "attorney does not exist")
		}
		return nil, lookupErr("attorney", err)
	}
	if attorney.Status != AttorneyActive {
		return nil, invalid("attorney_id", "attorney is not active")
	}

	prev := req.Status
	req.Status = IntakeAssigned
	req.AssignedAttorneyID = &attorney.ID
	req.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateIntake(ctx, req, prev); err != nil {
		if errors.Is(err, ErrConflict) && !errors.Is(err, ErrStaleStatus) {
			return nil, conflict("intake_request.attorney_unavailable", "attorney is no longer available", err)
		}
		return nil, intakeWriteErr(err)
	}

	log := s.log.WithContext(ctx)
	log.Info("intake assigned", "intake_id", id, "attorney_id", attorney.ID)
	if s.notifier != nil {
		if err := s.notifier.NotifyAssignment(ctx, *req, *attorney); err != nil {
			if errors.Is(err, ErrSMTPNotConfigured) {
				log.Debug("assignment notification skipped", "reason", "smtp not configured")
			} else {
				log.Warn("assignment notification failed", "intake_id", id, "error", err)
			}
		}
	}
	return req, nil
}

func intakeWriteErr(err error) error {
	if errors.Is(err, ErrStaleStatus) {
		return conflict("intake_request.invalid_transition", "request status changed, reload and retry", err)
	}
	return lookupErr("intake_request", err)
}

// Delete removes a request.
func (s *IntakeService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteIntake(ctx, id); err != nil {
		return lookupErr("intake_request", err)
	}
	s.log.WithContext(ctx).Info("intake request deleted", "intake_id", id)
	return nil
}
