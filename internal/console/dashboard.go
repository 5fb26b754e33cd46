package console

import (
	"context"
	"fmt"
)

// EnvironmentInfo reports where the console is running.
type EnvironmentInfo interface {
	EnvironmentName() string
}

// StorageSummary describes the storage selection.
type StorageSummary struct {
	Environment string `json:"environment"`
	State       string `json:"state"`
	Variant     string `json:"variant,omitempty"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	Requests  map[IntakeStatus]int   `json:"requests"`
	Attorneys map[AttorneyStatus]int `json:"attorneys"`
	Posts     PostCounts             `json:"posts"`
	Storage   StorageSummary         `json:"storage"`
}

// DashboardService aggregates counts across the console.
type DashboardService struct {
	intakes   IntakeStore
	attorneys AttorneyStore
	posts     PostStore
	storage   StorageProvider
	env       EnvironmentInfo
}

// NewDashboardService creates the service.
func NewDashboardService(intakes IntakeStore, attorneys AttorneyStore, posts PostStore, storage StorageProvider, env EnvironmentInfo) *DashboardService {
	return &DashboardService{intakes: intakes, attorneys: attorneys, posts: posts, storage: storage, env: env}
}

// Summary returns per-status counts and the storage selection. It never forces
// storage construction.
func (s *DashboardService) Summary(ctx context.Context) (*Dashboard, error) {
	requests, err := s.intakes.CountIntakesByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count intake requests: %w", err)
	}
	attorneys, err := s.attorneys.CountAttorneysByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count attorneys: %w", err)
	}
	posts, err := s.posts.CountPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}

	d := &Dashboard{
		Requests:  make(map[IntakeStatus]int, len(IntakeStatuses)),
		Attorneys: make(map[AttorneyStatus]int, len(AttorneyStatuses)),
		Posts:     posts,
		Storage: StorageSummary{
			Environment: s.env.EnvironmentName(),
			State:       s.storage.State().String(),
			Variant:     s.storage.Variant().String(),
		},
	}
	for _, st := range IntakeStatuses {
		d.Requests[st] = requests[st]
	}
	for _, st := range AttorneyStatuses {
		d.Attorneys[st] = attorneys[st]
	}
	return d, nil
}
