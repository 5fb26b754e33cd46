package objectstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lexintake/console/pkg/observability/logger"
)

// Constructor builds one storage backend. It is invoked at most once per selection attempt.
type Constructor func(ctx context.Context) (Service, error)

// ManagedSignal reports whether the process runs on the managed host.
type ManagedSignal interface {
	IsManagedEnvironment() bool
}

// Metrics receives selection and per-operation measurements.
type Metrics interface {
	RecordStorageSelection(variant, outcome string)
	RecordStorageOperation(variant, operation, outcome string, duration time.Duration)
}

// Selection outcomes reported to Metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// State is the lifecycle state of a Selector.
type State int

const (
	// StateUnselected means no backend has been constructed yet, or the last attempt failed.
	StateUnselected State = iota
	// StateSelected is terminal: the same handle is returned for the life of the process.
	StateSelected
)

func (s State) String() string {
	if s == StateSelected {
		return "selected"
	}
	return "unselected"
}

var (
	// ErrSelectorInstalled is returned when a process selector is already installed.
	ErrSelectorInstalled = errors.New("storage selector already installed")
	// ErrSelectorNotInstalled is returned by GetStorageService before installation.
	ErrSelectorNotInstalled = errors.New("storage selector not installed")
)

// Selector lazily chooses and constructs the storage backend on first use and then
// hands out the same handle to every caller. Selection reads the managed-host signal
// once; later changes to the environment do not affect an existing selection.
type Selector struct {
	signal  ManagedSignal
	cloud   Constructor
	local   Constructor
	log     logger.Logger
	metrics Metrics
	tracer  trace.Tracer

	handle atomic.Pointer[selected]

	// building holds a token while a backend is being constructed.
	building chan struct{}
}

type selected struct {
	service Service
	variant Variant
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithLogger sets the logger used for selection events.
func WithLogger(log logger.Logger) SelectorOption {
	return func(s *Selector) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics reports selections and operations to m.
func WithMetrics(m Metrics) SelectorOption {
	return func(s *Selector) {
		s.metrics = m
	}
}

// WithTracer records a span per storage operation.
func WithTracer(t trace.Tracer) SelectorOption {
	return func(s *Selector) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewSelector creates an unselected Selector. Both constructors are required.
func NewSelector(signal ManagedSignal, cloud, local Constructor, opts ...SelectorOption) (*Selector, error) {
	if signal == nil {
		return nil, errors.New("managed signal is required")
	}
	if cloud == nil || local == nil {
		return nil, errors.New("both cloud and local constructors are required")
	}
	s := &Selector{
		signal: signal,
		cloud:  cloud,
		local:  local,
		log:    logger.NewNop(),
		tracer: noop.NewTracerProvider().Tracer("objectstore"),

		building: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Get returns the process storage handle, constructing it on the first call.
//
// Concurrent first calls construct exactly one backend; the others wait and receive
// the same handle. A waiter whose ctx ends first returns ctx.Err() and the construction
// carries on for the caller running it. A failed construction returns an error wrapping
// ErrStorageUnavailable and the cause, leaves the Selector unselected, and the next call
// tries again. There is no fallback from one variant to the other.
func (s *Selector) Get(ctx context.Context) (Service, error) {
	if sel := s.handle.Load(); sel != nil {
		return sel.service, nil
	}

	select {
	case s.building <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.building }()

	if sel := s.handle.Load(); sel != nil {
		return sel.service, nil
	}

	variant, construct := VariantLocal, s.local
	if s.signal.IsManagedEnvironment() {
		variant, construct = VariantCloud, s.cloud
	}

	svc, err := construct(ctx)
	if err == nil && svc == nil {
		err = errors.New("constructor returned no service")
	}
	if err != nil {
		s.recordSelection(variant, OutcomeFailure)
		s.log.Error("storage backend construction failed", "variant", variant.String(), "error", err)
		return nil, fmt.Errorf("%w: %s storage backend could not be initialised: %w", ErrStorageUnavailable, variant, err)
	}

	wrapped := newInstrumented(svc, variant, s.metrics, s.tracer)
	s.handle.Store(&selected{service: wrapped, variant: variant})
	s.recordSelection(variant, OutcomeSuccess)
	s.log.Info("storage backend selected", "variant", variant.String())
	return wrapped, nil
}

// Selected returns the handle without triggering construction.
func (s *Selector) Selected() (Service, bool) {
	if sel := s.handle.Load(); sel != nil {
		return sel.service, true
	}
	return nil, false
}

// State reports whether a backend has been selected.
func (s *Selector) State() State {
	if s.handle.Load() != nil {
		return StateSelected
	}
	return StateUnselected
}

// Variant returns the selected variant, or "" while unselected.
func (s *Selector) Variant() Variant {
	if sel := s.handle.Load(); sel != nil {
		return sel.variant
	}
	return ""
}

// Close releases the selected backend, if any. The selection itself stays in place.
func (s *Selector) Close() error {
	if sel := s.handle.Load(); sel != nil {
		return sel.service.Close()
	}
	return nil
}

func (s *Selector) recordSelection(variant Variant, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordStorageSelection(variant.String(), outcome)
	}
}

var process atomic.Pointer[Selector]

// InstallProcessSelector makes sel the process-wide selector used by GetStorageService.
// Only the first installation succeeds.
func InstallProcessSelector(sel *Selector) error {
	if sel == nil {
		return errors.New("selector is required")
	}
	if !process.CompareAndSwap(nil, sel) {
		return ErrSelectorInstalled
	}
	return nil
}

// ProcessSelector returns the installed process-wide selector.
func ProcessSelector() (*Selector, bool) {
	sel := process.Load()
	return sel, sel != nil
}

// GetStorageService returns the process storage handle from the installed selector.
func GetStorageService(ctx context.Context) (Service, error) {
	sel := process.Load()
	if sel == nil {
		return nil, ErrSelectorNotInstalled
	}
	return sel.Get(ctx)
}
