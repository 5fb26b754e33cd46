package console

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func validAttorney() NewAttorney {
	return NewAttorney{
		FullName:      "Priya Raman",
		Email:         "Priya.Raman@Firm.test",
		BarNumber:     "CA-204811",
		PracticeAreas: []string{"family", " Family ", "immigration", ""},
	}
}

func newAttorneyFixture(t *testing.T) (*AttorneyService, *memStore) {
	t.Helper()
	store := newMemStore()
	media := NewMediaService(newLocalStorage(t), 0, nil)
	return NewAttorneyService(store, media, nil), store
}

func TestAttorneyService_Onboard(t *testing.T) {
	svc, _ := newAttorneyFixture(t)
	a, err := svc.Onboard(t.Context(), validAttorney())
	if err != nil {
		t.Fatalf("Onboard() error = %v", err)
	}
	if a.Status != AttorneyPending {
		t.Fatalf("status = %s, want pending", a.Status)
	}
	if a.Email != "priya.raman@firm.test" {
		t.Fatalf("email not normalised: %q", a.Email)
	}
	if len(a.PracticeAreas) != 2 || !hasString(a.PracticeAreas, "family") || !hasString(a.PracticeAreas, "immigration") {
		t.Fatalf("practice areas = %v", a.PracticeAreas)
	}

	_, err = svc.Onboard(t.Context(), validAttorney())
	wantKind(t, err, KindConflict)
	wantCode(t, err, "attorney.duplicate")
}

func TestAttorneyService_OnboardValidation(t *testing.T) {
	svc, _ := newAttorneyFixture(t)
	in := validAttorney()
	in.PracticeAreas = []string{" "}
	_, err := svc.Onboard(t.Context(), in)
	wantCode(t, err, "validation.practice_areas")
}

func TestAttorneyService_Lifecycle(t *testing.T) {
	svc, _ := newAttorneyFixture(t)
	a, _ := svc.Onboard(t.Context(), validAttorney())

	if _, err := svc.Suspend(t.Context(), a.ID); KindOf(err) != KindConflict {
		t.Fatalf("suspending a pending attorney: err = %v", err)
	}
	got, err := svc.Activate(t.Context(), a.ID)
	if err != nil || got.Status != AttorneyActive {
		t.Fatalf("Activate() = %v, %v", got, err)
	}
	if _, err := svc.Activate(t.Context(), a.ID); KindOf(err) != KindConflict {
		t.Fatalf("activating twice: err = %v", err)
	}
	got, err = svc.Suspend(t.Context(), a.ID)
	if err != nil || got.Status != AttorneySuspended {
		t.Fatalf("Suspend() = %v, %v", got, err)
	}
	if _, err := svc.Activate(t.Context(), a.ID); err != nil {
		t.Fatalf("reactivating: %v", err)
	}

	_, err = svc.Activate(t.Context(), uuid.New())
	wantKind(t, err, KindNotFound)
}

func TestAttorneyService_List(t *testing.T) {
	svc, _ := newAttorneyFixture(t)
	a, _ := svc.Onboard(t.Context(), validAttorney())
	_, _ = svc.Activate(t.Context(), a.ID)

	active, err := svc.List(t.Context(), AttorneyActive)
	if err != nil || len(active) != 1 {
		t.Fatalf("List(active) = %v, %v", active, err)
	}
	pending, _ := svc.List(t.Context(), AttorneyPending)
	if len(pending) != 0 {
		t.Fatalf("List(pending) = %v", pending)
	}
	_, err = svc.List(t.Context(), "retired")
	wantKind(t, err, KindValidation)
}

func TestAttorneyService_UploadPhoto(t *testing.T) {
	svc, _ := newAttorneyFixture(t)
	a, _ := svc.Onboard(t.Context(), validAttorney())

	got, err := svc.UploadPhoto(t.Context(), a.ID, pngImage)
	if err != nil {
		t.Fatalf("UploadPhoto(png) error = %v", err)
	}
	pngKey := "attorneys/" + a.ID.String() + "/photo.png"
	if got.PhotoKey != pngKey {
		t.Fatalf("photo key = %q, want %q", got.PhotoKey, pngKey)
	}

	got, err = svc.UploadPhoto(t.Context(), a.ID, jpegImage)
	if err != nil {
		t.Fatalf("UploadPhoto(jpeg) error = %v", err)
	}
	if got.PhotoKey != "attorneys/"+a.ID.String()+"/photo.jpg" {
		t.Fatalf("photo key = %q", got.PhotoKey)
	}

	obj, err := svc.media.Open(t.Context(), got.PhotoKey)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(obj.Data, jpegImage) {
		t.Fatal("stored photo differs from upload")
	}
	_, err = svc.media.Open(t.Context(), pngKey)
	wantKind(t, err, KindNotFound)
}

func TestAttorneyService_UploadPhotoRejectsNonImage(t *testing.T) {
	svc, _ := newAttorneyFixture(t)
	a, _ := svc.Onboard(t.Context(), validAttorney())
	_, err := svc.UploadPhoto(t.Context(), a.ID, []byte("%PDF-1.7 not an image"))
	wantCode(t, err, "validation.file")
}

// interleavedAttorneys runs between once, right after the next attorney read, as a
// second admin acting at the same moment would.
type interleavedAttorneys struct {
	*memStore
	between func()
}

func (s *interleavedAttorneys) GetAttorney(ctx context.Context, id uuid.UUID) (*Attorney, error) {
	a, err := s.memStore.GetAttorney(ctx, id)
	if run := s.between; run != nil && err == nil {
		s.between = nil
		run()
	}
	return a, err
}

func TestAttorneyService_PhotoUploadKeepsConcurrentSuspension(t *testing.T) {
	// Given: an active attorney suspended while their photo upload is in flight
	store := newMemStore()
	attorneys := &interleavedAttorneys{memStore: store}
	svc := NewAttorneyService(attorneys, NewMediaService(newLocalStorage(t), 0, nil), nil)
	a, _ := svc.Onboard(t.Context(), validAttorney())
	if _, err := svc.Activate(t.Context(), a.ID); err != nil {
		t.Fatal(err)
	}
	attorneys.between = func() {
		if err := store.SetAttorneyStatus(t.Context(), a.ID, AttorneySuspended, []AttorneyStatus{AttorneyActive}, time.Now()); err != nil {
			t.Errorf("concurrent suspend: %v", err)
		}
	}

	// When: the upload finishes
	got, err := svc.UploadPhoto(t.Context(), a.ID, pngImage)

	// Then: the photo is stored and the suspension survives
	if err != nil {
		t.Fatalf("UploadPhoto() error = %v", err)
	}
	if got.Status != AttorneySuspended || got.PhotoKey == "" {
		t.Fatalf("attorney = %+v, want suspended with a photo", got)
	}
	if stored, _ := store.GetAttorney(t.Context(), a.ID); stored.Status != AttorneySuspended {
		t.Fatalf("stored status = %s, want suspended", stored.Status)
	}
}

func TestAttorneyService_StaleTransitionIsRefused(t *testing.T) {
	// Given: an active attorney whose status moves on after it was read
	store := newMemStore()
	attorneys := &interleavedAttorneys{memStore: store}
	svc := NewAttorneyService(attorneys, NewMediaService(newLocalStorage(t), 0, nil), nil)
	a, _ := svc.Onboard(t.Context(), validAttorney())
	_, _ = svc.Activate(t.Context(), a.ID)
	attorneys.between = func() {
		_ = store.SetAttorneyStatus(t.Context(), a.ID, AttorneySuspended, []AttorneyStatus{AttorneyActive}, time.Now())
	}

	// When: the suspend based on the stale read is written
	_, err := svc.Suspend(t.Context(), a.ID)

	// Then: it is reported as a conflict instead of silently rewriting the row
	wantKind(t, err, KindConflict)
	wantCode(t, err, "attorney.invalid_transition")
}
