package trip

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/events"
	"github.com/winchzone/dashboard/internal/repo"
	"github.com/winchzone/dashboard/internal/storage"
)

// RecentLimit caps the edit list.
const RecentLimit = 200

// Store is the persistence the service needs.
type Store interface {
	Insert(ctx context.Context, t NewTrip) (int64, error)
	Get(ctx context.Context, id int64) (Trip, error)
	ListRecent(ctx context.Context, limit int) ([]Trip, error)
	ListPending(ctx context.Context) ([]Summary, error)
	ListForExport(ctx context.Context, f Filter) ([]Summary, error)
	UpdatePending(ctx context.Context, id int64, p Patch) (bool, error)
	SetPhotos(ctx context.Context, id int64, pickup, dropoff []string, pendingOnly bool) (bool, error)
	SetCollection(ctx context.Context, id int64, collectionID *int) (bool, error)
	Approve(ctx context.Context, id int64, by uuid.UUID) (bool, error)
}

// PartialError reports an operation whose first step was saved while a
// later step failed. Nothing is rolled back.
type PartialError struct {
	TripID int64
	Step   string
	Err    error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("trip #%d saved but %s failed: %v", e.TripID, e.Step, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

type Service struct {
	store    Store
	uploader storage.Uploader
	events   events.Publisher
	logger   zerolog.Logger
}

func NewService(store Store, uploader storage.Uploader, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		store:    store,
		uploader: uploader,
		events:   pub,
		logger:   logger.With().Str("component", "trip").Logger(),
	}
}

// Record validates the form and both photo sets, inserts a pending trip and
// then uploads its photos.
func (s *Service) Record(ctx context.Context, actor access.Actor, in RecordInput, pickup, dropoff []storage.File) (int64, error) {
	t, err := in.Validate(actor.UserID)
	if err != nil {
		return 0, err
	}
	if err := ValidateRecordPhotos(len(pickup), len(dropoff)); err != nil {
		return 0, err
	}

	id, err := s.store.Insert(ctx, t)
	if err != nil {
		return 0, err
	}

	pickupURLs, err := s.upload(ctx, id, SidePickup, pickup)
	if err != nil {
		return id, &PartialError{TripID: id, Step: "photo upload", Err: err}
	}
	dropoffURLs, err := s.upload(ctx, id, SideDropoff, dropoff)
	if err != nil {
		return id, &PartialError{TripID: id, Step: "photo upload", Err: err}
	}
	if _, err := s.store.SetPhotos(ctx, id, pickupURLs, dropoffURLs, false); err != nil {
		return id, &PartialError{TripID: id, Step: "photo update", Err: err}
	}

	s.publish(ctx, events.SubjectTripRecorded, actor, id, nil)
	return id, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Trip, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListRecent(ctx context.Context) ([]Trip, error) {
	return s.store.ListRecent(ctx, RecentLimit)
}

func (s *Service) ListPending(ctx context.Context) ([]Summary, error) {
	return s.store.ListPending(ctx)
}

func (s *Service) Export(ctx context.Context, f Filter) ([]Summary, error) {
	if err := ValidateFilter(f); err != nil {
		return nil, err
	}
	return s.store.ListForExport(ctx, f)
}

// Update applies a field patch. Approved trips reject every field.
func (s *Service) Update(ctx context.Context, actor access.Actor, id int64, p Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	fields := p.Fields()
	if len(fields) == 0 {
		return nil
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if !Editable(current.Status, actor.Role, f) {
			return ErrTripLocked
		}
	}

	updated, err := s.store.UpdatePending(ctx, id, p)
	if err != nil {
		return err
	}
	if !updated {
		// approved between the read and the write
		return ErrTripLocked
	}

	s.publish(ctx, events.SubjectTripUpdated, actor, id, map[string]any{"fields": fields})
	return nil
}

// SetCollection changes the collection status in any approval state.
func (s *Service) SetCollection(ctx context.Context, actor access.Actor, id int64, collectionID *int) error {
	if !actor.IsAdmin() {
		return ErrCollectionAdminOnly
	}
	found, err := s.store.SetCollection(ctx, id, collectionID)
	if err != nil {
		return err
	}
	if !found {
		return repo.ErrNotFound
	}

	data := map[string]any{"collection_id": nil}
	if collectionID != nil {
		data["collection_id"] = *collectionID
	}
	s.publish(ctx, events.SubjectTripCollection, actor, id, data)
	return nil
}

// UploadPhotos replaces the sides that received files. Counts are checked
// before any upload.
func (s *Service) UploadPhotos(ctx context.Context, actor access.Actor, id int64, pickup, dropoff []storage.File) error {
	if err := ValidateEditPhotos(len(pickup), len(dropoff)); err != nil {
		return err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if (len(pickup) > 0 && !Editable(current.Status, actor.Role, FieldPickupPhotos)) ||
		(len(dropoff) > 0 && !Editable(current.Status, actor.Role, FieldDropoffPhotos)) {
		return ErrTripLocked
	}

	var pickupURLs, dropoffURLs []string
	if len(pickup) > 0 {
		if pickupURLs, err = s.upload(ctx, id, SidePickup, pickup); err != nil {
			return err
		}
	}
	if len(dropoff) > 0 {
		if dropoffURLs, err = s.upload(ctx, id, SideDropoff, dropoff); err != nil {
			return err
		}
	}

	updated, err := s.store.SetPhotos(ctx, id, pickupURLs, dropoffURLs, true)
	if err != nil {
		return err
	}
	if !updated {
		return ErrTripLocked
	}

	s.publish(ctx, events.SubjectTripPhotos, actor, id, map[string]any{
		"pickup":  len(pickupURLs),
		"dropoff": len(dropoffURLs),
	})
	return nil
}

// Approve transitions a pending trip. Approving an approved trip succeeds
// without changes; changed reports whether this call did the transition.
func (s *Service) Approve(ctx context.Context, actor access.Actor, id int64) (changed bool, err error) {
	if !actor.IsAdmin() {
		return false, ErrApproveAdminOnly
	}

	changed, err = s.store.Approve(ctx, id, actor.UserID)
	if err != nil {
		return false, err
	}
	if !changed {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return false, err
		}
		if current.Status != StatusApproved {
			return false, fmt.Errorf("trip #%d left in status %q", id, current.Status)
		}
		s.logger.Debug().Int64("trip_id", id).Msg("trip already approved")
		return false, nil
	}

	s.publish(ctx, events.SubjectTripApproved, actor, id, nil)
	return true, nil
}

func (s *Service) upload(ctx context.Context, id int64, side Side, files []storage.File) ([]string, error) {
	urls := make([]string, 0, len(files))
	for i, f := range files {
		res, err := s.uploader.Upload(ctx, storage.UploadInput{
			Key:         PhotoKey(id, side, i+1, f.Name),
			Body:        f.Data,
			ContentType: f.ContentType,
		})
		if err != nil {
			return nil, fmt.Errorf("upload %s photo %d: %w", side, i+1, err)
		}
		urls = append(urls, res.URL)
	}
	return urls, nil
}

func (s *Service) publish(ctx context.Context, subject string, actor access.Actor, id int64, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["trip_id"] = id
	s.events.Publish(ctx, events.Event{Subject: subject, Actor: actor.UserID.String(), Data: data})
}

// IsPartial reports whether err is a PartialError.
func IsPartial(err error) (*PartialError, bool) {
	var pe *PartialError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
