package customer

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/events"
	"github.com/winchzone/dashboard/internal/storage"
)

const docBucket = "customer_docs"

// DocKey is the storage key of a customer document.
func DocKey(id uuid.UUID, kind DocKind, name string) string {
	return fmt.Sprintf("%s/%s/%s_%s", docBucket, id, kind, path.Base(strings.ReplaceAll(name, "\\", "/")))
}

type Store interface {
	List(ctx context.Context) ([]Customer, error)
	Insert(ctx context.Context, f Fields, createdBy uuid.UUID) (uuid.UUID, error)
	SetDocs(ctx context.Context, id uuid.UUID, d Docs) error
	Update(ctx context.Context, id uuid.UUID, p Patch) error
}

// Uploads carries the optional documents of a new customer.
type Uploads struct {
	CommercialRegister *storage.File
	TaxID              *storage.File
	PriceList          *storage.File
}

// PartialError reports a customer row that was saved while its documents
// were not.
type PartialError struct {
	CustomerID uuid.UUID
	Err        error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("customer %s saved but documents failed: %v", e.CustomerID, e.Err)
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
	return &Service{store: store, uploader: uploader, events: pub, logger: logger.With().Str("component", "customer").Logger()}
}

func (s *Service) List(ctx context.Context) ([]Customer, error) {
	return s.store.List(ctx)
}

// Create inserts the customer then uploads any documents and links them.
func (s *Service) Create(ctx context.Context, actor access.Actor, f Fields, up Uploads) (uuid.UUID, error) {
	f, err := ValidateNew(f)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := s.store.Insert(ctx, f, actor.UserID)
	if err != nil {
		return uuid.Nil, err
	}

	var docs Docs
	for _, d := range []struct {
		kind DocKind
		file *storage.File
		dst  **string
	}{
		{DocCommercialRegister, up.CommercialRegister, &docs.CommercialRegister},
		{DocTaxID, up.TaxID, &docs.TaxID},
		{DocPriceList, up.PriceList, &docs.PriceList},
	} {
		if d.file == nil {
			continue
		}
		res, err := s.uploader.Upload(ctx, storage.UploadInput{
			Key:         DocKey(id, d.kind, d.file.Name),
			Body:        d.file.Data,
			ContentType: d.file.ContentType,
		})
		if err != nil {
			return id, &PartialError{CustomerID: id, Err: fmt.Errorf("upload %s: %w", d.kind, err)}
		}
		url := res.URL
		*d.dst = &url
	}

	if !docs.empty() {
		if err := s.store.SetDocs(ctx, id, docs); err != nil {
			return id, &PartialError{CustomerID: id, Err: err}
		}
	}

	s.events.Publish(ctx, events.Event{
		Subject: events.SubjectCustomerCreated,
		Actor:   actor.UserID.String(),
		Data:    map[string]any{"customer_id": id.String(), "name": f.Name},
	})
	return id, nil
}

// Update applies a partial edit to a customer row.
func (s *Service) Update(ctx context.Context, actor access.Actor, id uuid.UUID, p Patch) error {
	p, err := ValidateUpdate(p)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, id, p); err != nil {
		return err
	}

	s.events.Publish(ctx, events.Event{
		Subject: events.SubjectCustomerUpdated,
		Actor:   actor.UserID.String(),
		Data:    map[string]any{"customer_id": id.String()},
	})
	return nil
}
