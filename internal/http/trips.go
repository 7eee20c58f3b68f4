package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/winchzone/dashboard/internal/export"
	"github.com/winchzone/dashboard/internal/http/envelope"
	httpmiddleware "github.com/winchzone/dashboard/internal/http/middleware"
	"github.com/winchzone/dashboard/internal/storage"
	"github.com/winchzone/dashboard/internal/trip"
)

const (
	MsgTripRecorded   = "Trip recorded (Pending)."
	MsgPhotosUploaded = "Photos uploaded."
	msgTripApproved   = "Trip #%d approved."
)

// RecordTrip takes the record form with four pickup and four drop-off
// photos.
func (h *Handler) RecordTrip(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		envelope.Error(w, envelope.CodeValidation, "invalid form", nil)
		return
	}

	in := trip.RecordInput{
		TripDate:        r.FormValue("trip_date"),
		CustomerID:      r.FormValue("customer_id"),
		ServiceID:       formInt(r, "service_id"),
		VehicleID:       formInt(r, "vehicle_id"),
		PickupLocation:  r.FormValue("pickup_location"),
		DropoffLocation: r.FormValue("dropoff_location"),
		PaymentID:       formInt(r, "payment_id"),
	}
	in.SetPrice(r.FormValue("price_per_trip"))

	pickup, dropoff, ok := h.photoSets(w, r)
	if !ok {
		return
	}

	actor, _ := httpmiddleware.GetActor(r.Context())
	var id int64
	err := h.guarded(r, "trip:record:"+actor.UserID.String(), func() error {
		var err error
		id, err = h.trips.Record(r.Context(), actor, in, pickup, dropoff)
		return err
	})
	if err != nil {
		h.writeServiceError(w, r, err, "could not record trip")
		return
	}
	envelope.JSON(w, http.StatusCreated, map[string]any{"id": id, "message": MsgTripRecorded})
}

// ListTrips returns the most recent trips for editing.
func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	list, err := h.trips.ListRecent(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "could not load trips")
		return
	}
	envelope.JSON(w, http.StatusOK, list)
}

// GetTrip returns a trip with the fields the caller may still change.
func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}
	t, err := h.trips.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "could not load trip")
		return
	}
	actor, _ := httpmiddleware.GetActor(r.Context())
	envelope.JSON(w, http.StatusOK, map[string]any{
		"trip":     t,
		"editable": trip.Mutability(t.Status, actor.Role),
	})
}

func (h *Handler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}
	var patch trip.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid JSON", nil)
		return
	}

	actor, _ := httpmiddleware.GetActor(r.Context())
	err := h.guarded(r, tripKey(id), func() error {
		return h.trips.Update(r.Context(), actor, id, patch)
	})
	if err != nil {
		h.writeServiceError(w, r, err, "could not save trip")
		return
	}
	envelope.JSON(w, http.StatusOK, map[string]any{"id": id, "message": MsgSaved})
}

func (h *Handler) SetTripCollection(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}
	var payload struct {
		CollectionID *int `json:"collection_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid JSON", nil)
		return
	}

	actor, _ := httpmiddleware.GetActor(r.Context())
	err := h.guarded(r, tripKey(id), func() error {
		return h.trips.SetCollection(r.Context(), actor, id, payload.CollectionID)
	})
	if err != nil {
		h.writeServiceError(w, r, err, "could not save collection status")
		return
	}
	envelope.JSON(w, http.StatusOK, map[string]any{"id": id, "message": MsgSaved})
}

// UploadTripPhotos replaces the pickup set, the drop-off set or both.
func (h *Handler) UploadTripPhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid form", nil)
		return
	}
	pickup, dropoff, ok := h.photoSets(w, r)
	if !ok {
		return
	}

	actor, _ := httpmiddleware.GetActor(r.Context())
	err := h.guarded(r, tripKey(id), func() error {
		return h.trips.UploadPhotos(r.Context(), actor, id, pickup, dropoff)
	})
	if err != nil {
		h.writeServiceError(w, r, err, "could not upload photos")
		return
	}
	envelope.JSON(w, http.StatusOK, map[string]any{"id": id, "message": MsgPhotosUploaded})
}

func (h *Handler) ListPendingTrips(w http.ResponseWriter, r *http.Request) {
	list, err := h.trips.ListPending(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "could not load pending trips")
		return
	}
	envelope.JSON(w, http.StatusOK, list)
}

// ApproveTrip approves a pending trip. Repeating it on an approved trip
// succeeds with changed=false.
func (h *Handler) ApproveTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := tripID(w, r)
	if !ok {
		return
	}

	actor, _ := httpmiddleware.GetActor(r.Context())
	var changed bool
	err := h.guarded(r, tripKey(id)+":approve", func() error {
		var err error
		changed, err = h.trips.Approve(r.Context(), actor, id)
		return err
	})
	if err != nil {
		h.writeServiceError(w, r, err, "could not approve trip")
		return
	}
	if h.metrics != nil {
		h.metrics.TripApproval(changed)
	}
	envelope.JSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"status":  trip.StatusApproved,
		"changed": changed,
		"message": fmt.Sprintf(msgTripApproved, id),
	})
}

// ExportTrips streams the filtered trips as an xlsx workbook.
func (h *Handler) ExportTrips(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.exportRows(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, rows); err != nil {
		h.writeServiceError(w, r, err, "could not build export")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// PreviewExport returns the rows ExportTrips would write.
func (h *Handler) PreviewExport(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.exportRows(w, r)
	if !ok {
		return
	}
	envelope.JSON(w, http.StatusOK, rows)
}

func (h *Handler) exportRows(w http.ResponseWriter, r *http.Request) ([]export.Row, bool) {
	q := r.URL.Query()
	filter := trip.Filter{
		From: strings.TrimSpace(q.Get("from")),
		To:   strings.TrimSpace(q.Get("to")),
	}
	if raw := strings.TrimSpace(q.Get("customer_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			envelope.Error(w, envelope.CodeValidation, "invalid customer id", nil)
			return nil, false
		}
		filter.CustomerID = &id
	}

	list, err := h.trips.Export(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err, "could not load trips")
		return nil, false
	}
	return export.Rows(list), true
}

func (h *Handler) photoSets(w http.ResponseWriter, r *http.Request) (pickup, dropoff []storage.File, ok bool) {
	pickup, err := formFiles(r, "pickup_photos")
	if err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid pickup photo", nil)
		return nil, nil, false
	}
	dropoff, err = formFiles(r, "dropoff_photos")
	if err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid drop-off photo", nil)
		return nil, nil, false
	}
	return pickup, dropoff, true
}

func tripID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		envelope.Error(w, envelope.CodeValidation, "invalid trip id", nil)
		return 0, false
	}
	return id, true
}

func tripKey(id int64) string {
	return "trip:" + strconv.FormatInt(id, 10)
}

func formInt(r *http.Request, field string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(field)))
	if err != nil {
		return 0
	}
	return n
}
