package trip

import (
	"fmt"
	"maps"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/winchzone/dashboard/internal/format"
	"github.com/winchzone/dashboard/internal/util"
)

// PhotosPerSide is the exact size of a photo set.
const PhotosPerSide = 4

// Side is the pickup or dropoff photo set.
type Side string

const (
	SidePickup  Side = "pickup"
	SideDropoff Side = "dropoff"
)

const photoBucket = "trip_photos"

const (
	msgPickupPhotos  = "Pick up photos must be 4 files."
	msgDropoffPhotos = "Drop off photos must be 4 files."
	msgNoPhotos      = "No photos selected."
	msgPrice         = "Price must be 3 to 5 digits."
)

// PhotoKey is the storage key of the n-th (1-based) photo of a side.
func PhotoKey(tripID int64, side Side, n int, name string) string {
	return fmt.Sprintf("%s/%d/%s_%d_%s", photoBucket, tripID, side, n, path.Base(strings.ReplaceAll(name, "\\", "/")))
}

// ValidateRecordPhotos requires a full set on both sides.
func ValidateRecordPhotos(pickup, dropoff int) error {
	if pickup != PhotosPerSide {
		return util.Invalid(string(FieldPickupPhotos), msgPickupPhotos)
	}
	if dropoff != PhotosPerSide {
		return util.Invalid(string(FieldDropoffPhotos), msgDropoffPhotos)
	}
	return nil
}

// ValidateEditPhotos accepts 0 or 4 per side with at least one side set.
func ValidateEditPhotos(pickup, dropoff int) error {
	if pickup != 0 && pickup != PhotosPerSide {
		return util.Invalid(string(FieldPickupPhotos), msgPickupPhotos)
	}
	if dropoff != 0 && dropoff != PhotosPerSide {
		return util.Invalid(string(FieldDropoffPhotos), msgDropoffPhotos)
	}
	if pickup == 0 && dropoff == 0 {
		return util.Invalid("photos", msgNoPhotos)
	}
	return nil
}

// RecordInput is the raw record-trip form.
type RecordInput struct {
	TripDate        string `json:"trip_date" validate:"required,isodate"`
	CustomerID      string `json:"customer_id" validate:"required,uuid"`
	ServiceID       int    `json:"service_id" validate:"gt=0"`
	VehicleID       int    `json:"vehicle_id" validate:"gt=0"`
	PickupLocation  string `json:"pickup_location" validate:"notblank"`
	DropoffLocation string `json:"dropoff_location" validate:"notblank"`
	Price           int    `json:"-" validate:"min=100,max=99999"`
	PaymentID       int    `json:"payment_id" validate:"gt=0"`
}

var recordMessages = map[string]string{
	"TripDate":        "Trip date is required.",
	"CustomerID":      "Customer is required.",
	"ServiceID":       "Service is required.",
	"VehicleID":       "Vehicle is required.",
	"PickupLocation":  "Pick up location is required.",
	"DropoffLocation": "Drop off location is required.",
	"Price":           msgPrice,
	"PaymentID":       "Payment is required.",
}

// SetPrice parses a price typed with thousands separators. Unparseable
// input is stored as an out of range value.
func (in *RecordInput) SetPrice(raw string) {
	n, ok := format.ParsePrice(raw)
	if !ok {
		n = -1
	}
	in.Price = n
}

// Validate checks the form in display order and returns the normalized
// trip.
func (in RecordInput) Validate(createdBy uuid.UUID) (NewTrip, error) {
	if err := util.Check(in, recordMessages); err != nil {
		return NewTrip{}, err
	}
	customerID, err := uuid.Parse(in.CustomerID)
	if err != nil {
		return NewTrip{}, util.Invalid("CustomerID", recordMessages["CustomerID"])
	}
	return NewTrip{
		TripDate:        in.TripDate,
		CustomerID:      customerID,
		ServiceID:       in.ServiceID,
		VehicleID:       in.VehicleID,
		PickupLocation:  strings.TrimSpace(in.PickupLocation),
		DropoffLocation: strings.TrimSpace(in.DropoffLocation),
		PricePerTrip:    in.Price,
		PaymentID:       in.PaymentID,
		CreatedBy:       createdBy,
	}, nil
}

// Patch is a partial edit of trip fields. Nil members are left unchanged.
// Collection status is changed through its own operation.
type Patch struct {
	TripDate        *string    `json:"trip_date" validate:"omitnil,isodate"`
	CustomerID      *uuid.UUID `json:"customer_id"`
	ServiceID       *int       `json:"service_id" validate:"omitnil,gt=0"`
	VehicleID       *int       `json:"vehicle_id" validate:"omitnil,gt=0"`
	PickupLocation  *string    `json:"pickup_location" validate:"omitnil,notblank"`
	DropoffLocation *string    `json:"dropoff_location" validate:"omitnil,notblank"`
	PricePerTrip    *int       `json:"price_per_trip" validate:"omitnil,min=100,max=99999"`
	PaymentID       *int       `json:"payment_id" validate:"omitnil,gt=0"`
}

var patchMessages = func() map[string]string {
	m := map[string]string{"PricePerTrip": msgPrice}
	maps.Copy(m, recordMessages)
	return m
}()

// Fields lists the fields the patch sets.
func (p Patch) Fields() []Field {
	var out []Field
	if p.TripDate != nil {
		out = append(out, FieldTripDate)
	}
	if p.CustomerID != nil {
		out = append(out, FieldCustomer)
	}
	if p.ServiceID != nil {
		out = append(out, FieldService)
	}
	if p.VehicleID != nil {
		out = append(out, FieldVehicle)
	}
	if p.PickupLocation != nil {
		out = append(out, FieldPickup)
	}
	if p.DropoffLocation != nil {
		out = append(out, FieldDropoff)
	}
	if p.PricePerTrip != nil {
		out = append(out, FieldPrice)
	}
	if p.PaymentID != nil {
		out = append(out, FieldPayment)
	}
	return out
}

// Validate checks set fields and trims locations.
func (p *Patch) Validate() error {
	if err := util.Check(p, patchMessages); err != nil {
		return err
	}
	if p.CustomerID != nil && *p.CustomerID == uuid.Nil {
		return util.Invalid("CustomerID", recordMessages["CustomerID"])
	}
	if p.PickupLocation != nil {
		v := strings.TrimSpace(*p.PickupLocation)
		p.PickupLocation = &v
	}
	if p.DropoffLocation != nil {
		v := strings.TrimSpace(*p.DropoffLocation)
		p.DropoffLocation = &v
	}
	return nil
}

// ValidateFilter checks the optional date bounds of an export.
func ValidateFilter(f Filter) error {
	type bounds struct {
		From string `validate:"omitempty,isodate"`
		To   string `validate:"omitempty,isodate"`
	}
	return util.Check(bounds{From: f.From, To: f.To}, map[string]string{
		"From": "From date is invalid.",
		"To":   "To date is invalid.",
	})
}
