package trip

import (
	"errors"

	"github.com/winchzone/dashboard/internal/access"
)

// Field names a mutable trip attribute.
type Field string

const (
	FieldTripDate      Field = "trip_date"
	FieldCustomer      Field = "customer_id"
	FieldService       Field = "service_id"
	FieldVehicle       Field = "vehicle_id"
	FieldPickup        Field = "pickup_location"
	FieldDropoff       Field = "dropoff_location"
	FieldPrice         Field = "price_per_trip"
	FieldPayment       Field = "payment_id"
	FieldPickupPhotos  Field = "pickup_photos"
	FieldDropoffPhotos Field = "dropoff_photos"
	FieldCollection    Field = "collection_id"
)

// Fields lists every mutable field in form order.
var Fields = []Field{
	FieldTripDate, FieldCustomer, FieldService, FieldVehicle,
	FieldPickup, FieldDropoff, FieldPrice, FieldPayment,
	FieldPickupPhotos, FieldDropoffPhotos, FieldCollection,
}

var (
	ErrTripLocked          = errors.New("Approved trip: editing disabled.")
	ErrCollectionAdminOnly = errors.New("Collection status can only be changed by an admin.")
	ErrApproveAdminOnly    = errors.New("Only an admin can approve trips.")
	ErrUnknownReference    = errors.New("Selected customer, service, vehicle, payment or collection does not exist.")
)

// Editable decides whether role may change field on a trip in status.
// Collection status is admin-only in every state; everything else is open
// only while the trip is pending.
func Editable(status Status, role access.Role, field Field) bool {
	if field == FieldCollection {
		return role == access.RoleAdmin
	}
	if role != access.RoleAdmin && role != access.RoleUser {
		return false
	}
	return status == StatusPending
}

// Mutability reports Editable for every field.
func Mutability(status Status, role access.Role) map[Field]bool {
	out := make(map[Field]bool, len(Fields))
	for _, f := range Fields {
		out[f] = Editable(status, role, f)
	}
	return out
}

// Approve is the only transition: pending to approved. Approving an
// approved trip leaves it unchanged.
func (s Status) Approve() (next Status, changed bool) {
	if s == StatusPending {
		return StatusApproved, true
	}
	return s, false
}
