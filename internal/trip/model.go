package trip

import (
	"time"

	"github.com/google/uuid"
)

// Status is the approval state of a trip.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// Trip is one recorded towing job.
type Trip struct {
	ID              int64      `json:"id"`
	TripDate        string     `json:"trip_date"`
	Status          Status     `json:"status"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	ServiceID       int        `json:"service_id"`
	VehicleID       int        `json:"vehicle_id"`
	PickupLocation  string     `json:"pickup_location"`
	DropoffLocation string     `json:"dropoff_location"`
	PricePerTrip    int        `json:"price_per_trip"`
	PaymentID       int        `json:"payment_id"`
	CollectionID    *int       `json:"collection_id"`
	PickupPhotos    []string   `json:"pickup_photos"`
	DropoffPhotos   []string   `json:"dropoff_photos"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
}

// Summary is a trip joined with the names of its references, as listed in
// the pending and export views.
type Summary struct {
	ID              int64  `json:"id"`
	TripDate        string `json:"trip_date"`
	CustomerName    string `json:"customer"`
	ServiceName     string `json:"service"`
	VehicleName     string `json:"vehicle"`
	PickupLocation  string `json:"pickup_location"`
	DropoffLocation string `json:"dropoff_location"`
	PricePerTrip    int    `json:"price_per_trip"`
	PaymentName     string `json:"payment"`
	Status          Status `json:"status"`
}

// Filter narrows the export query. Empty fields do not filter.
type Filter struct {
	CustomerID *uuid.UUID
	From       string
	To         string
}

// NewTrip is a validated trip ready for insertion.
type NewTrip struct {
	TripDate        string
	CustomerID      uuid.UUID
	ServiceID       int
	VehicleID       int
	PickupLocation  string
	DropoffLocation string
	PricePerTrip    int
	PaymentID       int
	CreatedBy       uuid.UUID
}
