package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/winchzone/dashboard/internal/trip"
)

func sample() []trip.Summary {
	return []trip.Summary{{
		ID:              42,
		TripDate:        "2026-03-14",
		CustomerName:    "Acme",
		ServiceName:     "Towing",
		VehicleName:     "Flatbed",
		PickupLocation:  "Riyadh",
		DropoffLocation: "Jeddah",
		PricePerTrip:    2500,
		PaymentName:     "Cash",
		Status:          trip.StatusApproved,
	}}
}

func TestRows(t *testing.T) {
	rows := Rows(sample())
	require.Len(t, rows, 1)
	assert.Equal(t, "14-03-26", rows[0].Date)
	assert.Equal(t, 2500, rows[0].Price)
	assert.Equal(t, "2,500", rows[0].PriceFormatted)
	assert.Equal(t, "approved", rows[0].Status)
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Rows(sample())))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Columns, got[0])
	assert.Equal(t, []string{"42", "14-03-26", "Acme", "Towing", "Flatbed", "Riyadh", "Jeddah", "2500", "2,500", "Cash", "approved"}, got[1])
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
