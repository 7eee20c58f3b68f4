// Package export renders trip summaries as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/winchzone/dashboard/internal/format"
	"github.com/winchzone/dashboard/internal/trip"
)

const (
	SheetName   = "Trips"
	FileName    = "trips.xlsx"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Columns is the header row.
var Columns = []string{
	"TripID", "Date", "Customer", "Service", "Vehicle", "Pickup",
	"Dropoff", "Price", "PriceFormatted", "Payment", "Status",
}

// Row is one exported trip.
type Row struct {
	TripID         int64  `json:"TripID"`
	Date           string `json:"Date"`
	Customer       string `json:"Customer"`
	Service        string `json:"Service"`
	Vehicle        string `json:"Vehicle"`
	Pickup         string `json:"Pickup"`
	Dropoff        string `json:"Dropoff"`
	Price          int    `json:"Price"`
	PriceFormatted string `json:"PriceFormatted"`
	Payment        string `json:"Payment"`
	Status         string `json:"Status"`
}

func (r Row) cells() []any {
	return []any{
		r.TripID, r.Date, r.Customer, r.Service, r.Vehicle, r.Pickup,
		r.Dropoff, r.Price, r.PriceFormatted, r.Payment, r.Status,
	}
}

// Rows formats summaries for export.
func Rows(trips []trip.Summary) []Row {
	out := make([]Row, 0, len(trips))
	for _, t := range trips {
		out = append(out, Row{
			TripID:         t.ID,
			Date:           format.Date(t.TripDate),
			Customer:       t.CustomerName,
			Service:        t.ServiceName,
			Vehicle:        t.VehicleName,
			Pickup:         t.PickupLocation,
			Dropoff:        t.DropoffLocation,
			Price:          t.PricePerTrip,
			PriceFormatted: format.Money(t.PricePerTrip),
			Payment:        t.PaymentName,
			Status:         string(t.Status),
		})
	}
	return out
}

// Write streams the workbook to w.
func Write(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return err
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, r.cells()); err != nil {
			return fmt.Errorf("write trip %d: %w", r.TripID, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
