package customer

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a business the towing jobs are billed to.
type Customer struct {
	ID                        uuid.UUID `json:"id"`
	Name                      string    `json:"name"`
	ContactName               *string   `json:"contact_name"`
	Telephone                 *string   `json:"telephone"`
	Email                     *string   `json:"email"`
	CommercialRegisterNo      *string   `json:"commercial_register_no"`
	TaxIDNo                   *string   `json:"tax_id_no"`
	CommercialRegisterCopyURL *string   `json:"commercial_register_copy_url"`
	TaxIDCopyURL              *string   `json:"tax_id_copy_url"`
	PriceListCopyURL          *string   `json:"price_list_copy_url"`
	CreatedBy                 uuid.UUID `json:"created_by"`
	CreatedAt                 time.Time `json:"created_at"`
}

// Fields are the attributes of a new customer. Empty strings are stored as
// null.
type Fields struct {
	Name                 string `json:"name"`
	ContactName          string `json:"contact_name"`
	Telephone            string `json:"telephone"`
	Email                string `json:"email"`
	CommercialRegisterNo string `json:"commercial_register_no"`
	TaxIDNo              string `json:"tax_id_no"`
}

// Patch is a partial edit of a customer. Nil members are left unchanged,
// an empty string clears an optional field, and a blank name keeps the
// current one.
type Patch struct {
	Name                 *string `json:"name"`
	ContactName          *string `json:"contact_name"`
	Telephone            *string `json:"telephone"`
	Email                *string `json:"email"`
	CommercialRegisterNo *string `json:"commercial_register_no"`
	TaxIDNo              *string `json:"tax_id_no"`
}

// DocKind names one of the three customer documents.
type DocKind string

const (
	DocCommercialRegister DocKind = "commercial_register"
	DocTaxID              DocKind = "tax_id"
	DocPriceList          DocKind = "price_list"
)

// Docs holds the public URLs of uploaded documents. Nil members were not
// uploaded.
type Docs struct {
	CommercialRegister *string
	TaxID              *string
	PriceList          *string
}

func (d Docs) empty() bool {
	return d.CommercialRegister == nil && d.TaxID == nil && d.PriceList == nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
