package customer

import (
	"strings"

	"github.com/winchzone/dashboard/internal/util"
)

const (
	msgNameRequired = "Name is required."
	msgCR           = "Commercial Register must be max 6 digits."
	msgTaxID        = "Tax ID must be ###-###-###."
	msgEmail        = "Email is invalid."
	msgTelephone    = "Telephone must be 7 to 20 characters."
)

type createForm struct {
	Name                 string `validate:"notblank"`
	CommercialRegisterNo string `validate:"omitempty,crno"`
	TaxIDNo              string `validate:"omitempty,taxid"`
}

var createMessages = map[string]string{
	"Name":                 msgNameRequired,
	"CommercialRegisterNo": msgCR,
	"TaxIDNo":              msgTaxID,
}

// ValidateNew checks a new customer and returns the trimmed fields.
func ValidateNew(f Fields) (Fields, error) {
	if err := util.Check(createForm{
		Name:                 f.Name,
		CommercialRegisterNo: f.CommercialRegisterNo,
		TaxIDNo:              f.TaxIDNo,
	}, createMessages); err != nil {
		return Fields{}, err
	}
	return Fields{
		Name:                 strings.TrimSpace(f.Name),
		ContactName:          strings.TrimSpace(f.ContactName),
		Telephone:            strings.TrimSpace(f.Telephone),
		Email:                strings.TrimSpace(f.Email),
		CommercialRegisterNo: f.CommercialRegisterNo,
		TaxIDNo:              f.TaxIDNo,
	}, nil
}

type updateForm struct {
	CommercialRegisterNo string `validate:"omitempty,crno"`
	TaxIDNo              string `validate:"omitempty,taxid"`
	Email                string `validate:"omitempty,contactemail"`
	Telephone            string `validate:"omitempty,min=7,max=20"`
}

var updateMessages = map[string]string{
	"CommercialRegisterNo": msgCR,
	"TaxIDNo":              msgTaxID,
	"Email":                msgEmail,
	"Telephone":            msgTelephone,
}

// ValidateUpdate checks the set members of an edit and trims them. A blank
// name is dropped from the patch.
func ValidateUpdate(p Patch) (Patch, error) {
	if err := util.Check(updateForm{
		CommercialRegisterNo: deref(p.CommercialRegisterNo),
		TaxIDNo:              deref(p.TaxIDNo),
		Email:                deref(p.Email),
		Telephone:            deref(p.Telephone),
	}, updateMessages); err != nil {
		return Patch{}, err
	}
	for _, field := range []**string{&p.Name, &p.ContactName, &p.Telephone, &p.Email} {
		if *field != nil {
			v := strings.TrimSpace(**field)
			*field = &v
		}
	}
	if p.Name != nil && *p.Name == "" {
		p.Name = nil
	}
	return p, nil
}
