package util

import "testing"

type customerForm struct {
	CR    string `validate:"omitempty,crno"`
	TaxID string `validate:"omitempty,taxid"`
	Email string `validate:"omitempty,contactemail"`
}

func checkField(t *testing.T, form customerForm) string {
	t.Helper()
	err := Check(form, nil)
	if err == nil {
		return ""
	}
	verr, ok := AsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	return verr.Field
}

func TestCommercialRegisterTag(t *testing.T) {
	for _, v := range []string{"1", "123456", "000042"} {
		if f := checkField(t, customerForm{CR: v}); f != "" {
			t.Fatalf("expected %q to be accepted, failed on %s", v, f)
		}
	}
	for _, v := range []string{"1234567", "12a4", " 123"} {
		if f := checkField(t, customerForm{CR: v}); f != "CR" {
			t.Fatalf("expected %q to be rejected", v)
		}
	}
}

func TestTaxIDTag(t *testing.T) {
	if f := checkField(t, customerForm{TaxID: "123-456-789"}); f != "" {
		t.Fatal("expected dashed tax id to be accepted")
	}
	for _, v := range []string{"123456789", "12-3456-789", "123-456-7890"} {
		if f := checkField(t, customerForm{TaxID: v}); f != "TaxID" {
			t.Fatalf("expected %q to be rejected", v)
		}
	}
}

func TestContactEmailTag(t *testing.T) {
	if f := checkField(t, customerForm{Email: "Ops.Team+tow@winch-zone.com"}); f != "" {
		t.Fatal("expected email to be accepted")
	}
	if f := checkField(t, customerForm{Email: "ops@localhost"}); f != "Email" {
		t.Fatal("expected email without tld to be rejected")
	}
}

func TestCheckFallsBackToGenericMessage(t *testing.T) {
	err := Check(customerForm{TaxID: "nope"}, nil)
	verr, ok := AsValidation(err)
	if !ok || verr.Message != "TaxID is invalid." {
		t.Fatalf("unexpected error %v", err)
	}
}

type sample struct {
	Date string `validate:"required,isodate"`
	Name string `validate:"notblank"`
	CR   string `validate:"omitempty,crno"`
}

func TestCheckReportsFirstFieldInOrder(t *testing.T) {
	messages := map[string]string{
		"Date": "Date is required.",
		"Name": "Name is required.",
		"CR":   "Commercial Register must be max 6 digits.",
	}

	err := Check(sample{Name: " ", CR: "1234567"}, messages)
	verr, ok := AsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Message != "Date is required." {
		t.Fatalf("unexpected message %q", verr.Message)
	}

	err = Check(sample{Date: "2026-02-30", Name: "x"}, messages)
	if verr, _ := AsValidation(err); verr == nil || verr.Field != "Date" {
		t.Fatalf("expected invalid calendar date to fail, got %v", err)
	}

	err = Check(sample{Date: "2026-02-03", Name: "x", CR: "1234567"}, messages)
	if verr, _ := AsValidation(err); verr == nil || verr.Message != messages["CR"] {
		t.Fatalf("expected commercial register failure, got %v", err)
	}

	err = Check(sample{Date: "2026-02-03", Name: " \t"}, messages)
	if verr, _ := AsValidation(err); verr == nil || verr.Field != "Name" {
		t.Fatalf("expected blank name to fail, got %v", err)
	}

	if err := Check(sample{Date: "2026-02-03", Name: "x"}, messages); err != nil {
		t.Fatalf("expected valid sample, got %v", err)
	}
}
