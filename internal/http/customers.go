package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/winchzone/dashboard/internal/customer"
	"github.com/winchzone/dashboard/internal/http/envelope"
	httpmiddleware "github.com/winchzone/dashboard/internal/http/middleware"
	"github.com/winchzone/dashboard/internal/storage"
)

const (
	MsgCustomerSaved = "Customer saved."
	MsgSaved         = "Saved."

	maxUploadMemory = 32 << 20
)

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.customers.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "could not load customers")
		return
	}
	envelope.JSON(w, http.StatusOK, list)
}

// CreateCustomer takes a multipart form with the customer fields and up to
// three documents.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		envelope.Error(w, envelope.CodeValidation, "invalid form", nil)
		return
	}

	fields := customer.Fields{
		Name:                 r.FormValue("name"),
		ContactName:          r.FormValue("contact_name"),
		Telephone:            r.FormValue("telephone"),
		Email:                r.FormValue("email"),
		CommercialRegisterNo: r.FormValue("commercial_register_no"),
		TaxIDNo:              r.FormValue("tax_id_no"),
	}

	var uploads customer.Uploads
	var err error
	if uploads.CommercialRegister, err = formFile(r, "commercial_register"); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid commercial register file", nil)
		return
	}
	if uploads.TaxID, err = formFile(r, "tax_id"); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid tax id file", nil)
		return
	}
	if uploads.PriceList, err = formFile(r, "price_list"); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid price list file", nil)
		return
	}

	actor, _ := httpmiddleware.GetActor(r.Context())
	var id uuid.UUID
	err = h.guarded(r, "customer:create:"+actor.UserID.String(), func() error {
		var err error
		id, err = h.customers.Create(r.Context(), actor, fields, uploads)
		return err
	})
	if err != nil {
		h.writeServiceError(w, r, err, "could not save customer")
		return
	}
	envelope.JSON(w, http.StatusCreated, map[string]any{"id": id, "message": MsgCustomerSaved})
}

// UpdateCustomer applies the members present in the body; omitted members
// keep their stored value.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid customer id", nil)
		return
	}

	var patch customer.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid JSON", nil)
		return
	}

	actor, _ := httpmiddleware.GetActor(r.Context())
	err = h.guarded(r, "customer:"+id.String(), func() error {
		return h.customers.Update(r.Context(), actor, id, patch)
	})
	if err != nil {
		h.writeServiceError(w, r, err, "could not save customer")
		return
	}
	envelope.JSON(w, http.StatusOK, map[string]any{"id": id, "message": MsgSaved})
}

// formFile reads an optional single file field.
func formFile(r *http.Request, field string) (*storage.File, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil
	}
	f, err := readFile(r.MultipartForm.File[field][0])
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// formFiles reads every file of a repeated field in submission order.
func formFiles(r *http.Request, field string) ([]storage.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	out := make([]storage.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func readFile(fh *multipart.FileHeader) (storage.File, error) {
	src, err := fh.Open()
	if err != nil {
		return storage.File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return storage.File{}, err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return storage.File{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}
