package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/winchzone/dashboard/internal/busy"
	"github.com/winchzone/dashboard/internal/customer"
	"github.com/winchzone/dashboard/internal/directory"
	"github.com/winchzone/dashboard/internal/http/envelope"
	"github.com/winchzone/dashboard/internal/identity"
	"github.com/winchzone/dashboard/internal/recovery"
	"github.com/winchzone/dashboard/internal/repo"
	"github.com/winchzone/dashboard/internal/trip"
	"github.com/winchzone/dashboard/internal/util"
)

// Provider error codes caused by the submitted form rather than the session.
var inputErrors = map[string]bool{
	identity.ErrWeakPassword.Code:  true,
	identity.ErrInvalidEmail.Code:  true,
	identity.ErrUserExists.Code:    true,
	identity.ErrUsernameTaken.Code: true,
}

// writeServiceError maps a domain failure to the error envelope. Messages of
// provider and domain errors are returned verbatim.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if verr, ok := util.AsValidation(err); ok {
		envelope.Error(w, envelope.CodeValidation, verr.Message, map[string]string{"field": verr.Field})
		return
	}

	var perr *identity.Error
	var initErr *recovery.InitError
	var tripPartial *trip.PartialError
	var customerPartial *customer.PartialError

	switch {
	case errors.As(err, &tripPartial):
		h.logger.Error().Err(err).Int64("trip_id", tripPartial.TripID).Msg("trip partially saved")
		envelope.Error(w, envelope.CodeInternal, tripPartial.Error(), map[string]any{
			"trip_id": tripPartial.TripID,
			"step":    tripPartial.Step,
		})
	case errors.As(err, &customerPartial):
		h.logger.Error().Err(err).Str("customer_id", customerPartial.CustomerID.String()).Msg("customer partially saved")
		envelope.Error(w, envelope.CodeInternal, customerPartial.Error(), map[string]any{
			"customer_id": customerPartial.CustomerID,
		})
	case errors.As(err, &initErr):
		envelope.Error(w, envelope.CodeAuth, initErr.Error(), nil)
	case errors.Is(err, recovery.ErrSessionMissing):
		envelope.Error(w, envelope.CodeAuth, recovery.MsgSessionMissing, nil)
	case errors.As(err, &perr):
		code := envelope.CodeAuth
		if inputErrors[perr.Code] {
			code = envelope.CodeValidation
		}
		envelope.Error(w, code, perr.Message, map[string]string{"reason": perr.Code})
	case errors.Is(err, busy.ErrBusy):
		envelope.Error(w, envelope.CodeBusy, busy.ErrBusy.Error(), nil)
	case errors.Is(err, trip.ErrTripLocked):
		envelope.Error(w, envelope.CodeTripLocked, trip.ErrTripLocked.Error(), nil)
	case errors.Is(err, trip.ErrApproveAdminOnly),
		errors.Is(err, trip.ErrCollectionAdminOnly),
		errors.Is(err, directory.ErrSelfDemotion):
		envelope.Error(w, envelope.CodeForbidden, err.Error(), nil)
	case errors.Is(err, trip.ErrUnknownReference):
		envelope.Error(w, envelope.CodeValidation, trip.ErrUnknownReference.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		envelope.Error(w, envelope.CodeNotFound, "Not found.", nil)
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
		envelope.Error(w, envelope.CodeInternal, fallback, nil)
	}
}

// guarded runs fn under the busy lock of key when one is configured.
func (h *Handler) guarded(r *http.Request, key string, fn func() error) error {
	if h.busy == nil {
		return fn()
	}
	return h.busy.Do(r.Context(), key, func(_ context.Context) error { return fn() })
}
