package controllers

import (
	"net/http"
	"strings"

	"github.com/jkariuki/nyumbani-backend/api/responses"
	"github.com/jkariuki/nyumbani-backend/api/validators"
	"github.com/jkariuki/nyumbani-backend/internal/apartments"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

// ApartmentCreate adds a unit under one of the landlord's properties.
func ApartmentCreate(svc *apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "apartment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload apartments.CreateApartmentInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apartment, err := svc.Create(r.Context(), landlordID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, apartment)
	}
}

// ApartmentList returns the units of one property, optionally narrowed by
// a ?status= query.
func ApartmentList(svc *apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "apartment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		propertyID, err := pathUUID(r, "propertyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.ApartmentStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseApartmentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		units, err := svc.ListByProperty(r.Context(), landlordID, propertyID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, units)
	}
}

// ApartmentDetail returns one unit.
func ApartmentDetail(svc *apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "apartment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apartmentID, err := pathUUID(r, "apartmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apartment, err := svc.Get(r.Context(), landlordID, apartmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, apartment)
	}
}

// ApartmentUpdate adjusts the mutable fields of a unit.
func ApartmentUpdate(svc *apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "apartment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apartmentID, err := pathUUID(r, "apartmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload apartments.UpdateApartmentInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apartment, err := svc.Update(r.Context(), landlordID, apartmentID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, apartment)
	}
}

// ApartmentDelete removes a unit that is not occupied.
func ApartmentDelete(svc *apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "apartment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apartmentID, err := pathUUID(r, "apartmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), landlordID, apartmentID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
