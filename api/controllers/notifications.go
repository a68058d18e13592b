package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jkariuki/nyumbani-backend/api/responses"
	"github.com/jkariuki/nyumbani-backend/api/validators"
	"github.com/jkariuki/nyumbani-backend/internal/notifications"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

type customSMSRequest struct {
	TenantIDs []uuid.UUID `json:"tenant_ids" validate:"required,min=1"`
	Message   string      `json:"message" validate:"required"`
}

// NotificationSendCustom texts an arbitrary message to the listed tenants.
// Tenants outside the landlord's portfolio are reported failed, not messaged.
func NotificationSendCustom(svc *notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload customSMSRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := svc.SendCustom(r.Context(), landlordID, payload.TenantIDs, payload.Message)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, results)
	}
}

type reminderRequest struct {
	TenantIDs []uuid.UUID `json:"tenant_ids" validate:"required,min=1"`
	DueDate   *time.Time  `json:"due_date"`
}

// NotificationSendReminders texts rent reminders to the listed tenants. The
// due date defaults to the configured rent due day of the current month.
func NotificationSendReminders(svc *notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reminderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dueDate := time.Time{}
		if payload.DueDate != nil {
			dueDate = *payload.DueDate
		}

		results, err := svc.SendReminders(r.Context(), landlordID, payload.TenantIDs, dueDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, results)
	}
}

type bulkReminderRequest struct {
	PropertyID *uuid.UUID `json:"property_id"`
	DueDate    *time.Time `json:"due_date"`
}

// NotificationSendBulkReminders texts reminders to every active tenant,
// optionally scoped to one property.
func NotificationSendBulkReminders(svc *notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bulkReminderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dueDate := time.Time{}
		if payload.DueDate != nil {
			dueDate = *payload.DueDate
		}

		results, err := svc.SendBulkReminders(r.Context(), landlordID, payload.PropertyID, dueDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, results)
	}
}

// NotificationSendOverdueNotices texts overdue notices to active tenants who
// have not completed payment for the current month past the due day.
func NotificationSendOverdueNotices(svc *notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := svc.SendOverdueNotices(r.Context(), landlordID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, results)
	}
}
