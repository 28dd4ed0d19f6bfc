package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NaByeonggil/clinic-care-coordination/internal/appointment"
	"github.com/NaByeonggil/clinic-care-coordination/internal/catalog"
	"github.com/NaByeonggil/clinic-care-coordination/internal/notification"
	"github.com/NaByeonggil/clinic-care-coordination/internal/prescription"
	"github.com/NaByeonggil/clinic-care-coordination/internal/workflow"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the workflow error taxonomy onto HTTP statuses.
// Role-mismatch, invalid-transition and precondition failures each keep
// their own code so the surfaced message matches the caller's role.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	// not found
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, prescription.ErrPrescriptionNotFound):
		writeError(w, http.StatusNotFound, "prescription_not_found", err.Error())
	case errors.Is(err, notification.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "notification_not_found", err.Error())
	case errors.Is(err, catalog.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, catalog.ErrMedicationNotFound):
		writeError(w, http.StatusNotFound, "medication_not_found", err.Error())

	// role / ownership
	case errors.Is(err, appointment.ErrNotPatient),
		errors.Is(err, appointment.ErrNotAppointmentDoctor),
		errors.Is(err, appointment.ErrNotAppointmentParty),
		errors.Is(err, prescription.ErrNotDoctor),
		errors.Is(err, prescription.ErrNotAppointmentDoctor),
		errors.Is(err, prescription.ErrNotPrescriptionOwner),
		errors.Is(err, prescription.ErrNotRoutedPharmacy):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())

	// state conflicts (including lost races)
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, prescription.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrTooEarly):
		writeError(w, http.StatusConflict, "too_early", err.Error())
	case errors.Is(err, prescription.ErrDuplicatePrescription):
		writeError(w, http.StatusConflict, "duplicate_prescription", err.Error())
	case errors.Is(err, prescription.ErrExpired):
		writeError(w, http.StatusConflict, "prescription_expired", err.Error())
	case errors.Is(err, workflow.ErrPharmacyOutOfStock):
		writeError(w, http.StatusConflict, "pharmacy_out_of_stock", err.Error())

	// precondition failures on input
	case errors.Is(err, appointment.ErrInvalidSlot):
		writeError(w, http.StatusUnprocessableEntity, "invalid_slot", err.Error())
	case errors.Is(err, appointment.ErrProviderUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "provider_unavailable", err.Error())
	case errors.Is(err, appointment.ErrMissingRemoteChannel):
		writeError(w, http.StatusUnprocessableEntity, "missing_remote_channel", err.Error())
	case errors.Is(err, prescription.ErrNoItems),
		errors.Is(err, prescription.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, "invalid_line_items", err.Error())
	case errors.Is(err, prescription.ErrAppointmentNotReady),
		errors.Is(err, prescription.ErrAppointmentUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "appointment_not_ready", err.Error())

	default:
		// Infrastructure failure: distinct from the domain taxonomy,
		// safe to retry thanks to the conditional-update discipline.
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error, please retry")
	}
}
