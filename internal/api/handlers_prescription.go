package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/NaByeonggil/clinic-care-coordination/internal/prescription"
	"github.com/NaByeonggil/clinic-care-coordination/internal/workflow"
)

func issuePrescriptionHandler(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_actor", "no authenticated actor")
			return
		}

		var req IssuePrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}

		items := make([]prescription.ItemInput, 0, len(req.Items))
		for _, it := range req.Items {
			medicationID, err := uuid.Parse(it.MedicationID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_medication_id", "medication_id must be a valid UUID")
				return
			}
			items = append(items, prescription.ItemInput{
				MedicationID: medicationID,
				Dosage:       it.Dosage,
				Frequency:    it.Frequency,
				Duration:     it.Duration,
				Quantity:     it.Quantity,
			})
		}

		p, err := wf.IssuePrescription(r.Context(), act, prescription.IssueInput{
			AppointmentID: appointmentID,
			Diagnosis:     req.Diagnosis,
			Items:         items,
			ValidityDays:  req.ValidityDays,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPrescriptionResponse(p))
	}
}

func getPrescriptionHandler(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_actor", "no authenticated actor")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		p, err := wf.GetPrescription(r.Context(), act, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPrescriptionResponse(p))
	}
}

func listPrescriptionsHandler(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_actor", "no authenticated actor")
			return
		}

		limit, offset := pagination(r)

		prescriptions, err := wf.ListPrescriptions(r.Context(), act, limit, offset)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]PrescriptionResponse, 0, len(prescriptions))
		for i := range prescriptions {
			resp = append(resp, toPrescriptionResponse(&prescriptions[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func candidatePharmaciesHandler(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_actor", "no authenticated actor")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		pharmacies, err := wf.CandidatePharmacies(r.Context(), act, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if pharmacies == nil {
			pharmacies = []uuid.UUID{}
		}

		writeJSON(w, http.StatusOK, CandidatePharmaciesResponse{PharmacyIDs: pharmacies})
	}
}

func routePrescriptionHandler(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_actor", "no authenticated actor")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		var req RoutePrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		pharmacyID, err := uuid.Parse(req.PharmacyID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pharmacy_id", "pharmacy_id must be a valid UUID")
			return
		}

		p, err := wf.RoutePrescription(r.Context(), act, id, pharmacyID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPrescriptionResponse(p))
	}
}

func dispensePrescriptionHandler(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_actor", "no authenticated actor")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}

		p, err := wf.DispensePrescription(r.Context(), act, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPrescriptionResponse(p))
	}
}
