package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/NaByeonggil/clinic-care-coordination/internal/workflow"
)

func listNotificationsHandler(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_actor", "no authenticated actor")
			return
		}

		limit, offset := pagination(r)

		notifications, err := wf.ListNotifications(r.Context(), act, limit, offset)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]NotificationResponse, 0, len(notifications))
		for _, n := range notifications {
			resp = append(resp, toNotificationResponse(n))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func markNotificationReadHandler(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_actor", "no authenticated actor")
			return
		}

		var req MarkReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.NotificationID == "all" {
			updated, err := wf.MarkAllNotificationsRead(r.Context(), act)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, MarkReadResponse{Updated: updated})
			return
		}

		id, err := uuid.Parse(req.NotificationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_notification_id", `notification_id must be a valid UUID or "all"`)
			return
		}

		if err := wf.MarkNotificationRead(r.Context(), act, id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MarkReadResponse{Updated: 1})
	}
}
