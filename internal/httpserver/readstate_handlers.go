package httpserver

import (
	"encoding/json"
	"net/http"

	"chirper/internal/service"
)

type readConversationRequest struct {
	MessageID int64 `json:"message_id"`
}

func handleReadConversation(readSvc *service.ReadStateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		convID, ok := conversationIDParam(w, r)
		if !ok {
			return
		}
		var req readConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		conv, err := readSvc.ReadConversation(r.Context(), convID, currentUser.ID, req.MessageID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func handleLeaveConversation(readSvc *service.ReadStateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		convID, ok := conversationIDParam(w, r)
		if !ok {
			return
		}
		conv, err := readSvc.LeaveConversation(r.Context(), convID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

type lastSeenRequest struct {
	MessageID int64 `json:"message_id"`
}

func handleUpdateLastSeen(readSvc *service.ReadStateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req lastSeenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		mark, err := readSvc.UpdateLastSeenMessage(r.Context(), currentUser.ID, req.MessageID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mark)
	}
}
