package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sponnect/sponnect/internal/domain/notification"
)

// sseEndpoint streams negotiation, progress and payment events addressed to
// the caller and to the caller's role group.
func (s *Server) sseEndpoint(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	userID := actor.ID.String()
	clientID := streamClientID(userID, r.URL.Query().Get("client_id"))
	client := notification.NewSSEClient(clientID, &userID, []string{notification.RoleGroup(string(actor.Role))})
	s.sseHub.Register(client)
	defer s.sseHub.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case msg, open := <-client.MessageChan:
			if !open || msg == nil {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warn().Err(err).Str("clientId", clientID).Msg("sse marshal failed")
				continue
			}
			_, _ = w.Write([]byte("event: " + msg.Event + "\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// streamClientID scopes a caller-supplied stream ID to the caller so one user
// can never take over another user's stream.
func streamClientID(userID, requested string) string {
	if requested == "" {
		requested = uuid.NewString()
	}
	return userID + ":" + requested
}
