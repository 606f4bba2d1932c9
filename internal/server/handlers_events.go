package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// handleEvents streams the user's generation events until the client leaves
// or the server shuts down. The first frame is always the connected event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	authID, err := requestUser(r)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if userID != authID {
		s.serviceError(w, r, &ErrForbidden{Message: "Cannot subscribe to another user's events"})
		return
	}

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	stream, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	sub := s.events.Subscribe(userID)
	defer s.events.Unsubscribe(sub)

	log := s.logger.With(zap.String("user_id", userID.String()))
	log.Debug("event stream opened")
	defer log.Debug("event stream closed")

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.shutdown:
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := stream.WriteEvent(e); err != nil {
				log.Debug("event stream write failed", zap.Error(err))
				return
			}
		case <-keepAlive.C:
			if err := stream.WriteKeepAlive(); err != nil {
				return
			}
		}
	}
}
