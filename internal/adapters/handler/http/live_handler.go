package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
)

// LiveSubscriber upgrades a request into a stream of one poll's events.
type LiveSubscriber interface {
	ServeWS(w http.ResponseWriter, r *http.Request, pollID uuid.UUID)
}

type LiveHandler struct {
	subscriber LiveSubscriber
}

func NewLiveHandler(subscriber LiveSubscriber) *LiveHandler {
	return &LiveHandler{subscriber: subscriber}
}

// Subscribe godoc
// @Summary      Streams poll events
// @Description  WebSocket stream of poll.created, vote.cast and poll.deleted events for one poll.
// @Tags         polls
// @Param        id   path  string  true  "Poll ID"
// @Failure      400  {object}  ErrorResponse
// @Router       /ws/polls/{id} [get]
func (h *LiveHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || pollID == uuid.Nil {
		respondError(w, r, domain.ErrInvalidPollID)
		return
	}

	h.subscriber.ServeWS(w, r, pollID)
}
