package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

type PollHandler struct {
	service ports.PollService
}

func NewPollHandler(service ports.PollService) *PollHandler {
	return &PollHandler{
		service: service,
	}
}

type createPollRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Options     []string   `json:"options"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

type voteRequest struct {
	PollID   string `json:"pollId"`
	OptionID string `json:"optionId"`
}

// ListPolls godoc
// @Summary      Lists every poll
// @Description  Newest first, with options, vote counts and whether the poll still accepts votes.
// @Tags         polls
// @Produce      json
// @Success      200  {array}  domain.Poll
// @Router       /api/polls [get]
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.service.ListPolls(r.Context())))
}

// ListMyPolls godoc
// @Summary      Lists the polls created by the authenticated user
// @Tags         polls
// @Produce      json
// @Success      200  {array}  domain.Poll
// @Failure      401  {object}  ErrorResponse
// @Router       /api/polls/mine [get]
func (h *PollHandler) ListMyPolls(w http.ResponseWriter, r *http.Request) {
	polls, err := h.service.ListMyPolls(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(polls))
}

// GetPoll godoc
// @Summary      Gets a poll
// @Tags         polls
// @Produce      json
// @Param        id   path      string  true  "Poll ID"
// @Success      200  {object}  domain.Poll
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/polls/{id} [get]
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.service.GetPoll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

// CreatePoll godoc
// @Summary      Creates a poll
// @Description  Requires a title of at least 5 characters and 2 non-empty options. expiresAt is optional and must be in the future.
// @Tags         polls
// @Accept       json
// @Produce      json
// @Param        poll  body      createPollRequest  true  "Poll"
// @Success      201   {object}  domain.Poll
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Router       /api/polls [post]
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	poll, err := h.service.Create(r.Context(), IdentityFrom(r.Context()), ports.CreatePollInput{
		Title:       req.Title,
		Description: req.Description,
		Options:     req.Options,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, poll)
}

// Vote godoc
// @Summary      Casts a vote
// @Description  Adds one vote to the option. Closed polls reject votes.
// @Tags         polls
// @Accept       json
// @Produce      json
// @Param        vote  body      voteRequest  true  "Vote"
// @Success      200   {object}  okResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /api/polls/vote [post]
func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.service.Vote(r.Context(), IdentityFrom(r.Context()), ports.VoteInput{
		PollID:   req.PollID,
		OptionID: req.OptionID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// DeletePoll godoc
// @Summary      Deletes a poll
// @Description  Only the creator may delete a poll.
// @Tags         polls
// @Produce      json
// @Param        id   path      string  true  "Poll ID"
// @Success      200  {object}  okResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/polls/{id} [delete]
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil(polls []*domain.Poll) []*domain.Poll {
	if polls == nil {
		return []*domain.Poll{}
	}
	return polls
}
