package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hasker/hasker/internal/models"
	"github.com/rs/zerolog/hlog"
)

const (
	resultSuccess   = "Success"
	resultWrongData = "Wrong request data"
	resultNotFound  = "Not found"
	resultInternal  = "Internal server error"
)

type jsonResult struct {
	Result string `json:"result"`
}

// PostVote votes on the question in the url, or on one of its answers when
// instance_type is "a". Outcomes are reported in the body, always with 200.
func (routes *Routes) PostVote(w http.ResponseWriter, r *http.Request) {
	userH := GetUserH(r)
	if userH == nil {
		writeJSON(w, http.StatusOK, jsonResult{models.ErrUnauthorized.Error()})
		return
	}

	questionID, err1 := strconv.Atoi(chi.URLParam(r, "questionID"))
	increment, err2 := strconv.Atoi(r.FormValue("increment"))
	instanceID, err3 := strconv.Atoi(r.FormValue("instance_id"))
	kind := models.VotableKind(r.FormValue("instance_type"))
	direction := models.VoteDirection(increment)
	if err1 != nil || err2 != nil || err3 != nil || !direction.Valid() || !kind.Valid() {
		writeJSON(w, http.StatusOK, jsonResult{resultWrongData})
		return
	}

	ctx := r.Context()
	itemID := questionID
	if kind == models.VotableAnswer {
		answerQuestion, err := routes.db.AnswerQuestionID(ctx, instanceID)
		if errors.Is(err, models.ErrNotFound) || (err == nil && answerQuestion != questionID) {
			writeJSON(w, http.StatusOK, jsonResult{resultWrongData})
			return
		}
		if err != nil {
			internalResult(w, r, err, "Looking up voted answer")
			return
		}
		itemID = instanceID
	}

	outcome, err := routes.db.ApplyVote(ctx, userH, kind, itemID, direction)
	switch {
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrBadDirection),
		errors.Is(err, models.ErrBadVotableKind):
		writeJSON(w, http.StatusOK, jsonResult{resultWrongData})
		return
	case err != nil:
		internalResult(w, r, err, "Applying vote")
		return
	}
	routes.metrics.CountVote(kind, string(outcome))
	writeJSON(w, http.StatusOK, jsonResult{string(outcome)})
}

// internalResult logs err and reports the failure in the body. These
// endpoints answer 200 even then, callers only read "result".
func internalResult(w http.ResponseWriter, r *http.Request, err error, msg string) {
	hlog.FromRequest(r).Error().Err(err).Msg(msg)
	writeJSON(w, http.StatusOK, jsonResult{resultInternal})
}

// PostAcceptAnswer marks an answer as the correct one. Only the question
// author can do it; anyone else gets "Not found".
func (routes *Routes) PostAcceptAnswer(w http.ResponseWriter, r *http.Request) {
	userH := GetUserH(r)
	if userH == nil {
		writeJSON(w, http.StatusOK, jsonResult{models.ErrUnauthorized.Error()})
		return
	}
	questionID, err1 := strconv.Atoi(chi.URLParam(r, "questionID"))
	answerID, err2 := strconv.Atoi(chi.URLParam(r, "answerID"))
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusOK, jsonResult{resultNotFound})
		return
	}

	err := routes.db.AcceptAnswer(r.Context(), userH, questionID, answerID)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusOK, jsonResult{resultNotFound})
		return
	}
	if err != nil {
		internalResult(w, r, err, "Accepting answer")
		return
	}
	writeJSON(w, http.StatusOK, jsonResult{resultSuccess})
}
