package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hasker/hasker/internal/models"
	"github.com/rs/zerolog/hlog"
)

const tagSearchPrefix = "tag:"

type questionList struct {
	Page       Page
	Title      string
	Tag        *models.Tag
	Questions  []models.QuestionView
	Pagination models.Page
	Ordering   string
	// BaseURL is the listing address without the page parameter.
	BaseURL string
}

func (routes *Routes) GetIndex(w http.ResponseWriter, r *http.Request) AppError {
	page, err := routes.page(r)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	ordering := models.CleanOrdering(r.URL.Query().Get("ordering"), models.OrderByNewest, models.OrderByNewest, models.OrderByVotes)
	pagination := pageParam(r, models.QuestionsPerPage)

	questions, err := routes.db.ListQuestions(r.Context(), ordering, &pagination)
	if err != nil {
		return &ErrInternal{Cause: err, Message: "Can't list questions"}
	}
	routes.tmpls.RenderHTML(w, "index", questionList{
		Page:       page,
		Title:      "Questions",
		Questions:  questions,
		Pagination: pagination,
		Ordering:   ordering,
		BaseURL:    "/?ordering=" + url.QueryEscape(ordering),
	})
	return nil
}

// GetTag lists the questions of a tag. Unknown slugs give an empty list.
func (routes *Routes) GetTag(w http.ResponseWriter, r *http.Request) AppError {
	page, err := routes.page(r)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	slug := chi.URLParam(r, "slug")
	tag, err := routes.db.GetTagBySlug(r.Context(), slug)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return &ErrInternal{Cause: err}
	}
	pagination := pageParam(r, models.QuestionsPerPage)
	questions, err := routes.db.ListQuestionsByTag(r.Context(), slug, &pagination)
	if err != nil {
		return &ErrInternal{Cause: err, Message: "Can't list questions"}
	}

	title := "Tag: " + slug
	if tag != nil {
		title = "Tag: " + tag.Tag
	}
	routes.tmpls.RenderHTML(w, "index", questionList{
		Page:       page,
		Title:      title,
		Tag:        tag,
		Questions:  questions,
		Pagination: pagination,
		Ordering:   models.OrderByVotes,
		BaseURL:    "/tag/" + url.PathEscape(slug) + "?",
	})
	return nil
}

// GetSearch searches questions. "tag:<label>" jumps to the tag page instead.
func (routes *Routes) GetSearch(w http.ResponseWriter, r *http.Request) AppError {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if strings.HasPrefix(query, tagSearchPrefix) {
		label := strings.TrimPrefix(query, tagSearchPrefix)
		slug, err := routes.db.FindTagSlugByLabel(r.Context(), label)
		if errors.Is(err, models.ErrNotFound) {
			slug = label
		} else if err != nil {
			return &ErrInternal{Cause: err}
		}
		http.Redirect(w, r, "/tag/"+url.PathEscape(slug), http.StatusFound)
		return nil
	}

	page, err := routes.page(r)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	ordering := models.CleanOrdering(r.URL.Query().Get("ordering"), models.OrderByNewest, models.OrderByNewest, models.OrderByVotes)
	pagination := pageParam(r, models.QuestionsPerPage)
	questions, err := routes.db.SearchQuestions(r.Context(), query, ordering, &pagination)
	if err != nil {
		return &ErrInternal{Cause: err, Message: "Search failed"}
	}
	routes.tmpls.RenderHTML(w, "index", questionList{
		Page:       page,
		Title:      "Search results",
		Questions:  questions,
		Pagination: pagination,
		Ordering:   ordering,
		BaseURL:    fmt.Sprintf("/search?q=%s&ordering=%s", url.QueryEscape(query), url.QueryEscape(ordering)),
	})
	return nil
}

type askForm struct {
	Page     Page
	Question models.Question
	// One input per tag.
	Tags    []string
	MaxTags int
	Errors  models.FieldErrors
}

// tagInputs pads labels with empty inputs up to max.
func tagInputs(labels []string, max int) []string {
	inputs := append([]string{}, labels...)
	for len(inputs) < max {
		inputs = append(inputs, "")
	}
	return inputs
}

func (routes *Routes) GetAsk(w http.ResponseWriter, r *http.Request) AppError {
	page, err := routes.page(r)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	routes.tmpls.RenderHTML(w, "ask", askForm{
		Page:    page,
		Tags:    tagInputs(nil, routes.envConfig.MaxTags),
		MaxTags: routes.envConfig.MaxTags,
	})
	return nil
}

// PostAsk creates a question. Each tag label comes in its own "tags" field.
func (routes *Routes) PostAsk(w http.ResponseWriter, r *http.Request) AppError {
	if err := r.ParseForm(); err != nil {
		return &ErrBadRequest{Cause: err, Motivation: "Can't read the form"}
	}
	userH := GetUserH(r)
	q := &models.Question{
		Title:   r.PostForm.Get("title"),
		Message: r.PostForm.Get("message"),
	}
	tags := r.PostForm["tags"]

	q, err := routes.db.CreateQuestion(r.Context(), userH, q, tags)
	var fieldErrs models.FieldErrors
	if errors.As(err, &fieldErrs) || errors.Is(err, models.ErrTooManyTags) {
		if fieldErrs == nil {
			fieldErrs = models.FieldErrors{"tags": {err.Error()}}
		}
		page, err := routes.page(r)
		if err != nil {
			return &ErrInternal{Cause: err}
		}
		routes.tmpls.RenderHTMLStatus(w, http.StatusBadRequest, "ask", askForm{
			Page:     page,
			Question: models.Question{Title: r.FormValue("title"), Message: r.FormValue("message")},
			Tags:     tagInputs(tags, routes.envConfig.MaxTags),
			MaxTags:  routes.envConfig.MaxTags,
			Errors:   fieldErrs,
		})
		return nil
	}
	if err != nil {
		return &ErrInternal{Cause: err, Message: "Error creating question"}
	}
	http.Redirect(w, r, fmt.Sprintf("/question/%d", q.ID), http.StatusSeeOther)
	return nil
}

type questionDetail struct {
	Page       Page
	Question   *models.QuestionView
	Answers    []models.AnswerView
	Pagination models.Page
	// Votes of the logged user, by answer id.
	AnswerVotes  map[int]int
	QuestionVote int
	IsAuthor     bool
	Message      string
	Errors       models.FieldErrors
}

func (routes *Routes) questionDetail(r *http.Request) (*questionDetail, error) {
	q := GetQuestion(r)
	page, err := routes.page(r)
	if err != nil {
		return nil, err
	}
	pagination := pageParam(r, models.AnswersPerPage)
	answers, err := routes.db.ListAnswers(r.Context(), q.ID, "", &pagination)
	if err != nil {
		return nil, err
	}

	data := &questionDetail{
		Page:        page,
		Question:    q,
		Answers:     answers,
		Pagination:  pagination,
		AnswerVotes: map[int]int{},
	}
	if userH := GetUserH(r); userH != nil {
		data.IsAuthor = userH.ID() == q.AuthorID
		data.QuestionVote, err = userH.VoteOn(r.Context(), models.VotableQuestion, q.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range answers {
			data.AnswerVotes[a.ID], err = userH.VoteOn(r.Context(), models.VotableAnswer, a.ID)
			if err != nil {
				return nil, err
			}
		}
	}
	return data, nil
}

func (routes *Routes) GetQuestion(w http.ResponseWriter, r *http.Request) AppError {
	data, err := routes.questionDetail(r)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	routes.tmpls.RenderHTML(w, "question", data)
	return nil
}

// PostAnswer answers the question and goes back to its page.
func (routes *Routes) PostAnswer(w http.ResponseWriter, r *http.Request) AppError {
	q := GetQuestion(r)
	userH := GetUserH(r)
	message := r.FormValue("message")

	answer, err := routes.db.CreateAnswer(r.Context(), userH, q.ID, message)
	var fieldErrs models.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		data, err := routes.questionDetail(r)
		if err != nil {
			return &ErrInternal{Cause: err}
		}
		data.Message = message
		data.Errors = fieldErrs
		routes.tmpls.RenderHTMLStatus(w, http.StatusBadRequest, "question", data)
		return nil
	case errors.Is(err, models.ErrUnauthorized):
		return &ErrForbidden{Cause: err}
	case err != nil && answer != nil:
		// The answer is stored, only the notification failed.
		hlog.FromRequest(r).Warn().Err(err).Int("question_id", q.ID).Msg("Notifying question author")
	case err != nil:
		return &ErrInternal{Cause: err, Message: "Error creating answer"}
	}
	http.Redirect(w, r, fmt.Sprintf("/question/%d", q.ID), http.StatusSeeOther)
	return nil
}

type typeaheadItem struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (routes *Routes) GetTagTypeahead(w http.ResponseWriter, r *http.Request) AppError {
	labels, err := routes.db.TagTypeahead(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	items := make([]typeaheadItem, 0, len(labels))
	for _, l := range labels {
		items = append(items, typeaheadItem{Value: l, Label: l})
	}
	writeJSON(w, http.StatusOK, items)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
