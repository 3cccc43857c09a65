package routes

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hasker/hasker/internal/models"
)

var apiOrderings = []string{
	models.OrderByNewest,
	models.OrderByOldest,
	models.OrderByVotes,
	models.OrderByLeastVotes,
}

func (routes *Routes) APIRouter(r chi.Router) {
	r.Use(middleware.StripSlashes)
	r.Post("/token", routes.PostToken)

	r.Group(func(r chi.Router) {
		r.Use(routes.APIAuth)
		r.Get("/", routes.GetAPIRoot)
		r.Get("/questions", routes.GetAPIQuestions)
		r.Get("/questions/trending-questions", routes.GetAPITrending)
		r.Get("/questions/{questionID}", routes.GetAPIQuestion)
		r.Get("/questions/{questionID}/answers", routes.GetAPIAnswers)
		r.Get("/questions/{questionID}/tags", routes.GetAPIQuestionTags)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apiDetail{"Not found."})
	})
}

type apiQuestion struct {
	ID          int       `json:"id"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	DateCreated time.Time `json:"date_created"`
	Votes       int       `json:"votes"`
	URL         string    `json:"url"`
	HasTags     bool      `json:"has_tags"`
	TagsURL     string    `json:"tags_url"`
	HasAnswers  bool      `json:"has_answers"`
	AnswersURL  string    `json:"answers_url"`
}

type apiAnswer struct {
	ID          int       `json:"id"`
	Author      string    `json:"author"`
	Message     string    `json:"message"`
	DateCreated time.Time `json:"date_created"`
	Votes       int       `json:"votes"`
	Correct     bool      `json:"correct"`
}

type apiPage struct {
	Count     int         `json:"count"`
	PageCount int         `json:"page_count"`
	Next      *string     `json:"next"`
	Previous  *string     `json:"previous"`
	Results   interface{} `json:"results"`
}

// absURL builds an absolute url on the host the request was sent to.
func absURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: path}
	return u.String()
}

func toAPIQuestion(r *http.Request, q models.QuestionView) apiQuestion {
	base := fmt.Sprintf("/api/questions/%d", q.ID)
	return apiQuestion{
		ID:          q.ID,
		Author:      q.AuthorName,
		Title:       q.Title,
		Message:     q.Message,
		DateCreated: q.DateCreated,
		Votes:       q.Votes,
		URL:         absURL(r, base+"/"),
		HasTags:     len(q.Tags) > 0,
		TagsURL:     absURL(r, base+"/tags/"),
		HasAnswers:  q.AnswersCount > 0,
		AnswersURL:  absURL(r, base+"/answers/"),
	}
}

func toAPIQuestions(r *http.Request, questions []models.QuestionView) []apiQuestion {
	res := make([]apiQuestion, 0, len(questions))
	for _, q := range questions {
		res = append(res, toAPIQuestion(r, q))
	}
	return res
}

// apiPageParam reads ?page=. A malformed value is reported as not ok.
func apiPageParam(r *http.Request, size int) (models.Page, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return models.NewPage(1, size), true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return models.Page{}, false
	}
	return models.NewPage(n, size), true
}

func pageLink(r *http.Request, number int) *string {
	u := url.URL{Path: r.URL.Path}
	q := r.URL.Query()
	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u.RawQuery = q.Encode()
	s := absURL(r, u.Path)
	if u.RawQuery != "" {
		s += "?" + u.RawQuery
	}
	return &s
}

func newAPIPage(r *http.Request, page models.Page, results interface{}) apiPage {
	res := apiPage{
		Count:     page.Total,
		PageCount: page.Count(),
		Results:   results,
	}
	if page.HasNext() {
		res.Next = pageLink(r, page.Next())
	}
	if page.HasPrev() {
		res.Previous = pageLink(r, page.Prev())
	}
	return res
}

func invalidPage(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, apiDetail{"Invalid page."})
}

func (routes *Routes) GetAPIRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"questions":          absURL(r, "/api/questions/"),
		"trending-questions": absURL(r, "/api/questions/trending-questions/"),
	})
}

// GetAPIQuestions lists questions, filtered by ?search= when given.
func (routes *Routes) GetAPIQuestions(w http.ResponseWriter, r *http.Request) {
	page, ok := apiPageParam(r, models.QuestionsPerPage)
	if !ok {
		invalidPage(w)
		return
	}
	query := r.URL.Query()
	ordering := models.CleanOrdering(query.Get("ordering"), models.OrderByNewest, apiOrderings...)

	questions, err := routes.db.SearchQuestions(r.Context(), query.Get("search"), ordering, &page)
	if err != nil {
		routes.apiInternal(w, r, err)
		return
	}
	if page.Number > page.Count() {
		invalidPage(w)
		return
	}
	writeJSON(w, http.StatusOK, newAPIPage(r, page, toAPIQuestions(r, questions)))
}

func (routes *Routes) GetAPITrending(w http.ResponseWriter, r *http.Request) {
	questions, err := routes.db.Trending(r.Context())
	if err != nil {
		routes.apiInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIQuestions(r, questions))
}

func (routes *Routes) apiQuestionID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "questionID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, apiDetail{"Not found."})
		return 0, false
	}
	return id, true
}

func (routes *Routes) GetAPIQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := routes.apiQuestionID(w, r)
	if !ok {
		return
	}
	q, err := routes.db.ReadQuestion(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiDetail{"Not found."})
		return
	}
	if err != nil {
		routes.apiInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIQuestion(r, *q))
}

func (routes *Routes) GetAPIAnswers(w http.ResponseWriter, r *http.Request) {
	id, ok := routes.apiQuestionID(w, r)
	if !ok {
		return
	}
	page, ok := apiPageParam(r, models.AnswersPerPage)
	if !ok {
		invalidPage(w)
		return
	}
	ordering := models.CleanOrdering(r.URL.Query().Get("ordering"), models.OrderByNewest, apiOrderings...)

	answers, err := routes.db.ListAnswers(r.Context(), id, ordering, &page)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiDetail{"Question not found."})
		return
	}
	if err != nil {
		routes.apiInternal(w, r, err)
		return
	}
	if page.Number > page.Count() {
		invalidPage(w)
		return
	}

	results := make([]apiAnswer, 0, len(answers))
	for _, a := range answers {
		results = append(results, apiAnswer{
			ID:          a.ID,
			Author:      a.AuthorName,
			Message:     a.Message,
			DateCreated: a.DateCreated,
			Votes:       a.Votes,
			Correct:     a.Correct,
		})
	}
	writeJSON(w, http.StatusOK, newAPIPage(r, page, results))
}

func (routes *Routes) GetAPIQuestionTags(w http.ResponseWriter, r *http.Request) {
	id, ok := routes.apiQuestionID(w, r)
	if !ok {
		return
	}
	tags, err := routes.db.ListQuestionTags(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiDetail{"Question not found."})
		return
	}
	if err != nil {
		routes.apiInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
