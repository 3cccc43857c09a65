package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	QuestionsPerPage  = 20
	AnswersPerPage    = 30
	TrendingCount     = 20
	TypeaheadLimit    = 7
	MaxPageNumber     = 100000
	MinMessageLen     = 5
	MinTitleLen       = 5
	MaxTitleLen       = 150
	MaxTagLen         = 64
	OrderByNewest     = "-date_created"
	OrderByOldest     = "date_created"
	OrderByVotes      = "-votes"
	OrderByLeastVotes = "votes"
)

type Tag struct {
	ID   int    `json:"id"`
	Tag  string `json:"tag"`
	Slug string `json:"slug"`
}

type Question struct {
	ID          int
	Title       string
	Message     string
	AuthorID    int `db:"author_id"`
	DateCreated time.Time
	Votes       int
}

type QuestionView struct {
	ID           int
	Title        string
	Message      string
	AuthorID     int    `db:"author_id"`
	AuthorName   string `db:"author_name"`
	DateCreated  time.Time
	Votes        int
	AnswersCount int `db:"answers_count"`
	Tags         []Tag
}

type Answer struct {
	ID          int
	QuestionID  int `db:"question_id"`
	Message     string
	AuthorID    int `db:"author_id"`
	DateCreated time.Time
	Votes       int
	Correct     bool
}

type AnswerView struct {
	Answer
	AuthorName string `db:"author_name"`
}

// Page is one page of a listing; Number starts from 1.
type Page struct {
	Number int
	Size   int
	Total  int
}

// NewPage clamps number to [1, MaxPageNumber], so Offset can't overflow.
// Pages past the last one are simply empty.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if number > MaxPageNumber {
		number = MaxPageNumber
	}
	return Page{Number: number, Size: size}
}
func (p Page) Offset() uint64 {
	return uint64((p.Number - 1) * p.Size)
}
func (p Page) Count() int {
	if p.Total == 0 {
		return 1
	}
	return (p.Total + p.Size - 1) / p.Size
}
func (p Page) HasNext() bool {
	return p.Number < p.Count()
}
func (p Page) HasPrev() bool {
	return p.Number > 1
}
func (p Page) Next() int {
	return p.Number + 1
}
func (p Page) Prev() int {
	return p.Number - 1
}

// CleanOrdering returns ordering if it is one of allowed, def otherwise.
func CleanOrdering(ordering, def string, allowed ...string) string {
	for _, a := range allowed {
		if ordering == a {
			return a
		}
	}
	return def
}

// CleanTagLabels trims labels and drops empty and repeated ones, keeping order.
func CleanTagLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	res := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		res = append(res, l)
	}
	return res
}

func ValidateQuestion(q *Question, tagLabels []string, maxTags int) FieldErrors {
	errs := FieldErrors{}
	q.Title = strings.TrimSpace(q.Title)
	switch n := utf8.RuneCountInString(q.Title); {
	case n < MinTitleLen:
		errs.Add("title", "Title is expected to contain at least 5 characters")
	case n > MaxTitleLen:
		errs.Add("title", "Title must contain at most 150 characters")
	}
	validateMessage(errs, q.Message)

	labels := CleanTagLabels(tagLabels)
	if len(labels) > maxTags {
		errs.Add("tags", TooManyTagsError{maxTags}.Error())
	}
	for _, l := range labels {
		if utf8.RuneCountInString(l) > MaxTagLen {
			errs.Add("tags", "Tag must contain at most 64 characters")
			break
		}
	}
	return errs
}

func ValidateAnswer(a *Answer) FieldErrors {
	errs := FieldErrors{}
	validateMessage(errs, a.Message)
	return errs
}

func validateMessage(errs FieldErrors, msg string) {
	if utf8.RuneCountInString(strings.TrimSpace(msg)) < MinMessageLen {
		errs.Add("message", "Message is expected to contain at least 5 characters")
	}
}
