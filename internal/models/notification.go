package models

import (
	"context"
	"net/url"
)

const (
	NotifTypeAnswer = "answer"
)

type Notification struct {
	UserID    int
	NotifType string
	Title     string
	Text      string
	ActionURL url.URL `db:"action_url"`
}

type NotifView struct {
	ID        int
	NotifType string `db:"notif_type"`
	Title     string
	Text      string
	ActionURL string `db:"action_url"`
}

type NotificationService interface {
	Send(ctx context.Context, notif *Notification, toUserID int) error
	List(ctx context.Context, userID int) ([]NotifView, error)
	Delete(ctx context.Context, userID int, notifID int) error
}

// AnswerCreated is what the post-creation hook receives after an answer
// has been committed.
type AnswerCreated struct {
	Answer        Answer
	AuthorName    string
	QuestionTitle string
	QuestionURL   url.URL
	// Recipient of the notification: the question author.
	QuestionAuthorID    int
	QuestionAuthorEmail string
}

// AnswerHook is invoked only from the answer creation path, never from
// bulk updates such as accepting an answer.
type AnswerHook interface {
	AnswerCreated(ctx context.Context, ev AnswerCreated) error
}
