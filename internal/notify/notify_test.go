package notify

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/hasker/hasker/internal/models"
	"github.com/stretchr/testify/require"
)

type sentNotif struct {
	notif models.Notification
	to    int
}

type fakeNotifs struct {
	sent []sentNotif
}

func (f *fakeNotifs) Send(ctx context.Context, notif *models.Notification, toUserID int) error {
	f.sent = append(f.sent, sentNotif{*notif, toUserID})
	return nil
}
func (f *fakeNotifs) List(ctx context.Context, userID int) ([]models.NotifView, error) {
	return nil, nil
}
func (f *fakeNotifs) Delete(ctx context.Context, userID int, notifID int) error {
	return nil
}

type mail struct {
	to, subject, body string
}

type fakeMailer struct {
	mails []mail
	err   error
}

func (f *fakeMailer) Send(ctx context.Context, to string, subject string, body string) error {
	f.mails = append(f.mails, mail{to, subject, body})
	return f.err
}

func mockEvent() models.AnswerCreated {
	return models.AnswerCreated{
		Answer:              models.Answer{ID: 7, QuestionID: 3, AuthorID: 2, Message: "Press escape, then :q!"},
		AuthorName:          "pippo",
		QuestionTitle:       "How do I exit vim forever?",
		QuestionURL:         url.URL{Scheme: "http", Host: "example.com", Path: "/question/3"},
		QuestionAuthorID:    1,
		QuestionAuthorEmail: "asker@example.com",
	}
}

func TestAnswerCreated(t *testing.T) {
	notifs := &fakeNotifs{}
	mailer := &fakeMailer{}
	hook := NewHook(notifs, mailer)

	require.Nil(t, hook.AnswerCreated(context.Background(), mockEvent()))

	require.Len(t, notifs.sent, 1)
	require.Equal(t, 1, notifs.sent[0].to)
	require.Equal(t, "http://example.com/question/3", notifs.sent[0].notif.ActionURL.String())

	require.Len(t, mailer.mails, 1)
	require.Equal(t, "asker@example.com", mailer.mails[0].to)
	require.Equal(t, "New answer: How do I exit…", mailer.mails[0].subject)
	require.Contains(t, mailer.mails[0].body, "Press escape, then :q!")
	require.Contains(t, mailer.mails[0].body, "http://example.com/question/3")
}

func TestAnswerCreatedSelf(t *testing.T) {
	notifs := &fakeNotifs{}
	mailer := &fakeMailer{}
	ev := mockEvent()
	ev.Answer.AuthorID = ev.QuestionAuthorID

	require.Nil(t, NewHook(notifs, mailer).AnswerCreated(context.Background(), ev))
	require.Empty(t, notifs.sent)
	require.Empty(t, mailer.mails)
}

func TestAnswerCreatedMailFailure(t *testing.T) {
	notifs := &fakeNotifs{}
	mailer := &fakeMailer{err: errors.New("relay down")}

	err := NewHook(notifs, mailer).AnswerCreated(context.Background(), mockEvent())
	require.Error(t, err)
	require.Len(t, notifs.sent, 1)
}

func TestWithoutMailer(t *testing.T) {
	notifs := &fakeNotifs{}
	require.Nil(t, NewHook(notifs, nil).AnswerCreated(context.Background(), mockEvent()))
	require.Len(t, notifs.sent, 1)

	require.Nil(t, NewSMTPMailer(&models.EnvConfig{}))
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@hasker", "a@b.c", "Subj", "line1\nline2"))
	require.Contains(t, msg, "Subject: Subj\r\n")
	require.Contains(t, msg, "\r\n\r\nline1\r\nline2")
}
