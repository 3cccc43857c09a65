package db

import (
	"context"
	"fmt"
	"net/url"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/hasker/hasker/internal/models"
)

var answerOrderings = map[string]string{
	models.OrderByNewest:     "a.date_created DESC",
	models.OrderByOldest:     "a.date_created ASC",
	models.OrderByVotes:      "a.votes DESC, a.date_created DESC",
	models.OrderByLeastVotes: "a.votes ASC, a.date_created DESC",
}

// QuestionURL is the absolute address of a question page.
func (sdb *SharedDB) QuestionURL(questionID int) url.URL {
	u := url.URL{Path: fmt.Sprintf("/question/%d", questionID)}
	if sdb.config != nil && sdb.config.SiteDomain != "" {
		u.Scheme = "http"
		u.Host = sdb.config.SiteDomain
	}
	return u
}

// CreateAnswer stores an answer and, once committed, runs the answer hook.
// A failing hook doesn't undo the answer: both the answer and the hook error
// are returned.
func (sdb *SharedDB) CreateAnswer(ctx context.Context, author *UserH, questionID int, message string) (*models.Answer, error) {
	if author == nil {
		return nil, models.ErrUnauthorized
	}
	answer := &models.Answer{QuestionID: questionID, Message: message, AuthorID: author.id}
	if errs := models.ValidateAnswer(answer); !errs.Empty() {
		return nil, errs
	}

	var ev models.AnswerCreated
	err := execTx(ctx, sdb.db, func(ctx context.Context, tx DBTX) error {
		sql, args, _ := psql.
			Select("q.title", "q.author_id", "u.email").
			From("questions q").
			Join("users u ON u.id = q.author_id").
			Where(sq.Eq{"q.id": questionID}).
			ToSql()
		err := tx.QueryRow(ctx, sql, args...).Scan(&ev.QuestionTitle, &ev.QuestionAuthorID, &ev.QuestionAuthorEmail)
		if err != nil {
			return notFound(err)
		}

		sql, args, _ = psql.
			Insert("answers").
			Columns("question_id", "message", "author_id").
			Values(answer.QuestionID, answer.Message, answer.AuthorID).
			Suffix("RETURNING id, date_created, votes, correct").
			ToSql()
		err = tx.QueryRow(ctx, sql, args...).Scan(&answer.ID, &answer.DateCreated, &answer.Votes, &answer.Correct)
		if isForeignKeyViolation(err) {
			return models.ErrInvalidReference
		}
		if err != nil {
			return err
		}

		user, err := readUser(ctx, tx, author.id)
		if err != nil {
			return err
		}
		ev.AuthorName = user.Username
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sdb.answerHook == nil {
		return answer, nil
	}
	ev.Answer = *answer
	ev.QuestionURL = sdb.QuestionURL(questionID)
	if err := sdb.answerHook.AnswerCreated(ctx, ev); err != nil {
		return answer, fmt.Errorf("answer hook: %w", err)
	}
	return answer, nil
}

// ListAnswers returns one page of answers of a question, the accepted one first.
// An unknown ordering falls back to the default one.
func (sdb *SharedDB) ListAnswers(ctx context.Context, questionID int, ordering string, page *models.Page) ([]models.AnswerView, error) {
	if err := questionExists(ctx, sdb.db, questionID); err != nil {
		return nil, err
	}

	orderBy := []string{"a.correct DESC", "a.votes DESC", "a.date_created DESC"}
	if o, ok := answerOrderings[ordering]; ok {
		orderBy = []string{o}
	}

	sql, args, _ := psql.
		Select("COUNT(*)").
		From("answers").
		Where(sq.Eq{"question_id": questionID}).
		ToSql()
	if err := sdb.db.QueryRow(ctx, sql, args...).Scan(&page.Total); err != nil {
		return nil, err
	}

	sql, args, _ = psql.
		Select(
			"a.id",
			"a.question_id",
			"a.message",
			"a.author_id",
			"a.date_created",
			"a.votes",
			"a.correct",
			"u.username AS author_name",
		).
		From("answers a").
		Join("users u ON u.id = a.author_id").
		Where(sq.Eq{"a.question_id": questionID}).
		OrderBy(append(orderBy, "a.id")...).
		Limit(uint64(page.Size)).
		Offset(page.Offset()).
		ToSql()

	answers := []models.AnswerView{}
	if err := pgxscan.Select(ctx, sdb.db, &answers, sql, args...); err != nil {
		return nil, err
	}
	return answers, nil
}

// AcceptAnswer marks answerID as the only correct answer of a question
// written by user. It's a plain bulk update: no hooks run.
func (sdb *SharedDB) AcceptAnswer(ctx context.Context, user *UserH, questionID, answerID int) error {
	if user == nil {
		return models.ErrUnauthorized
	}
	return execTx(ctx, sdb.db, func(ctx context.Context, tx DBTX) error {
		if err := checkQuestionAuthor(ctx, tx, questionID, user.id); err != nil {
			return err
		}

		sql, args, _ := psql.
			Select("1").
			From("answers").
			Where(sq.Eq{"id": answerID, "question_id": questionID}).
			ToSql()
		var one int
		if err := tx.QueryRow(ctx, sql, args...).Scan(&one); err != nil {
			return notFound(err)
		}

		sql, args, _ = psql.
			Update("answers").
			Set("correct", sq.Expr("(id = ?)", answerID)).
			Where(sq.Eq{"question_id": questionID}).
			ToSql()
		_, err := tx.Exec(ctx, sql, args...)
		return err
	})
}

// AnswerQuestionID returns the question an answer belongs to.
func (sdb *SharedDB) AnswerQuestionID(ctx context.Context, answerID int) (int, error) {
	sql, args, _ := psql.Select("question_id").From("answers").Where(sq.Eq{"id": answerID}).ToSql()
	var qid int
	if err := sdb.db.QueryRow(ctx, sql, args...).Scan(&qid); err != nil {
		return 0, notFound(err)
	}
	return qid, nil
}
