package db

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/hasker/hasker/internal/models"
)

var questionOrderings = map[string]string{
	models.OrderByNewest:     "q.date_created DESC",
	models.OrderByOldest:     "q.date_created ASC",
	models.OrderByVotes:      "q.votes DESC, q.date_created DESC",
	models.OrderByLeastVotes: "q.votes ASC, q.date_created DESC",
}

func selectQuestionView() sq.SelectBuilder {
	return psql.
		Select(
			"q.id",
			"q.title",
			"q.message",
			"q.author_id",
			"u.username AS author_name",
			"q.date_created",
			"q.votes",
			"(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id) AS answers_count",
		).
		From("questions q").
		Join("users u ON u.id = q.author_id")
}

// CreateQuestion stores a question together with its tags in one transaction.
func (sdb *SharedDB) CreateQuestion(ctx context.Context, author *UserH, q *models.Question, tagLabels []string) (*models.Question, error) {
	if author == nil {
		return nil, models.ErrUnauthorized
	}
	maxTags := sdb.maxTags()
	if errs := models.ValidateQuestion(q, tagLabels, maxTags); !errs.Empty() {
		return nil, errs
	}
	q.AuthorID = author.id

	err := execTx(ctx, sdb.db, func(ctx context.Context, tx DBTX) error {
		sql, args, _ := psql.
			Insert("questions").
			Columns("title", "message", "author_id").
			Values(q.Title, q.Message, q.AuthorID).
			Suffix("RETURNING id, date_created, votes").
			ToSql()
		err := tx.QueryRow(ctx, sql, args...).Scan(&q.ID, &q.DateCreated, &q.Votes)
		if isForeignKeyViolation(err) {
			return models.ErrInvalidReference
		}
		if err != nil {
			return err
		}

		tags, err := resolveTags(ctx, tx, tagLabels, maxTags)
		if err != nil {
			return err
		}
		return setQuestionTags(ctx, tx, q.ID, tags)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// UpdateQuestionTags replaces the tags of a question owned by author.
func (sdb *SharedDB) UpdateQuestionTags(ctx context.Context, author *UserH, questionID int, tagLabels []string) ([]models.Tag, error) {
	if author == nil {
		return nil, models.ErrUnauthorized
	}
	var tags []models.Tag
	err := execTx(ctx, sdb.db, func(ctx context.Context, tx DBTX) error {
		if err := checkQuestionAuthor(ctx, tx, questionID, author.id); err != nil {
			return err
		}
		var err error
		tags, err = resolveTags(ctx, tx, tagLabels, sdb.maxTags())
		if err != nil {
			return err
		}
		return setQuestionTags(ctx, tx, questionID, tags)
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (sdb *SharedDB) ReadQuestion(ctx context.Context, questionID int) (*models.QuestionView, error) {
	sql, args, _ := selectQuestionView().
		Where(sq.Eq{"q.id": questionID}).
		ToSql()

	q := models.QuestionView{}
	if err := pgxscan.Get(ctx, sdb.db, &q, sql, args...); err != nil {
		return nil, notFound(err)
	}
	questions := []models.QuestionView{q}
	if err := attachTags(ctx, sdb.db, questions); err != nil {
		return nil, err
	}
	return &questions[0], nil
}

// ListQuestions returns one page of all questions. page.Total is filled in.
func (sdb *SharedDB) ListQuestions(ctx context.Context, ordering string, page *models.Page) ([]models.QuestionView, error) {
	return sdb.listQuestions(ctx, nil, ordering, page)
}

func (sdb *SharedDB) ListQuestionsByTag(ctx context.Context, slug string, page *models.Page) ([]models.QuestionView, error) {
	filter := sq.Expr("EXISTS (SELECT 1 FROM question_tags qt JOIN tags t ON t.id = qt.tag_id WHERE qt.question_id = q.id AND t.slug = ?)", slug)
	return sdb.listQuestions(ctx, filter, models.OrderByVotes, page)
}

// SearchQuestions matches query against question titles and messages and
// against the messages of their answers.
func (sdb *SharedDB) SearchQuestions(ctx context.Context, query string, ordering string, page *models.Page) ([]models.QuestionView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return sdb.listQuestions(ctx, nil, ordering, page)
	}
	pattern := containsPattern(query)
	filter := sq.Or{
		sq.ILike{"q.title": pattern},
		sq.ILike{"q.message": pattern},
		sq.Expr("EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.id AND a.message ILIKE ?)", pattern),
	}
	return sdb.listQuestions(ctx, filter, ordering, page)
}

// Trending returns the most voted questions.
func (sdb *SharedDB) Trending(ctx context.Context) ([]models.QuestionView, error) {
	page := models.NewPage(1, models.TrendingCount)
	return sdb.listQuestions(ctx, nil, models.OrderByVotes, &page)
}

func (sdb *SharedDB) listQuestions(ctx context.Context, filter sq.Sqlizer, ordering string, page *models.Page) ([]models.QuestionView, error) {
	orderBy, ok := questionOrderings[ordering]
	if !ok {
		orderBy = questionOrderings[models.OrderByNewest]
	}

	count := psql.Select("COUNT(*)").From("questions q")
	list := selectQuestionView()
	if filter != nil {
		count = count.Where(filter)
		list = list.Where(filter)
	}

	sql, args, err := count.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building count query: %w", err)
	}
	if err := sdb.db.QueryRow(ctx, sql, args...).Scan(&page.Total); err != nil {
		return nil, err
	}

	sql, args, err = list.
		OrderBy(orderBy, "q.id DESC").
		Limit(uint64(page.Size)).
		Offset(page.Offset()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}
	questions := []models.QuestionView{}
	if err := pgxscan.Select(ctx, sdb.db, &questions, sql, args...); err != nil {
		return nil, err
	}
	if err := attachTags(ctx, sdb.db, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func questionExists(ctx context.Context, db DBTX, questionID int) error {
	sql, args, _ := psql.Select("1").From("questions").Where(sq.Eq{"id": questionID}).ToSql()
	var one int
	return notFound(db.QueryRow(ctx, sql, args...).Scan(&one))
}

// checkQuestionAuthor fails with ErrNotFound unless userID wrote the question,
// so non-authors can't tell whether the question exists.
func checkQuestionAuthor(ctx context.Context, db DBTX, questionID, userID int) error {
	sql, args, _ := psql.
		Select("1").
		From("questions").
		Where(sq.Eq{"id": questionID, "author_id": userID}).
		ToSql()
	var one int
	return notFound(db.QueryRow(ctx, sql, args...).Scan(&one))
}
