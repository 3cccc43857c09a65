package db

import (
	"context"
	"errors"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/hasker/hasker/internal/models"
	"github.com/hasker/hasker/internal/utils"
)

const (
	// emptySlug is used as the base when a label has no ASCII letters or digits left.
	emptySlug = "0"
	// maxSlugBase leaves room for a numeric suffix in tags.slug (VARCHAR(80)).
	// Compatibility folding can turn one rune into several bytes, so a valid
	// label may slugify to more than this.
	maxSlugBase = 64
)

// CreateTag stores a new tag with a fresh slug derived from label.
func (sdb *SharedDB) CreateTag(ctx context.Context, label string) (*models.Tag, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, models.FieldErrors{"tag": {"Tag can't be empty"}}
	}
	return insertTag(ctx, sdb.db, label)
}

func (sdb *SharedDB) GetTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	tag := &models.Tag{}
	sql, args, _ := psql.
		Select("id", "tag", "slug").
		From("tags").
		Where(sq.Eq{"slug": slug}).
		ToSql()

	err := pgxscan.Get(ctx, sdb.db, tag, sql, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return tag, nil
}

// FindTagSlugByLabel looks a tag up by label, ignoring case.
func (sdb *SharedDB) FindTagSlugByLabel(ctx context.Context, label string) (string, error) {
	sql, args, _ := psql.
		Select("slug").
		From("tags").
		Where(sq.Expr("LOWER(tag) = LOWER(?)", strings.TrimSpace(label))).
		OrderBy("id").
		Limit(1).
		ToSql()

	var slug string
	err := sdb.db.QueryRow(ctx, sql, args...).Scan(&slug)
	if err != nil {
		return "", notFound(err)
	}
	return slug, nil
}

// TagTypeahead returns up to models.TypeaheadLimit labels containing query.
func (sdb *SharedDB) TagTypeahead(ctx context.Context, query string) ([]string, error) {
	labels := []string{}
	query = strings.TrimSpace(query)
	if query == "" {
		return labels, nil
	}
	sql, args, _ := psql.
		Select("tag").
		From("tags").
		Where(sq.ILike{"tag": containsPattern(query)}).
		OrderBy("tag").
		Limit(models.TypeaheadLimit).
		ToSql()

	err := pgxscan.Select(ctx, sdb.db, &labels, sql, args...)
	if err != nil {
		return nil, err
	}
	return labels, nil
}

// ListQuestionTags returns the tags of a question, failing with ErrNotFound
// if the question doesn't exist.
func (sdb *SharedDB) ListQuestionTags(ctx context.Context, questionID int) ([]models.Tag, error) {
	if err := questionExists(ctx, sdb.db, questionID); err != nil {
		return nil, err
	}
	return listQuestionTags(ctx, sdb.db, questionID)
}
func listQuestionTags(ctx context.Context, db DBTX, questionID int) ([]models.Tag, error) {
	tags := []models.Tag{}
	sql, args, _ := psql.
		Select("t.id", "t.tag", "t.slug").
		From("question_tags qt").
		Join("tags t ON t.id = qt.tag_id").
		Where(sq.Eq{"qt.question_id": questionID}).
		OrderBy("t.tag").
		ToSql()

	err := pgxscan.Select(ctx, db, &tags, sql, args...)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// attachTags fills the Tags field of every question with a single query.
func attachTags(ctx context.Context, db DBTX, questions []models.QuestionView) error {
	if len(questions) == 0 {
		return nil
	}
	ids := make([]int, len(questions))
	for i := range questions {
		ids[i] = questions[i].ID
		questions[i].Tags = []models.Tag{}
	}

	var rows []struct {
		QuestionID int `db:"question_id"`
		models.Tag
	}
	sql, args, _ := psql.
		Select("qt.question_id", "t.id", "t.tag", "t.slug").
		From("question_tags qt").
		Join("tags t ON t.id = qt.tag_id").
		Where(sq.Eq{"qt.question_id": ids}).
		OrderBy("t.tag").
		ToSql()
	if err := pgxscan.Select(ctx, db, &rows, sql, args...); err != nil {
		return err
	}

	byID := make(map[int]*models.QuestionView, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}
	for _, r := range rows {
		if q, ok := byID[r.QuestionID]; ok {
			q.Tags = append(q.Tags, r.Tag)
		}
	}
	return nil
}

// resolveTags turns labels into persisted tags, creating the missing ones.
// It must run inside the transaction that will use the result.
func resolveTags(ctx context.Context, tx DBTX, labels []string, max int) ([]models.Tag, error) {
	labels = models.CleanTagLabels(labels)
	if len(labels) > max {
		return nil, models.TooManyTagsError{Max: max}
	}

	tags := make([]models.Tag, 0, len(labels))
	for _, label := range labels {
		tag, err := getOrCreateTag(ctx, tx, label)
		if errors.Is(err, models.ErrDuplicateTag) {
			// Someone else created the same tag meanwhile.
			tag, err = getOrCreateTag(ctx, tx, label)
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

func getOrCreateTag(ctx context.Context, db DBTX, label string) (*models.Tag, error) {
	tag := &models.Tag{}
	sql, args, _ := psql.
		Select("id", "tag", "slug").
		From("tags").
		Where(sq.Eq{"tag": label}).
		ToSql()

	err := pgxscan.Get(ctx, db, tag, sql, args...)
	if err = notFound(err); !errors.Is(err, models.ErrNotFound) {
		if err != nil {
			return nil, err
		}
		return tag, nil
	}
	return insertTag(ctx, db, label)
}

// insertTag runs in its own (sub)transaction, so a uniqueness violation
// leaves no partial row and doesn't abort the caller's transaction.
func insertTag(ctx context.Context, db DBTX, label string) (*models.Tag, error) {
	tag := &models.Tag{Tag: label}
	err := execTx(ctx, db, func(ctx context.Context, tx DBTX) error {
		slug, err := assignSlug(ctx, tx, label)
		if err != nil {
			return err
		}
		tag.Slug = slug

		sql, args, _ := psql.
			Insert("tags").
			Columns("tag", "slug").
			Values(tag.Tag, tag.Slug).
			Suffix("RETURNING id").
			ToSql()
		return tx.QueryRow(ctx, sql, args...).Scan(&tag.ID)
	})
	switch {
	case isUniqueViolation(err, "tags_tag_key"), isUniqueViolation(err, "tags_slug_key"):
		return nil, models.ErrDuplicateTag
	case err != nil:
		return nil, err
	}
	return tag, nil
}

// assignSlug returns the first free slug among base, base1, base2, ...
func assignSlug(ctx context.Context, db DBTX, label string) (string, error) {
	base := slugBase(label)

	taken := []string{}
	sql, args, _ := psql.
		Select("slug").
		From("tags").
		Where(sq.Like{"slug": likeEscaper.Replace(base) + "%"}).
		ToSql()
	if err := pgxscan.Select(ctx, db, &taken, sql, args...); err != nil {
		return "", err
	}
	return nextFreeSlug(base, taken), nil
}

func slugBase(label string) string {
	base := utils.Slugify(label)
	if len(base) > maxSlugBase {
		base = strings.TrimRight(base[:maxSlugBase], "-_")
	}
	if base == "" {
		return emptySlug
	}
	return base
}

func nextFreeSlug(base string, taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, s := range taken {
		used[s] = true
	}
	slug := base
	for i := 1; used[slug]; i++ {
		slug = base + strconv.Itoa(i)
	}
	return slug
}

// setQuestionTags replaces the tag relation of a question.
func setQuestionTags(ctx context.Context, tx DBTX, questionID int, tags []models.Tag) error {
	sql, args, _ := psql.
		Delete("question_tags").
		Where(sq.Eq{"question_id": questionID}).
		ToSql()
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}

	q := psql.Insert("question_tags").Columns("question_id", "tag_id")
	for _, t := range tags {
		q = q.Values(questionID, t.ID)
	}
	sql, args, _ = q.ToSql()
	_, err := tx.Exec(ctx, sql, args...)
	return err
}
