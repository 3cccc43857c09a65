package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/hasker/hasker/internal/models"
)

type votable struct {
	items string // table holding the votes counter
	votes string // table holding one vote record per user
	fk    string // column of votes referencing items
}

var votables = map[models.VotableKind]votable{
	models.VotableQuestion: {items: "questions", votes: "question_votes", fk: "question_id"},
	models.VotableAnswer:   {items: "answers", votes: "answer_votes", fk: "answer_id"},
}

// ApplyVote records a vote of voter on an item and moves the item's counter.
// Voting twice in the same direction is reported as VoteAlreadyVoted and
// writes nothing.
func (sdb *SharedDB) ApplyVote(ctx context.Context, voter *UserH, kind models.VotableKind, itemID int, direction models.VoteDirection) (models.VoteOutcome, error) {
	if voter == nil {
		return "", models.ErrUnauthorized
	}
	if !direction.Valid() {
		return "", models.ErrBadDirection
	}
	v, ok := votables[kind]
	if !ok {
		return "", models.ErrBadVotableKind
	}

	var outcome models.VoteOutcome
	err := execTx(ctx, sdb.db, func(ctx context.Context, tx DBTX) error {
		var err error
		outcome, err = applyVote(ctx, tx, v, voter.id, itemID, direction)
		return err
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func applyVote(ctx context.Context, tx DBTX, v votable, userID, itemID int, direction models.VoteDirection) (models.VoteOutcome, error) {
	// Lock the item first: concurrent votes on it are serialized here.
	sql, args, _ := psql.
		Select("votes").
		From(v.items).
		Where(sq.Eq{"id": itemID}).
		Suffix("FOR UPDATE").
		ToSql()
	var votes int
	if err := tx.QueryRow(ctx, sql, args...).Scan(&votes); err != nil {
		return "", notFound(err)
	}

	sql, args, _ = psql.
		Insert(v.votes).
		Columns("user_id", v.fk, "vote").
		Values(userID, itemID, 0).
		Suffix("ON CONFLICT (user_id, " + v.fk + ") DO NOTHING").
		ToSql()
	_, err := tx.Exec(ctx, sql, args...)
	if isForeignKeyViolation(err) {
		return "", models.ErrInvalidReference
	}
	if err != nil {
		return "", err
	}

	sql, args, _ = psql.
		Select("vote").
		From(v.votes).
		Where(sq.Eq{"user_id": userID, v.fk: itemID}).
		Suffix("FOR UPDATE").
		ToSql()
	var current int
	if err := tx.QueryRow(ctx, sql, args...).Scan(&current); err != nil {
		return "", err
	}

	delta, next, outcome := models.DecideVote(current, direction)
	if outcome != models.VoteSuccess {
		return outcome, nil
	}

	sql, args, _ = psql.
		Update(v.items).
		Set("votes", sq.Expr("votes + ?", delta)).
		Where(sq.Eq{"id": itemID}).
		ToSql()
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return "", err
	}

	sql, args, _ = psql.
		Update(v.votes).
		Set("vote", next).
		Where(sq.Eq{"user_id": userID, v.fk: itemID}).
		ToSql()
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return "", err
	}
	return outcome, nil
}
