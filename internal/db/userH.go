package db

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/hasker/hasker/internal/models"
)

type userPerms struct {
	Read   bool
	Update bool
}

// UserH is a handle to an authenticated user.
type UserH struct {
	id       int
	perms    userPerms
	sharedDB DBTX
}

func (sdb *SharedDB) GetUserH(ctx context.Context, token string) (*UserH, error) {
	sql, args, _ := psql.
		Select("user_id").
		From("tokens").
		Where(sq.Eq{"token": token}).
		ToSql()

	uH := &UserH{
		sharedDB: sdb.db,
		perms:    userPerms{Read: true, Update: true},
	}
	err := sdb.db.QueryRow(ctx, sql, args...).Scan(&uH.id)
	if err != nil {
		return nil, notFound(err)
	}
	return uH, nil
}

// GetUserHByID returns a read-only handle for a user authenticated by other
// means (API tokens). It fails with ErrNotFound for deleted users.
func (sdb *SharedDB) GetUserHByID(ctx context.Context, userID int) (*UserH, error) {
	sql, args, _ := psql.Select("1").From("users").Where(sq.Eq{"id": userID}).ToSql()
	var one int
	if err := sdb.db.QueryRow(ctx, sql, args...).Scan(&one); err != nil {
		return nil, notFound(err)
	}
	return &UserH{id: userID, perms: userPerms{Read: true}, sharedDB: sdb.db}, nil
}

func (h *UserH) ID() int {
	return h.id
}
func (h *UserH) Read(ctx context.Context) (*models.User, error) {
	if !h.perms.Read {
		return nil, models.ErrPermDenied
	}
	return readUser(ctx, h.sharedDB, h.id)
}

// UpdateSettings changes email and avatar. An empty avatar keeps the current
// one unless req.ClearAvatar is set. It returns the previous avatar path so
// the caller can remove the old file.
func (h *UserH) UpdateSettings(ctx context.Context, req *models.SettingsReq, avatar string) (oldAvatar string, err error) {
	if !h.perms.Update {
		return "", models.ErrPermDenied
	}
	if errs := models.ValidateSettings(req); !errs.Empty() {
		return "", errs
	}

	err = execTx(ctx, h.sharedDB, func(ctx context.Context, tx DBTX) error {
		user, err := readUser(ctx, tx, h.id)
		if err != nil {
			return err
		}
		oldAvatar = user.Avatar

		q := psql.Update("users").Set("email", req.Email).Where(sq.Eq{"id": h.id})
		switch {
		case avatar != "":
			q = q.Set("avatar", avatar)
		case req.ClearAvatar:
			q = q.Set("avatar", "")
		default:
			oldAvatar = ""
		}
		sql, args, _ := q.ToSql()
		_, err = tx.Exec(ctx, sql, args...)
		if isUniqueViolation(err, "users_email_key") {
			return models.FieldErrors{"email": {"The email specified belongs to another user."}}
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return oldAvatar, nil
}

// VoteOn returns the stored direction of this user's vote on an item, 0 if none.
func (h *UserH) VoteOn(ctx context.Context, kind models.VotableKind, itemID int) (int, error) {
	v, ok := votables[kind]
	if !ok {
		return 0, models.ErrBadVotableKind
	}
	sql, args, _ := psql.
		Select("vote").
		From(v.votes).
		Where(sq.Eq{"user_id": h.id, v.fk: itemID}).
		ToSql()

	vote := 0
	err := h.sharedDB.QueryRow(ctx, sql, args...).Scan(&vote)
	if err = notFound(err); err != nil && !errors.Is(err, models.ErrNotFound) {
		return 0, err
	}
	return vote, nil
}

func (h *UserH) ListNotifs(ctx context.Context) ([]models.NotifView, error) {
	if !h.perms.Read {
		return nil, models.ErrPermDenied
	}
	return NewNotificationService(h.sharedDB).List(ctx, h.id)
}
func (h *UserH) DeleteNotif(ctx context.Context, notifID int) error {
	if !h.perms.Update {
		return models.ErrPermDenied
	}
	return NewNotificationService(h.sharedDB).Delete(ctx, h.id, notifID)
}

func readUser(ctx context.Context, db DBTX, userID int) (*models.User, error) {
	user := &models.User{}
	sql, args, _ := psql.
		Select("id", "username", "email", "avatar", "created_at").
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()

	err := pgxscan.Get(ctx, db, user, sql, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}
