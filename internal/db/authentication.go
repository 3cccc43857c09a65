package db

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/hasker/hasker/internal/models"
	"github.com/hasker/hasker/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

func (sdb *SharedDB) CreateUser(ctx context.Context, req *models.SignupReq) (*UserH, error) {
	if errs := models.ValidateSignup(req); !errs.Empty() {
		return nil, errs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Passwd), sdb.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: req.Username, Email: req.Email}
	err = insertUser(ctx, sdb.db, user, hash)
	switch {
	case isUniqueViolation(err, "users_username_key"):
		return nil, models.ErrUsernameAlreadyUsed
	case isUniqueViolation(err, "users_email_key"):
		return nil, models.ErrEmailAlreadyUsed
	case err != nil:
		return nil, err
	}

	return &UserH{id: user.ID, perms: userPerms{Read: true, Update: true}, sharedDB: sdb.db}, nil
}
func insertUser(ctx context.Context, db DBTX, user *models.User, hash []byte) error {
	sql, args, _ := psql.
		Insert("users").
		Columns("username", "email", "passwd_hash").
		Values(user.Username, user.Email, string(hash)).
		Suffix("RETURNING id, created_at").
		ToSql()

	return db.QueryRow(ctx, sql, args...).Scan(&user.ID, &user.CreatedAt)
}

// Authenticate checks a username/password pair and returns a handle to the user.
func (sdb *SharedDB) Authenticate(ctx context.Context, username string, passwd string) (*UserH, error) {
	sql, args, _ := psql.
		Select("id", "passwd_hash").
		From("users").
		Where(sq.Eq{"username": username}).
		ToSql()

	var data struct {
		ID         int
		PasswdHash string
	}
	err := pgxscan.Get(ctx, sdb.db, &data, sql, args...)
	if errors.Is(notFound(err), models.ErrNotFound) {
		return nil, models.ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(data.PasswdHash), []byte(passwd)) != nil {
		return nil, models.ErrBadCredentials
	}
	return &UserH{id: data.ID, perms: userPerms{Read: true, Update: true}, sharedDB: sdb.db}, nil
}

// Login authenticates the user and stores a new session token.
func (sdb *SharedDB) Login(ctx context.Context, username string, passwd string) (token string, err error) {
	uH, err := sdb.Authenticate(ctx, username, passwd)
	if err != nil {
		return "", err
	}

	token = utils.GenToken(TokenLen)
	sql, args, _ := psql.
		Insert("tokens").
		Columns("user_id", "token").
		Values(uH.id, token).
		ToSql()

	_, err = sdb.db.Exec(ctx, sql, args...)
	if err != nil {
		return "", fmt.Errorf("storing session token: %w", err)
	}
	return token, nil
}
func (sdb *SharedDB) Signout(ctx context.Context, token string) error {
	sql, args, _ := psql.Delete("tokens").Where(sq.Eq{"token": token}).ToSql()
	_, err := sdb.db.Exec(ctx, sql, args...)
	return err
}
