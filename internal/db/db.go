package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/hasker/hasker/internal/models"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenLen = 32 // bytes

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type SharedDB struct {
	db         *pgxpool.Pool
	config     *models.EnvConfig
	bcryptCost int
	answerHook models.AnswerHook
}

func Connect(ctx context.Context, config *models.EnvConfig) (SharedDB, error) {
	db, err := pgxpool.Connect(ctx, config.DatabaseURL)
	if err != nil {
		return SharedDB{}, fmt.Errorf("Failed to connect to postgres: %w", err)
	}
	bcryptCost := bcrypt.DefaultCost + 2
	if config.Debug {
		bcryptCost = bcrypt.MinCost
	}

	return SharedDB{
		db:         db,
		config:     config,
		bcryptCost: bcryptCost,
	}, nil
}

// SetAnswerHook registers the hook run after an answer is committed.
func (sdb *SharedDB) SetAnswerHook(h models.AnswerHook) {
	sdb.answerHook = h
}
func (sdb *SharedDB) Pool() *pgxpool.Pool {
	return sdb.db
}
func (sdb *SharedDB) Close() {
	sdb.db.Close()
}
func (sdb *SharedDB) Ping(ctx context.Context) error {
	return sdb.db.Ping(ctx)
}
func (sdb *SharedDB) maxTags() int {
	if sdb.config == nil || sdb.config.MaxTags <= 0 {
		return models.DefaultMaxTags
	}
	return sdb.config.MaxTags
}

// execTx runs txFunc in a transaction. When db is already a transaction,
// pgx opens a savepoint, so a failing txFunc only rolls back its own work.
func execTx(ctx context.Context, db DBTX, txFunc func(context.Context, DBTX) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	err = txFunc(ctx, tx)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

func asPgError(err error, code string) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr, true
	}
	return nil, false
}
func isUniqueViolation(err error, constraint string) bool {
	pgErr, ok := asPgError(err, pgUniqueViolation)
	return ok && (constraint == "" || pgErr.ConstraintName == constraint)
}
func isForeignKeyViolation(err error) bool {
	_, ok := asPgError(err, pgForeignKeyViolation)
	return ok
}

// notFound maps pgx.ErrNoRows (or scany's equivalent) to models.ErrNotFound and leaves other errors untouched.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err) {
		return models.ErrNotFound
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
