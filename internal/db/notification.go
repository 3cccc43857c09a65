package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/hasker/hasker/internal/models"
)

// notificationService stores in-app notifications. It works both on the
// pool and inside a transaction.
type notificationService struct {
	db DBTX
}

func NewNotificationService(db DBTX) models.NotificationService {
	return &notificationService{db}
}

func (s *notificationService) Send(ctx context.Context, notif *models.Notification, toUserID int) error {
	sql, args, _ := psql.
		Insert("notifications").
		Columns("user_id", "notif_type", "title", "text", "action_url").
		Values(toUserID, notif.NotifType, notif.Title, notif.Text, notif.ActionURL.String()).
		ToSql()

	_, err := s.db.Exec(ctx, sql, args...)
	if isForeignKeyViolation(err) {
		return models.ErrInvalidReference
	}
	return err
}

func (s *notificationService) List(ctx context.Context, userID int) ([]models.NotifView, error) {
	notifs := []models.NotifView{}
	sql, args, _ := psql.
		Select("id", "notif_type", "title", "text", "action_url").
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("id DESC").
		ToSql()

	err := pgxscan.Select(ctx, s.db, &notifs, sql, args...)
	if err != nil {
		return nil, err
	}
	return notifs, nil
}

// Delete removes a notification owned by userID. Notifications of other
// users are reported as missing.
func (s *notificationService) Delete(ctx context.Context, userID int, notifID int) error {
	sql, args, _ := psql.
		Delete("notifications").
		Where(sq.Eq{"user_id": userID, "id": notifID}).
		ToSql()

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
