package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const notificationColumns = `id, user_id, title, message, type, reference_id, reference_type,
	channels, status, scheduled_at, created_at, updated_at`

// Insert writes a new notification record.
func (s *Store) Insert(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.Title,
		n.Message,
		string(n.Type),
		nullString(n.ReferenceID),
		nullString(n.ReferenceType),
		pq.StringArray(n.Channels.Strings()),
		string(n.Status),
		nullTime(n.ScheduledAt),
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errors.NewDuplicateNotificationError(n.ID)
		}
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// UpdateStatus moves a PENDING notification to a terminal status and stamps
// updated_at. The update is conditional on the row still being PENDING, so a
// record already finished by another writer is reported as INVALID_TRANSITION
// rather than overwritten.
func (s *Store) UpdateStatus(ctx context.Context, id string, to models.Status, at time.Time) error {
	if !models.StatusPending.CanTransitionTo(to) {
		return errors.NewInvalidTransitionError(id, string(models.StatusPending), string(to))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), at, id, string(models.StatusPending),
	)
	if err != nil {
		return errors.NewDatabaseUpdateFailedError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseUpdateFailedError(err)
	}
	if rows == 0 {
		return errors.NewInvalidTransitionError(id, "not "+string(models.StatusPending), string(to))
	}
	return nil
}

// GetStatus reads the current status of one notification.
func (s *Store) GetStatus(ctx context.Context, id string) (models.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM notifications WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", errors.NewNotificationNotFoundError(id)
		}
		return "", errors.NewQueryExecutionFailedError("get_status", err)
	}
	return models.Status(status), nil
}

// DueQuery selects one page of PENDING notifications scheduled at or before
// Now. Pages are ordered by (scheduled_at, id); pass the last row of the
// previous page as AfterScheduledAt/AfterID to continue.
type DueQuery struct {
	Now              time.Time
	AfterScheduledAt time.Time
	AfterID          string
	Limit            int
}

// FindDue returns the next page of due notifications, oldest first.
func (s *Store) FindDue(ctx context.Context, q DueQuery) ([]*models.Notification, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	if q.AfterID == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+notificationColumns+`
			FROM notifications
			WHERE status = $1 AND scheduled_at <= $2
			ORDER BY scheduled_at, id
			LIMIT $3`,
			string(models.StatusPending), q.Now, q.Limit,
		)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+notificationColumns+`
			FROM notifications
			WHERE status = $1 AND scheduled_at <= $2 AND (scheduled_at, id) > ($3, $4)
			ORDER BY scheduled_at, id
			LIMIT $5`,
			string(models.StatusPending), q.Now, q.AfterScheduledAt, q.AfterID, q.Limit,
		)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("find_due", err)
	}
	defer rows.Close()

	out := make([]*models.Notification, 0, q.Limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("find_due", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("find_due", err)
	}
	return out, nil
}

// scanNotification reads one row. Channel tags are copied as stored; callers
// validate them before delivering.
func scanNotification(rows *sql.Rows) (*models.Notification, error) {
	var (
		n             models.Notification
		typ, status   string
		refID, refTyp sql.NullString
		channels      pq.StringArray
		scheduledAt   sql.NullTime
	)
	if err := rows.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &refID, &refTyp,
		&channels, &status, &scheduledAt, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}

	n.Type = models.Type(typ)
	n.Status = models.Status(status)
	n.ReferenceID = refID.String
	n.ReferenceType = refTyp.String
	n.Channels = make(models.ChannelSet, len(channels))
	for i, c := range channels {
		n.Channels[i] = models.Channel(c)
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		n.ScheduledAt = &t
	}
	return &n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
