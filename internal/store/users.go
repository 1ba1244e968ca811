package store

import (
	"context"
	"database/sql"
	stderrors "errors"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"
)

// FindUserByID loads the contact points of a user. A missing row is
// reported as USER_NOT_FOUND.
func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var (
		u            models.User
		email, phone sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, phone FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &email, &phone)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewUserNotFoundError(id)
		}
		return nil, errors.NewQueryExecutionFailedError("find_user", err)
	}

	u.Email = email.String
	u.Phone = phone.String
	return &u, nil
}

// FindSubscriptionsByUser lists every push registration of a user, oldest first.
func (s *Store) FindSubscriptionsByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at, id`, userID,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("find_subscriptions", err)
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("find_subscriptions", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("find_subscriptions", err)
	}
	return subs, nil
}
