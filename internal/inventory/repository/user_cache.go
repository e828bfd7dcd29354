package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/lib/pq"
	"github.com/pantrymind/pantrymind-backend/pkg/database"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
)

// UserCacheRepository keeps display data for users owned by the user service
type UserCacheRepository struct {
	db *database.DB
}

// NewUserCacheRepository creates a new user cache repository
func NewUserCacheRepository(db *database.DB) *UserCacheRepository {
	return &UserCacheRepository{db: db}
}

// Set creates or updates a cached user
func (r *UserCacheRepository) Set(ctx context.Context, user *CachedUser) error {
	query := `
		INSERT INTO user_cache (user_id, name, email, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET name = $2, email = $3, updated_at = NOW()
	`
	_, err := r.db.Q(ctx).ExecContext(ctx, query, user.UserID, user.Name, user.Email)
	return err
}

// Get gets a cached user by ID
func (r *UserCacheRepository) Get(ctx context.Context, userID string) (*CachedUser, error) {
	var user CachedUser
	query := `SELECT user_id, name, email FROM user_cache WHERE user_id = $1`
	if err := r.db.Q(ctx).GetContext(ctx, &user, query, userID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// Names resolves display names for a set of user IDs. Unknown users are absent from the result.
func (r *UserCacheRepository) Names(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	var rows []CachedUser
	query := `SELECT user_id, name, email FROM user_cache WHERE user_id = ANY($1)`
	if err := r.db.Q(ctx).SelectContext(ctx, &rows, query, pq.Array(userIDs)); err != nil {
		return nil, err
	}
	for _, u := range rows {
		names[u.UserID] = u.Name
	}
	return names, nil
}

// Delete deletes a cached user
func (r *UserCacheRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.Q(ctx).ExecContext(ctx, `DELETE FROM user_cache WHERE user_id = $1`, userID)
	return err
}
