package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"presence-chat/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts user persistence. User creation and
// credential handling belong to the auth service; this repository only
// reads the user directory.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	ListOthers(ctx context.Context, userID int) ([]models.User, error)
	AllExist(ctx context.Context, userIDs []int) (bool, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a single user.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, email, profile_picture, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListOthers returns every user except the given one, for the sidebar.
func (r *UserRepo) ListOthers(ctx context.Context, userID int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT id, username, email, profile_picture, created_at FROM users WHERE id<>$1 ORDER BY username ASC`, userID)
	return users, err
}

// AllExist reports whether every id in userIDs refers to a stored user.
func (r *UserRepo) AllExist(ctx context.Context, userIDs []int) (bool, error) {
	if len(userIDs) == 0 {
		return true, nil
	}
	ids := make([]int64, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, int64(id))
	}

	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(DISTINCT id) FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return false, err
	}
	return count == len(uniqueInts(userIDs)), nil
}

func uniqueInts(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
