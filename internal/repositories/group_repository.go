package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"presence-chat/internal/models"
)

var ErrGroupNotFound = errors.New("group not found")

// GroupRepository abstracts group persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, createdBy int, name string, memberIDs []int) (models.Group, error)
	ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	IsMember(ctx context.Context, groupID, userID int) (bool, error)
	MemberIDs(ctx context.Context, groupID int) ([]int, error)
	AddMembers(ctx context.Context, groupID int, memberIDs []int) error
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// CreateGroup creates a group and its members atomically. The creator is
// always included in the member set.
func (r *GroupRepo) CreateGroup(ctx context.Context, createdBy int, name string, memberIDs []int) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	if err = tx.QueryRowxContext(ctx, `INSERT INTO groups (name, created_by) VALUES ($1, $2) RETURNING id, name, created_by, created_at`, name, createdBy).
		Scan(&group.ID, &group.Name, &group.CreatedBy, &group.CreatedAt); err != nil {
		return models.Group{}, err
	}

	memberSet := map[int]struct{}{createdBy: {}}
	for _, id := range memberIDs {
		memberSet[id] = struct{}{}
	}
	ids := make([]int, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, group.ID, id); err != nil {
			return models.Group{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	group.MemberIDs = ids
	return group, nil
}

// ListGroupsForUser returns groups that include the user, members populated.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.SelectContext(ctx, &groups, `SELECT g.id, g.name, g.created_by, g.created_at FROM groups g
        INNER JOIN group_members gm ON gm.group_id = g.id WHERE gm.user_id=$1 ORDER BY g.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		members, err := r.MemberIDs(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].MemberIDs = members
	}
	return groups, nil
}

// GetGroup fetches a single group with its member ids.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT id, name, created_by, created_at FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}
	group.MemberIDs, err = r.MemberIDs(ctx, groupID)
	return group, err
}

// IsMember checks membership.
func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`, groupID, userID)
	return exists, err
}

// MemberIDs returns the ids of all group members.
func (r *GroupRepo) MemberIDs(ctx context.Context, groupID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM group_members WHERE group_id=$1 ORDER BY user_id ASC`, groupID)
	return ids, err
}

// AddMembers inserts the given users; ids already present are skipped.
func (r *GroupRepo) AddMembers(ctx context.Context, groupID int, memberIDs []int) error {
	for _, id := range memberIDs {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, groupID, id); err != nil {
			return err
		}
	}
	return nil
}
