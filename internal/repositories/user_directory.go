package repositories

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/apperrors"
)

// UserDirectory answers whether a user id is known to the platform. Profiles
// themselves are owned by another service.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// UserRepo reads the platform's users table.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID); err != nil {
		return false, apperrors.Transient("lookup user", err)
	}
	return exists, nil
}

// MemoryUserDirectory is a static set of user ids. When open, every
// non-empty id is treated as known.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]struct{}
	open  bool
}

// NewMemoryUserDirectory returns a directory containing ids. With no ids the
// directory is open.
func NewMemoryUserDirectory(ids ...string) *MemoryUserDirectory {
	d := &MemoryUserDirectory{users: make(map[string]struct{}, len(ids)), open: len(ids) == 0}
	for _, id := range ids {
		d.users[id] = struct{}{}
	}
	return d
}

func (d *MemoryUserDirectory) Add(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[userID] = struct{}{}
	d.open = false
}

func (d *MemoryUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.open {
		return true, nil
	}
	_, ok := d.users[userID]
	return ok, nil
}

var _ UserDirectory = (*UserRepo)(nil)
var _ UserDirectory = (*MemoryUserDirectory)(nil)
