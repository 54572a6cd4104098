package repo

import (
	"context"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// MemoryUserRepo keeps users in process memory. The email index is checked
// and written under one lock, giving it the same uniqueness guarantee as
// the database stores.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]entity.User
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    map[string]entity.User{},
		byEmail: map[string]string{},
		now:     time.Now,
	}
}

func (r *MemoryUserRepo) Create(ctx context.Context, u *entity.User) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return nil, ErrDuplicateKey
	}
	now := r.now().UTC()
	created := *u
	created.ID = utilities.NewSnowflakeID()
	created.CreatedAt = now
	created.UpdatedAt = now
	r.byID[created.ID] = created
	r.byEmail[created.Email] = created.ID

	out := created
	return &out, nil
}

func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *MemoryUserRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepo) Update(ctx context.Context, id string, p entity.UserPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Apply(&u)
	u.UpdatedAt = r.now().UTC()
	r.byID[id] = u
	return nil
}

// Count returns the number of stored users.
func (r *MemoryUserRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
