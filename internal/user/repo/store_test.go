package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

type store interface {
	Create(ctx context.Context, u *entity.User) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id string) (*entity.User, error)
	Update(ctx context.Context, id string, p entity.UserPatch) error
}

func newUser(email string) *entity.User {
	return &entity.User{
		Email:          email,
		PasswordSecret: "$2a$10$secret",
		FirstName:      "Ann",
		LastName:       "Lee",
		AvatarURL:      "https://www.gravatar.com/avatar/x",
	}
}

// runStoreContract checks the behaviour every store implementation shares.
func runStoreContract(t *testing.T, s store) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		created, err := s.Create(ctx, newUser("ann@example.com"))
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.Verified)
		assert.False(t, created.CreatedAt.IsZero())

		byEmail, err := s.FindByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
		assert.Equal(t, "$2a$10$secret", byEmail.PasswordSecret)
		assert.Nil(t, byEmail.Gender)

		byID, err := s.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ann@example.com", byID.Email)
		assert.True(t, created.CreatedAt.Equal(byID.CreatedAt))
	})

	t.Run("email is case sensitive", func(t *testing.T) {
		_, err := s.FindByEmail(ctx, "ANN@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := s.Create(ctx, newUser("ann@example.com"))
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.FindByID(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
		verified := true
		assert.ErrorIs(t, s.Update(ctx, "nope", entity.UserPatch{Verified: &verified}), ErrNotFound)
	})

	t.Run("update", func(t *testing.T) {
		u, err := s.FindByEmail(ctx, "ann@example.com")
		require.NoError(t, err)

		verified := true
		secret := "$2a$10$other"
		g := entity.GenderDiverse
		require.NoError(t, s.Update(ctx, u.ID, entity.UserPatch{Verified: &verified, PasswordSecret: &secret, Gender: &g}))

		got, err := s.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, got.Verified)
		assert.Equal(t, secret, got.PasswordSecret)
		require.NotNil(t, got.Gender)
		assert.Equal(t, entity.GenderDiverse, *got.Gender)
		assert.Equal(t, "Ann", got.FirstName)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})

	t.Run("concurrent creates with one email", func(t *testing.T) {
		const n = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ok, dup int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Create(ctx, newUser("race@example.com"))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case assert.ErrorIs(t, err, ErrDuplicateKey):
					dup++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, dup)
	})

	t.Run("distinct ids", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			u, err := s.Create(ctx, newUser(fmt.Sprintf("u%d@example.com", i)))
			require.NoError(t, err)
			assert.False(t, seen[u.ID])
			seen[u.ID] = true
		}
	})
}
