package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// UserRepo provides data access for the users table using sqlx. Queries
// are written with '?' placeholders and rebound for the driver, so the
// same repo serves postgres (lib/pq) and sqlite (modernc).
type UserRepo struct {
	db  *sqlx.DB
	now func() time.Time
	id  func() string
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db, now: time.Now, id: utilities.NewSnowflakeID}
}

type userRow struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	PasswordSecret string         `db:"password_secret"`
	FirstName      string         `db:"first_name"`
	LastName       string         `db:"last_name"`
	Verified       bool           `db:"verified"`
	AvatarURL      string         `db:"avatar_url"`
	Gender         sql.NullString `db:"gender"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
}

func (r userRow) toEntity() *entity.User {
	u := &entity.User{
		ID:             r.ID,
		Email:          r.Email,
		PasswordSecret: r.PasswordSecret,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Verified:       r.Verified,
		AvatarURL:      r.AvatarURL,
		CreatedAt:      time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:      time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if r.Gender.Valid {
		g := entity.Gender(r.Gender.String)
		u.Gender = &g
	}
	return u
}

const selectUser = `SELECT id, email, password_secret, first_name, last_name, verified,
	avatar_url, gender, created_at, updated_at
  FROM users`

// Create inserts a new user row. The id and timestamps are assigned here;
// a taken email yields ErrDuplicateKey.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (*entity.User, error) {
	now := r.now().UTC().Truncate(time.Millisecond)
	created := *u
	created.ID = r.id()
	created.CreatedAt = now
	created.UpdatedAt = now

	var gender sql.NullString
	if created.Gender != nil {
		gender = sql.NullString{String: string(*created.Gender), Valid: true}
	}

	q := r.db.Rebind(`INSERT INTO users (id, email, password_secret, first_name, last_name, verified, avatar_url, gender, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		created.ID, created.Email, created.PasswordSecret, created.FirstName, created.LastName,
		created.Verified, created.AvatarURL, gender, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &created, nil
}

// FindByEmail returns the user with exactly this email or ErrNotFound.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, selectUser+` WHERE email = ?`, email)
}

// FindByID returns the user with this id or ErrNotFound.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, selectUser+` WHERE id = ?`, id)
}

func (r *UserRepo) findOne(ctx context.Context, q string, arg any) (*entity.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return row.toEntity(), nil
}

// Update writes the set fields of p and bumps updated_at.
func (r *UserRepo) Update(ctx context.Context, id string, p entity.UserPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{r.now().UTC().UnixMilli()}
	if p.PasswordSecret != nil {
		sets = append(sets, "password_secret = ?")
		args = append(args, *p.PasswordSecret)
	}
	if p.Verified != nil {
		sets = append(sets, "verified = ?")
		args = append(args, *p.Verified)
	}
	if p.FirstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, *p.FirstName)
	}
	if p.LastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, *p.LastName)
	}
	if p.Gender != nil {
		sets = append(sets, "gender = ?")
		args = append(args, string(*p.Gender))
	}
	args = append(args, id)

	q := r.db.Rebind(`UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint failures from both
// supported drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
