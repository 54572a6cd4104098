package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

// UsersCollection is the collection name used by MongoUserRepo.
const UsersCollection = "users"

// MongoUserRepo stores users as documents keyed by the hex form of an
// ObjectID. Email uniqueness is enforced by the index created in
// EnsureIndexes.
type MongoUserRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{coll: db.Collection(UsersCollection), now: time.Now}
}

type userDoc struct {
	ID             string    `bson:"_id"`
	Email          string    `bson:"email"`
	PasswordSecret string    `bson:"passwordSecret"`
	FirstName      string    `bson:"firstName"`
	LastName       string    `bson:"lastName"`
	Verified       bool      `bson:"verified"`
	AvatarURL      string    `bson:"avatarUrl"`
	Gender         *string   `bson:"gender,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

func docFromEntity(u *entity.User) userDoc {
	d := userDoc{
		ID:             u.ID,
		Email:          u.Email,
		PasswordSecret: u.PasswordSecret,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Verified:       u.Verified,
		AvatarURL:      u.AvatarURL,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if u.Gender != nil {
		g := string(*u.Gender)
		d.Gender = &g
	}
	return d
}

func (d userDoc) toEntity() *entity.User {
	u := &entity.User{
		ID:             d.ID,
		Email:          d.Email,
		PasswordSecret: d.PasswordSecret,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Verified:       d.Verified,
		AvatarURL:      d.AvatarURL,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if d.Gender != nil {
		g := entity.Gender(*d.Gender)
		u.Gender = &g
	}
	return u
}

// EnsureIndexes creates the unique email index. It is idempotent.
func (r *MongoUserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

func (r *MongoUserRepo) Create(ctx context.Context, u *entity.User) (*entity.User, error) {
	// BSON dates carry millisecond precision.
	now := r.now().UTC().Truncate(time.Millisecond)
	created := *u
	created.ID = primitive.NewObjectID().Hex()
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, docFromEntity(&created)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return &created, nil
}

func (r *MongoUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepo) findOne(ctx context.Context, filter bson.M) (*entity.User, error) {
	var d userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return d.toEntity(), nil
}

func (r *MongoUserRepo) Update(ctx context.Context, id string, p entity.UserPatch) error {
	set := bson.M{"updatedAt": r.now().UTC().Truncate(time.Millisecond)}
	if p.PasswordSecret != nil {
		set["passwordSecret"] = *p.PasswordSecret
	}
	if p.Verified != nil {
		set["verified"] = *p.Verified
	}
	if p.FirstName != nil {
		set["firstName"] = *p.FirstName
	}
	if p.LastName != nil {
		set["lastName"] = *p.LastName
	}
	if p.Gender != nil {
		set["gender"] = string(*p.Gender)
	}

	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
