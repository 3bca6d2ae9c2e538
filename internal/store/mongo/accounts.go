// Package mongo provides the document-store backed accounts store. It
// implements the same contract as the postgres store; the compare-and-clear
// consumptions use single conditional UpdateOne calls, which MongoDB applies
// atomically per document.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"UserAuthserver/internal/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultDBName         = "userauth"
	accountsCollection    = "accounts"
	connectTimeout        = 10 * time.Second
	disconnectTimeout = 5 * time.Second
)

type pendingCodeDoc struct {
	CodeHash  string    `bson:"code_hash"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type accountDoc struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`

	DisplayName string `bson:"display_name,omitempty"`
	FirstName   string `bson:"first_name,omitempty"`
	LastName    string `bson:"last_name,omitempty"`
	AvatarURL   string `bson:"avatar_url,omitempty"`

	EmailVerified    bool            `bson:"email_verified"`
	PendingEmailCode *pendingCodeDoc `bson:"pending_email_code,omitempty"`
	PendingResetCode *pendingCodeDoc `bson:"pending_reset_code,omitempty"`

	LastLoginAt      *time.Time `bson:"last_login_at,omitempty"`
	FailedLoginCount int        `bson:"failed_login_count"`
	LockedUntil      *time.Time `bson:"locked_until,omitempty"`
	Active           bool       `bson:"active"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type AccountsStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Open connects, ensures the unique email index and returns the store.
func Open(ctx context.Context, uri, dbName string) (*AccountsStore, error) {
	if dbName == "" {
		dbName = DefaultDBName
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(dbName).Collection(accountsCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("accounts_email_uq"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create email index: %w", err)
	}

	return &AccountsStore{client: client, coll: coll}, nil
}

func (s *AccountsStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *AccountsStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *AccountsStore) CreateAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	a.ID = uuid.NewString()
	if _, err := s.coll.InsertOne(ctx, toDoc(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Account{}, domain.ErrEmailTaken
		}
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (s *AccountsStore) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.findOne(ctx, bson.M{"email": email}, "get account by email")
}

func (s *AccountsStore) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id}, "get account by id")
}

func (s *AccountsStore) findOne(ctx context.Context, filter bson.M, op string) (domain.Account, error) {
	var doc accountDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	return fromDoc(doc), nil
}

func (s *AccountsStore) SetPendingEmailCode(ctx context.Context, id string, code domain.PendingCode, when time.Time) error {
	return s.setPendingCode(ctx, id, "pending_email_code", code, when)
}

func (s *AccountsStore) SetPendingResetCode(ctx context.Context, id string, code domain.PendingCode, when time.Time) error {
	return s.setPendingCode(ctx, id, "pending_reset_code", code, when)
}

func (s *AccountsStore) setPendingCode(ctx context.Context, id, field string, code domain.PendingCode, when time.Time) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			field:        pendingCodeDoc{CodeHash: code.CodeHash, ExpiresAt: code.ExpiresAt},
			"updated_at": when,
		},
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) ConsumeEmailCode(ctx context.Context, id, codeHash string, now time.Time) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, bson.M{
		"_id":    id,
		"active": true,
		"email_verified":                false,
		"pending_email_code.code_hash":  codeHash,
		"pending_email_code.expires_at": bson.M{"$gt": now},
	}, bson.M{
		"$set":   bson.M{"email_verified": true, "updated_at": now},
		"$unset": bson.M{"pending_email_code": ""},
	})
	if err != nil {
		return false, fmt.Errorf("consume email code: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *AccountsStore) ConsumeResetCode(ctx context.Context, id, codeHash, newPasswordHash string, now time.Time) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, bson.M{
		"_id":    id,
		"active": true,
		"pending_reset_code.code_hash":  codeHash,
		"pending_reset_code.expires_at": bson.M{"$gt": now},
	}, bson.M{
		"$set":   bson.M{"password_hash": newPasswordHash, "updated_at": now},
		"$unset": bson.M{"pending_reset_code": ""},
	})
	if err != nil {
		return false, fmt.Errorf("consume reset code: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *AccountsStore) RecordLogin(ctx context.Context, id string, when time.Time) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"last_login_at": when, "failed_login_count": 0, "updated_at": when},
		"$unset": bson.M{"locked_until": ""},
	})
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) RecordFailedLogin(ctx context.Context, id string, failedCount int, lockedUntil *time.Time, when time.Time) error {
	set := bson.M{"failed_login_count": failedCount, "updated_at": when}
	update := bson.M{"$set": set}
	if lockedUntil != nil {
		set["locked_until"] = *lockedUntil
	} else {
		update["$unset"] = bson.M{"locked_until": ""}
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate, when time.Time) (domain.Account, error) {
	set := bson.M{"updated_at": when}
	if upd.DisplayName != nil {
		set["display_name"] = *upd.DisplayName
	}
	if upd.FirstName != nil {
		set["first_name"] = *upd.FirstName
	}
	if upd.LastName != nil {
		set["last_name"] = *upd.LastName
	}
	if upd.AvatarURL != nil {
		set["avatar_url"] = *upd.AvatarURL
	}

	var doc accountDoc
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("update profile: %w", err)
	}
	return fromDoc(doc), nil
}

func (s *AccountsStore) Deactivate(ctx context.Context, id string, when time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{"$set": bson.M{"active": false, "updated_at": when}},
	)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if res.ModifiedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AccountsStore) PurgeExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for field, filter := range map[string]bson.M{
		"pending_email_code": {"pending_email_code.expires_at": bson.M{"$lte": now}},
		"pending_reset_code": {"pending_reset_code.expires_at": bson.M{"$lte": now}},
	} {
		res, err := s.coll.UpdateMany(ctx, filter, bson.M{
			"$unset": bson.M{field: ""},
			"$set":   bson.M{"updated_at": now},
		})
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", field, err)
		}
		total += res.ModifiedCount
	}
	return total, nil
}

func toDoc(a domain.Account) accountDoc {
	doc := accountDoc{
		ID:               a.ID,
		Email:            a.Email,
		PasswordHash:     a.PasswordHash,
		DisplayName:      a.DisplayName,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		AvatarURL:        a.AvatarURL,
		EmailVerified:    a.EmailVerified,
		LastLoginAt:      a.LastLoginAt,
		FailedLoginCount: a.FailedLoginCount,
		LockedUntil:      a.LockedUntil,
		Active:           a.Active,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
	if a.PendingEmailCode != nil {
		doc.PendingEmailCode = &pendingCodeDoc{CodeHash: a.PendingEmailCode.CodeHash, ExpiresAt: a.PendingEmailCode.ExpiresAt}
	}
	if a.PendingResetCode != nil {
		doc.PendingResetCode = &pendingCodeDoc{CodeHash: a.PendingResetCode.CodeHash, ExpiresAt: a.PendingResetCode.ExpiresAt}
	}
	return doc
}

func fromDoc(doc accountDoc) domain.Account {
	a := domain.Account{
		ID:               doc.ID,
		Email:            doc.Email,
		PasswordHash:     doc.PasswordHash,
		DisplayName:      doc.DisplayName,
		FirstName:        doc.FirstName,
		LastName:         doc.LastName,
		AvatarURL:        doc.AvatarURL,
		EmailVerified:    doc.EmailVerified,
		LastLoginAt:      doc.LastLoginAt,
		FailedLoginCount: doc.FailedLoginCount,
		LockedUntil:      doc.LockedUntil,
		Active:           doc.Active,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
	if doc.PendingEmailCode != nil {
		a.PendingEmailCode = &domain.PendingCode{CodeHash: doc.PendingEmailCode.CodeHash, ExpiresAt: doc.PendingEmailCode.ExpiresAt}
	}
	if doc.PendingResetCode != nil {
		a.PendingResetCode = &domain.PendingCode{CodeHash: doc.PendingResetCode.CodeHash, ExpiresAt: doc.PendingResetCode.ExpiresAt}
	}
	return a
}
