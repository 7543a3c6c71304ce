package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/comptracker/comptracker-api/internal/account"
	"github.com/comptracker/comptracker-api/internal/domain"
)

// Store implements account.Store against the users collection. All
// mutations are single-document updates; atomicity is one account record.

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.find_by_email")
	defer sp.Finish()

	var u domain.User
	err := s.colUsers.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// A token carrying a malformed id resolves to anonymous, not to a
		// storage error.
		return nil, nil
	}
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.find_by_id")
	defer sp.Finish()

	var u domain.User
	err = s.colUsers.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.insert",
		tracer.Tag("kind", u.Kind),
	)
	defer sp.Finish()

	u.CreatedAt = time.Now().UTC()
	res, err := s.colUsers.InsertOne(ctx, u)
	if err != nil {
		sp.SetTag("error", err)
		if IsDup(err) {
			return fmt.Errorf("users insert: %w", account.ErrDuplicate)
		}
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

func (s *Store) AttachProvider(ctx context.Context, id, kind, subjectID, avatar string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.attach_provider",
		tracer.Tag("kind", kind),
	)
	defer sp.Finish()

	set := bson.M{}
	switch kind {
	case domain.KindGoogle:
		set["google_id"] = subjectID
	case domain.KindGitHub:
		set["github_id"] = subjectID
	}
	// Incoming avatar overwrites only when non-empty.
	if avatar != "" {
		set["avatar"] = avatar
	}
	return s.findOneAndSet(ctx, sp, oid, set)
}

func (s *Store) UpdateHandle(ctx context.Context, id, platform, handle string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.update_handle",
		tracer.Tag("platform", platform),
	)
	defer sp.Finish()

	return s.findOneAndSet(ctx, sp, oid, bson.M{"api_handles." + platform: handle})
}

func (s *Store) UpdateProfile(ctx context.Context, id string, fields map[string]string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.update_profile")
	defer sp.Finish()

	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	return s.findOneAndSet(ctx, sp, oid, set)
}

func (s *Store) UpdateStat(ctx context.Context, id, platform string, solved int) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.update_stat",
		tracer.Tag("platform", platform),
	)
	defer sp.Finish()

	_, err = s.colUsers.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"stats." + platform: solved}},
	)
	if err != nil {
		sp.SetTag("error", err)
	}
	return err
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.delete")
	defer sp.Finish()

	_, err = s.colUsers.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		sp.SetTag("error", err)
	}
	return err
}

func (s *Store) findOneAndSet(ctx context.Context, sp tracer.Span, oid primitive.ObjectID, set bson.M) (*domain.User, error) {
	var res *mongo.SingleResult
	if len(set) > 0 {
		res = s.colUsers.FindOneAndUpdate(ctx,
			bson.M{"_id": oid},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		)
	} else {
		// Partial merge with every field empty degrades to a read.
		res = s.colUsers.FindOne(ctx, bson.M{"_id": oid})
	}
	var u domain.User
	if err := res.Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		sp.SetTag("error", err)
		return nil, err
	}
	return &u, nil
}
