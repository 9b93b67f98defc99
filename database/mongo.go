package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"conference-webapp/model"
)

type MongoStore struct {
	locations *mongo.Collection
	users     *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		locations: db.Collection(LocationsCollection),
		users:     db.Collection(UsersCollection),
	}
}

// Connect dials the deployment and checks it answers before returning.
func Connect(ctx context.Context, connString, dbName string) (*mongo.Client, *MongoStore, error) {
	clientOptions := options.Client().ApplyURI(connString)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to the db: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("db is not available: %w", err)
	}

	return client, NewMongoStore(client.Database(dbName)), nil
}

// EnsureIndexes creates the unique indexes backing location and user names.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	if _, err := s.locations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("create locations.name index: %w", err)
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("create users.username index: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertLocation(ctx context.Context, location *model.Location) error {
	return insert(ctx, s.locations, location)
}

func (s *MongoStore) CountLocationsByName(ctx context.Context, name string) (int64, error) {
	count, err := s.locations.CountDocuments(ctx, bson.M{"name": name})
	if err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	return count, nil
}

func (s *MongoStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	return findAll[model.Location](ctx, s.locations, bson.M{})
}

func (s *MongoStore) FindLocation(ctx context.Context, id primitive.ObjectID) (*model.Location, error) {
	return findOne[model.Location](ctx, s.locations, bson.M{"_id": id})
}

func (s *MongoStore) UpdateLocation(ctx context.Context, id primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error) {
	filter := bson.M{"_id": id}
	if !version.IsZero() {
		filter["updated"] = version
	}
	set := prefixed("", changes)
	set["updated"] = now
	return update(ctx, s.locations, filter, bson.M{"$set": set})
}

func (s *MongoStore) DeleteLocation(ctx context.Context, id primitive.ObjectID) (int64, error) {
	return deleteOne(ctx, s.locations, id)
}

func (s *MongoStore) PushConference(ctx context.Context, locationId primitive.ObjectID, conference model.Conference, now time.Time) (UpdateResult, error) {
	return s.updateLocation(ctx, bson.M{"_id": locationId}, func(l *model.Location) bson.M {
		return bson.M{
			"$push": bson.M{"conferences": conference},
			"$set":  bson.M{"updated": model.Stamp(now, l.Updated)},
		}
	})
}

// UpdateConference sets fields on the matched element through the positional
// operator; the element match carries the version guard.
func (s *MongoStore) UpdateConference(ctx context.Context, locationId, conferenceId primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error) {
	filter := bson.M{"_id": locationId, "conferences": bson.M{"$elemMatch": element(conferenceId, version)}}
	return s.updateLocation(ctx, filter, func(l *model.Location) bson.M {
		set := prefixed("conferences.$.", changes)
		set["conferences.$.updated"] = model.Stamp(now, conferenceUpdated(l, conferenceId))
		set["updated"] = model.Stamp(now, l.Updated)
		return bson.M{"$set": set}
	})
}

func (s *MongoStore) PullConference(ctx context.Context, locationId, conferenceId primitive.ObjectID, now time.Time) (UpdateResult, error) {
	filter := bson.M{"_id": locationId, "conferences._id": conferenceId}
	return s.updateLocation(ctx, filter, func(l *model.Location) bson.M {
		return bson.M{
			"$pull": bson.M{"conferences": bson.M{"_id": conferenceId}},
			"$set":  bson.M{"updated": model.Stamp(now, l.Updated)},
		}
	})
}

func (s *MongoStore) PushPresentation(ctx context.Context, locationId, conferenceId primitive.ObjectID, version time.Time, presentation model.Presentation, now time.Time) (UpdateResult, error) {
	filter := bson.M{"_id": locationId, "conferences": bson.M{"$elemMatch": element(conferenceId, version)}}
	return s.updateLocation(ctx, filter, func(l *model.Location) bson.M {
		return bson.M{
			"$push": bson.M{"conferences.$.presentations": presentation},
			"$set":  conferenceStamps("conferences.$.", l, conferenceId, now),
		}
	})
}

// UpdatePresentation is two arrays deep, which the positional operator
// cannot address, so it targets the elements through array filters.
func (s *MongoStore) UpdatePresentation(ctx context.Context, locationId, conferenceId, presentationId primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error) {
	const target = "conferences.$[c].presentations.$[p]."
	filter := bson.M{
		"_id": locationId,
		"conferences": bson.M{"$elemMatch": bson.M{
			"_id":           conferenceId,
			"presentations": bson.M{"$elemMatch": element(presentationId, version)},
		}},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"c._id": conferenceId},
			bson.M{"p._id": presentationId},
		},
	})
	return s.updateLocation(ctx, filter, func(l *model.Location) bson.M {
		set := conferenceStamps("conferences.$[c].", l, conferenceId, now)
		for key, value := range prefixed(target, changes) {
			set[key] = value
		}
		var prev time.Time
		if c, ok := l.Conference(conferenceId); ok {
			if p, ok := c.Presentation(presentationId); ok {
				prev = p.Updated
			}
		}
		set[target+"updated"] = model.Stamp(now, prev)
		return bson.M{"$set": set}
	}, opts)
}

func (s *MongoStore) PullPresentation(ctx context.Context, locationId, conferenceId, presentationId primitive.ObjectID, now time.Time) (UpdateResult, error) {
	filter := bson.M{
		"_id": locationId,
		"conferences": bson.M{"$elemMatch": bson.M{
			"_id":               conferenceId,
			"presentations._id": presentationId,
		}},
	}
	return s.updateLocation(ctx, filter, func(l *model.Location) bson.M {
		return bson.M{
			"$pull": bson.M{"conferences.$.presentations": bson.M{"_id": presentationId}},
			"$set":  conferenceStamps("conferences.$.", l, conferenceId, now),
		}
	})
}

func (s *MongoStore) AddAttendee(ctx context.Context, locationId, conferenceId primitive.ObjectID, version time.Time, userId primitive.ObjectID, now time.Time) (UpdateResult, error) {
	filter := bson.M{"_id": locationId, "conferences": bson.M{"$elemMatch": element(conferenceId, version)}}
	return s.updateLocation(ctx, filter, func(l *model.Location) bson.M {
		return bson.M{
			"$addToSet": bson.M{"conferences.$.attendees": userId},
			"$set":      conferenceStamps("conferences.$.", l, conferenceId, now),
		}
	})
}

func (s *MongoStore) RemoveAttendee(ctx context.Context, locationId, conferenceId, userId primitive.ObjectID, now time.Time) (UpdateResult, error) {
	filter := bson.M{
		"_id":         locationId,
		"conferences": bson.M{"$elemMatch": bson.M{"_id": conferenceId, "attendees": userId}},
	}
	return s.updateLocation(ctx, filter, func(l *model.Location) bson.M {
		return bson.M{
			"$pull": bson.M{"conferences.$.attendees": userId},
			"$set":  conferenceStamps("conferences.$.", l, conferenceId, now),
		}
	})
}

// ListAttendees flattens every attendee of every conference into one row.
func (s *MongoStore) ListAttendees(ctx context.Context) ([]model.Attendee, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$conferences"}},
		{{Key: "$unwind", Value: "$conferences.attendees"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "user_id", Value: "$conferences.attendees"},
			{Key: "conference_id", Value: "$conferences._id"},
			{Key: "location_id", Value: "$_id"},
		}}},
	}
	cur, err := s.locations.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate attendees: %w", err)
	}
	return drain[model.Attendee](ctx, cur)
}

func (s *MongoStore) InsertUser(ctx context.Context, user *model.User) error {
	return insert(ctx, s.users, user)
}

func (s *MongoStore) CountUsersByUsername(ctx context.Context, username string) (int64, error) {
	count, err := s.users.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]model.User, error) {
	return findAll[model.User](ctx, s.users, bson.M{})
}

func (s *MongoStore) FindUser(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return findOne[model.User](ctx, s.users, bson.M{"_id": id})
}

func (s *MongoStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return findOne[model.User](ctx, s.users, bson.M{"username": username})
}

func (s *MongoStore) UpdateUser(ctx context.Context, id primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error) {
	filter := bson.M{"_id": id}
	if !version.IsZero() {
		filter["updated"] = version
	}
	set := prefixed("", changes)
	set["updated"] = now
	return update(ctx, s.users, filter, bson.M{"$set": set})
}

func (s *MongoStore) DeleteUser(ctx context.Context, id primitive.ObjectID) (int64, error) {
	return deleteOne(ctx, s.users, id)
}

func (s *MongoStore) AddUserReference(ctx context.Context, userId primitive.ObjectID, list UserList, ref primitive.ObjectID, now time.Time) (UpdateResult, error) {
	return s.updateUser(ctx, bson.M{"_id": userId}, func(u *model.User) bson.M {
		return bson.M{
			"$addToSet": bson.M{string(list): ref},
			"$set":      bson.M{"updated": model.Stamp(now, u.Updated)},
		}
	})
}

func (s *MongoStore) RemoveUserReference(ctx context.Context, userId primitive.ObjectID, list UserList, ref primitive.ObjectID, now time.Time) (UpdateResult, error) {
	return s.updateUser(ctx, bson.M{"_id": userId, string(list): ref}, func(u *model.User) bson.M {
		return bson.M{
			"$pull": bson.M{string(list): ref},
			"$set":  bson.M{"updated": model.Stamp(now, u.Updated)},
		}
	})
}

func (s *MongoStore) updateLocation(ctx context.Context, filter bson.M, change func(*model.Location) bson.M, opts ...*options.UpdateOptions) (UpdateResult, error) {
	return stamped(ctx, s.locations, filter, func(l *model.Location) time.Time { return l.Updated }, change, opts...)
}

func (s *MongoStore) updateUser(ctx context.Context, filter bson.M, change func(*model.User) bson.M) (UpdateResult, error) {
	return stamped(ctx, s.users, filter, func(u *model.User) time.Time { return u.Updated }, change)
}

// stamped runs change against the document filter selects as it is stored
// right now, so the stamps it computes land after the stored ones. The write
// is guarded by the document's `updated`; when another write slipped in
// between, the document is read again and the update retried.
func stamped[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, updated func(*T) time.Time, change func(*T) bson.M, opts ...*options.UpdateOptions) (UpdateResult, error) {
	var res UpdateResult
	err := retry.Do(ctx, contentionBackoff(), func(ctx context.Context) error {
		doc, err := findOne[T](ctx, coll, filter)
		if errors.Is(err, ErrNoDocuments) {
			res = UpdateResult{}
			return nil
		}
		if err != nil {
			return err
		}

		guarded := bson.M{"updated": updated(doc)}
		for key, value := range filter {
			guarded[key] = value
		}
		if res, err = update(ctx, coll, guarded, change(doc), opts...); err != nil {
			return err
		}
		if res.Matched == 0 {
			return retry.RetryableError(fmt.Errorf("update %s: %w", coll.Name(), ErrContended))
		}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return res, nil
}

func contentionBackoff() retry.Backoff {
	return retry.WithMaxRetries(4, retry.NewExponential(5*time.Millisecond))
}

func conferenceUpdated(l *model.Location, conferenceId primitive.ObjectID) time.Time {
	if c, ok := l.Conference(conferenceId); ok {
		return c.Updated
	}
	return time.Time{}
}

// conferenceStamps sets `updated` on the conference at path and on l.
func conferenceStamps(path string, l *model.Location, conferenceId primitive.ObjectID, now time.Time) bson.M {
	return bson.M{
		path + "updated": model.Stamp(now, conferenceUpdated(l, conferenceId)),
		"updated":        model.Stamp(now, l.Updated),
	}
}

func element(id primitive.ObjectID, version time.Time) bson.M {
	match := bson.M{"_id": id}
	if !version.IsZero() {
		match["updated"] = version
	}
	return match
}

func prefixed(prefix string, changes bson.M) bson.M {
	set := bson.M{}
	for key, value := range changes {
		set[prefix+key] = value
	}
	return set
}

func insert(ctx context.Context, coll *mongo.Collection, doc interface{}) error {
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert into %s: %w", coll.Name(), ErrDuplicate)
		}
		return fmt.Errorf("insert into %s: %w", coll.Name(), err)
	}
	return nil
}

func update(ctx context.Context, coll *mongo.Collection, filter, change bson.M, opts ...*options.UpdateOptions) (UpdateResult, error) {
	res, err := coll.UpdateOne(ctx, filter, change, opts...)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: %w", coll.Name(), err)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func deleteOne(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) (int64, error) {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	var doc T
	if err := coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoDocuments
		}
		return nil, fmt.Errorf("read from %s: %w", coll.Name(), err)
	}
	return &doc, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) ([]T, error) {
	cur, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("read from %s: %w", coll.Name(), err)
	}
	return drain[T](ctx, cur)
}

func drain[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)

	docs := []T{}
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate cursor: %w", err)
	}
	return docs, nil
}
