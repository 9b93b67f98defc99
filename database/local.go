package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"conference-webapp/model"
)

// LocalStore keeps every document in memory behind one lock, which gives
// each operation the same single-document atomicity MongoDB provides. When
// path is set, the whole database is rewritten to that file as extended JSON
// after every successful mutation, and a mutation whose write fails is undone.
type LocalStore struct {
	mu        sync.Mutex
	path      string
	locations []model.Location
	users     []model.User
}

var _ Store = (*LocalStore)(nil)

type localDB struct {
	Locations []model.Location `bson:"locations"`
	Users     []model.User     `bson:"users"`
}

// NewLocalStore opens the database file at path, creating it when missing.
// An empty path keeps the data in memory only.
func NewLocalStore(path string) (*LocalStore, error) {
	s := &LocalStore{path: path, locations: []model.Location{}, users: []model.User{}}
	if path == "" {
		return s, nil
	}

	fileBytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, s.commit()
	} else if err != nil {
		return nil, fmt.Errorf("read local db: %w", err)
	}

	var db localDB
	if err := bson.UnmarshalExtJSON(fileBytes, false, &db); err != nil {
		return nil, fmt.Errorf("parse local db %s: %w", path, err)
	}
	if db.Locations != nil {
		s.locations = db.Locations
	}
	if db.Users != nil {
		s.users = db.Users
	}
	return s, nil
}

func (s *LocalStore) commit() error {
	if s.path == "" {
		return nil
	}
	dbBytes, err := bson.MarshalExtJSON(localDB{Locations: s.locations, Users: s.users}, false, false)
	if err != nil {
		return fmt.Errorf("encode local db: %w", err)
	}
	if err := os.WriteFile(s.path, dbBytes, 0644); err != nil {
		return fmt.Errorf("write local db: %w", err)
	}
	return nil
}

// apply runs mutate and keeps its effect only once it reached the file. When
// the write fails the documents are restored to what they were before
// mutate ran. The caller holds s.mu.
func (s *LocalStore) apply(mutate func() (UpdateResult, error)) (UpdateResult, error) {
	if s.path == "" {
		return mutate()
	}

	locations, err := cloneAll(s.locations)
	if err != nil {
		return UpdateResult{}, err
	}
	users, err := cloneAll(s.users)
	if err != nil {
		return UpdateResult{}, err
	}

	res, err := mutate()
	if err == nil && res.Matched == 0 {
		return res, nil
	}
	if err == nil {
		err = s.commit()
	}
	if err != nil {
		s.locations, s.users = locations, users
		return UpdateResult{}, err
	}
	return res, nil
}

func (s *LocalStore) InsertLocation(_ context.Context, location *model.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.apply(func() (UpdateResult, error) {
		for _, l := range s.locations {
			if l.Name == location.Name || l.Id == location.Id {
				return UpdateResult{}, fmt.Errorf("insert into %s: %w", LocationsCollection, ErrDuplicate)
			}
		}
		doc, err := clone(*location)
		if err != nil {
			return UpdateResult{}, err
		}
		s.locations = append(s.locations, doc)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
	return err
}

func (s *LocalStore) CountLocationsByName(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, l := range s.locations {
		if l.Name == name {
			count++
		}
	}
	return count, nil
}

func (s *LocalStore) ListLocations(_ context.Context) ([]model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.locations)
}

func (s *LocalStore) FindLocation(_ context.Context, id primitive.ObjectID) (*model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.location(id)
	if l == nil {
		return nil, ErrNoDocuments
	}
	doc, err := clone(*l)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *LocalStore) UpdateLocation(_ context.Context, id primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		l := s.location(id)
		if l == nil || !matchesVersion(l.Updated, version) {
			return UpdateResult{}, nil
		}
		if err := setFields(l, changes); err != nil {
			return UpdateResult{}, err
		}
		l.Updated = model.Stamp(now, l.Updated)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
}

func (s *LocalStore) DeleteLocation(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.apply(func() (UpdateResult, error) {
		for i := range s.locations {
			if s.locations[i].Id == id {
				s.locations = append(s.locations[:i], s.locations[i+1:]...)
				return UpdateResult{Matched: 1, Modified: 1}, nil
			}
		}
		return UpdateResult{}, nil
	})
	return res.Matched, err
}

func (s *LocalStore) PushConference(_ context.Context, locationId primitive.ObjectID, conference model.Conference, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		l := s.location(locationId)
		if l == nil {
			return UpdateResult{}, nil
		}
		doc, err := clone(conference)
		if err != nil {
			return UpdateResult{}, err
		}
		l.Conferences = append(l.Conferences, doc)
		l.Updated = model.Stamp(now, l.Updated)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
}

func (s *LocalStore) UpdateConference(_ context.Context, locationId, conferenceId primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		l, c := s.conference(locationId, conferenceId)
		if c == nil || !matchesVersion(c.Updated, version) {
			return UpdateResult{}, nil
		}
		if err := setFields(c, changes); err != nil {
			return UpdateResult{}, err
		}
		stamp(now, l, c)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
}

func (s *LocalStore) PullConference(_ context.Context, locationId, conferenceId primitive.ObjectID, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		l := s.location(locationId)
		if l == nil {
			return UpdateResult{}, nil
		}
		for i := range l.Conferences {
			if l.Conferences[i].Id == conferenceId {
				l.Conferences = append(l.Conferences[:i], l.Conferences[i+1:]...)
				l.Updated = model.Stamp(now, l.Updated)
				return UpdateResult{Matched: 1, Modified: 1}, nil
			}
		}
		return UpdateResult{}, nil
	})
}

func (s *LocalStore) PushPresentation(_ context.Context, locationId, conferenceId primitive.ObjectID, version time.Time, presentation model.Presentation, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		l, c := s.conference(locationId, conferenceId)
		if c == nil || !matchesVersion(c.Updated, version) {
			return UpdateResult{}, nil
		}
		c.Presentations = append(c.Presentations, presentation)
		stamp(now, l, c)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
}

func (s *LocalStore) UpdatePresentation(_ context.Context, locationId, conferenceId, presentationId primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		l, c := s.conference(locationId, conferenceId)
		if c == nil {
			return UpdateResult{}, nil
		}
		p, ok := c.Presentation(presentationId)
		if !ok || !matchesVersion(p.Updated, version) {
			return UpdateResult{}, nil
		}
		if err := setFields(p, changes); err != nil {
			return UpdateResult{}, err
		}
		p.Updated = model.Stamp(now, p.Updated)
		stamp(now, l, c)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
}

func (s *LocalStore) PullPresentation(_ context.Context, locationId, conferenceId, presentationId primitive.ObjectID, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		l, c := s.conference(locationId, conferenceId)
		if c == nil {
			return UpdateResult{}, nil
		}
		for i := range c.Presentations {
			if c.Presentations[i].Id == presentationId {
				c.Presentations = append(c.Presentations[:i], c.Presentations[i+1:]...)
				stamp(now, l, c)
				return UpdateResult{Matched: 1, Modified: 1}, nil
			}
		}
		return UpdateResult{}, nil
	})
}

func (s *LocalStore) AddAttendee(_ context.Context, locationId, conferenceId primitive.ObjectID, version time.Time, userId primitive.ObjectID, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		l, c := s.conference(locationId, conferenceId)
		if c == nil || !matchesVersion(c.Updated, version) {
			return UpdateResult{}, nil
		}
		if !c.HasAttendee(userId) {
			c.Attendees = append(c.Attendees, userId)
		}
		stamp(now, l, c)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
}

func (s *LocalStore) RemoveAttendee(_ context.Context, locationId, conferenceId, userId primitive.ObjectID, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		l, c := s.conference(locationId, conferenceId)
		if c == nil || !c.HasAttendee(userId) {
			return UpdateResult{}, nil
		}
		c.Attendees = without(c.Attendees, userId)
		stamp(now, l, c)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
}

func (s *LocalStore) ListAttendees(_ context.Context) ([]model.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attendees := []model.Attendee{}
	for _, l := range s.locations {
		for _, c := range l.Conferences {
			for _, userId := range c.Attendees {
				attendees = append(attendees, model.Attendee{
					UserId:       userId,
					ConferenceId: c.Id,
					LocationId:   l.Id,
				})
			}
		}
	}
	return attendees, nil
}

func (s *LocalStore) InsertUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.apply(func() (UpdateResult, error) {
		for _, u := range s.users {
			if u.Username == user.Username || u.Id == user.Id {
				return UpdateResult{}, fmt.Errorf("insert into %s: %w", UsersCollection, ErrDuplicate)
			}
		}
		doc, err := clone(*user)
		if err != nil {
			return UpdateResult{}, err
		}
		s.users = append(s.users, doc)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
	return err
}

func (s *LocalStore) CountUsersByUsername(_ context.Context, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, u := range s.users {
		if u.Username == username {
			count++
		}
	}
	return count, nil
}

func (s *LocalStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.users)
}

func (s *LocalStore) FindUser(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findUser(func(u *model.User) bool { return u.Id == id })
}

func (s *LocalStore) FindUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findUser(func(u *model.User) bool { return u.Username == username })
}

func (s *LocalStore) UpdateUser(_ context.Context, id primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		u := s.user(id)
		if u == nil || !matchesVersion(u.Updated, version) {
			return UpdateResult{}, nil
		}
		if err := setFields(u, changes); err != nil {
			return UpdateResult{}, err
		}
		u.Updated = model.Stamp(now, u.Updated)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
}

func (s *LocalStore) DeleteUser(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.apply(func() (UpdateResult, error) {
		for i := range s.users {
			if s.users[i].Id == id {
				s.users = append(s.users[:i], s.users[i+1:]...)
				return UpdateResult{Matched: 1, Modified: 1}, nil
			}
		}
		return UpdateResult{}, nil
	})
	return res.Matched, err
}

func (s *LocalStore) AddUserReference(_ context.Context, userId primitive.ObjectID, list UserList, ref primitive.ObjectID, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		u := s.user(userId)
		if u == nil {
			return UpdateResult{}, nil
		}
		refs := userList(u, list)
		if refs == nil {
			return UpdateResult{}, fmt.Errorf("unknown user list %q", list)
		}
		if !contains(*refs, ref) {
			*refs = append(*refs, ref)
		}
		u.Updated = model.Stamp(now, u.Updated)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
}

func (s *LocalStore) RemoveUserReference(_ context.Context, userId primitive.ObjectID, list UserList, ref primitive.ObjectID, now time.Time) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(func() (UpdateResult, error) {
		u := s.user(userId)
		if u == nil {
			return UpdateResult{}, nil
		}
		refs := userList(u, list)
		if refs == nil {
			return UpdateResult{}, fmt.Errorf("unknown user list %q", list)
		}
		if !contains(*refs, ref) {
			return UpdateResult{}, nil
		}
		*refs = without(*refs, ref)
		u.Updated = model.Stamp(now, u.Updated)
		return UpdateResult{Matched: 1, Modified: 1}, nil
	})
}

// stamp advances a conference and its location past their stored values.
func stamp(now time.Time, l *model.Location, c *model.Conference) {
	c.Updated = model.Stamp(now, c.Updated)
	l.Updated = model.Stamp(now, l.Updated)
}

func (s *LocalStore) location(id primitive.ObjectID) *model.Location {
	for i := range s.locations {
		if s.locations[i].Id == id {
			return &s.locations[i]
		}
	}
	return nil
}

func (s *LocalStore) conference(locationId, conferenceId primitive.ObjectID) (*model.Location, *model.Conference) {
	l := s.location(locationId)
	if l == nil {
		return nil, nil
	}
	c, ok := l.Conference(conferenceId)
	if !ok {
		return l, nil
	}
	return l, c
}

func (s *LocalStore) user(id primitive.ObjectID) *model.User {
	for i := range s.users {
		if s.users[i].Id == id {
			return &s.users[i]
		}
	}
	return nil
}

func (s *LocalStore) findUser(match func(*model.User) bool) (*model.User, error) {
	for i := range s.users {
		if match(&s.users[i]) {
			doc, err := clone(s.users[i])
			if err != nil {
				return nil, err
			}
			return &doc, nil
		}
	}
	return nil, ErrNoDocuments
}

func userList(u *model.User, list UserList) *[]primitive.ObjectID {
	switch list {
	case UserConferences:
		return &u.Conferences
	case UserPresentations:
		return &u.Presentations
	}
	return nil
}

func matchesVersion(updated, version time.Time) bool {
	return version.IsZero() || updated.Equal(version)
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	kept := make([]primitive.ObjectID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			kept = append(kept, v)
		}
	}
	return kept
}

// setFields applies a $set-style change set to a document by round-tripping
// it through BSON, so the same changes drive both stores.
func setFields[T any](doc *T, changes bson.M) error {
	if len(changes) == 0 {
		return nil
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	for key, value := range changes {
		fields[key] = value
	}
	if raw, err = bson.Marshal(fields); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var updated T
	if err := bson.Unmarshal(raw, &updated); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	*doc = updated
	return nil
}

// clone deep-copies a document so callers never share memory with the store.
func clone[T any](doc T) (T, error) {
	var out T
	raw, err := bson.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("encode document: %w", err)
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

func cloneAll[T any](docs []T) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		c, err := clone(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
