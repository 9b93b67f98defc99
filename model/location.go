package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Location struct {
	Id          primitive.ObjectID `json:"_id" bson:"_id"`
	Created     time.Time          `json:"created" bson:"created"`
	Updated     time.Time          `json:"updated" bson:"updated"`
	Name        string             `json:"name" bson:"name"`
	City        string             `json:"city" bson:"city"`
	RoomCount   int                `json:"room_count" bson:"room_count"`
	PictureURL  *string            `json:"picture_url" bson:"picture_url"`
	State       State              `json:"state" bson:"state"`
	Conferences []Conference       `json:"conferences" bson:"conferences"`
}

func (l *Location) Validate() error {
	if err := required("name", l.Name); err != nil {
		return err
	}
	if err := required("city", l.City); err != nil {
		return err
	}
	if err := nonNegative("room_count", l.RoomCount); err != nil {
		return err
	}
	if !l.State.Valid() {
		return invalid("state", "invalid state: %q", l.State.Name)
	}
	return nil
}

// Conference returns the embedded conference with the given id. Ids are
// unique within a location, so the first match is the only one.
func (l *Location) Conference(id primitive.ObjectID) (*Conference, bool) {
	for i := range l.Conferences {
		if l.Conferences[i].Id == id {
			return &l.Conferences[i], true
		}
	}
	return nil, false
}

// LocationPatch carries the fields of a partial update; nil means untouched.
type LocationPatch struct {
	Name      *string `json:"name"`
	City      *string `json:"city"`
	RoomCount *int    `json:"room_count"`
	State     *string `json:"state"`

	// Picture, when set, finds the picture of a moved location.
	Picture func(city, stateAbbr string) *string `json:"-"`
}

// Apply validates the patch, writes it into l and returns the fields whose
// value actually changed, keyed by their document name.
func (p LocationPatch) Apply(l *Location) (bson.M, error) {
	changes := bson.M{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if err := required("name", name); err != nil {
			return nil, err
		}
		if name != l.Name {
			l.Name = name
			changes["name"] = name
		}
	}
	if p.City != nil {
		city := strings.TrimSpace(*p.City)
		if err := required("city", city); err != nil {
			return nil, err
		}
		if city != l.City {
			l.City = city
			changes["city"] = city
		}
	}
	if p.RoomCount != nil {
		if err := nonNegative("room_count", *p.RoomCount); err != nil {
			return nil, err
		}
		if *p.RoomCount != l.RoomCount {
			l.RoomCount = *p.RoomCount
			changes["room_count"] = *p.RoomCount
		}
	}
	if p.State != nil {
		state, ok := LookupState(*p.State)
		if !ok {
			return nil, invalid("state", "invalid state: %q", *p.State)
		}
		if state != l.State {
			l.State = state
			changes["state"] = state
		}
	}
	_, moved := changes["city"]
	if _, ok := changes["state"]; ok {
		moved = true
	}
	if moved && p.Picture != nil {
		picture := p.Picture(l.City, l.State.Abbreviation)
		if !samePicture(picture, l.PictureURL) {
			l.PictureURL = picture
			changes["picture_url"] = picture
		}
	}
	return changes, nil
}

func samePicture(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
