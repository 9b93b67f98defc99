package model

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Conference struct {
	Id               primitive.ObjectID   `json:"_id" bson:"_id"`
	Created          time.Time            `json:"created" bson:"created"`
	Updated          time.Time            `json:"updated" bson:"updated"`
	Name             string               `json:"name" bson:"name"`
	Starts           time.Time            `json:"starts" bson:"starts"`
	Ends             time.Time            `json:"ends" bson:"ends"`
	Description      string               `json:"description" bson:"description"`
	MaxPresentations int                  `json:"max_presentations" bson:"max_presentations"`
	MaxAttendees     int                  `json:"max_attendees" bson:"max_attendees"`
	Attendees        []primitive.ObjectID `json:"attendees" bson:"attendees"`
	Presentations    []Presentation       `json:"presentations" bson:"presentations"`
	LocationId       primitive.ObjectID   `json:"location_id" bson:"location_id"`
}

func (c *Conference) Validate() error {
	if err := required("name", c.Name); err != nil {
		return err
	}
	if c.Starts.IsZero() {
		return invalid("starts", "starts is required")
	}
	if c.Ends.IsZero() {
		return invalid("ends", "ends is required")
	}
	if c.Ends.Before(c.Starts) {
		return invalid("ends", "conference cannot end (%s) before it starts (%s)",
			c.Ends.Format(dateLayout), c.Starts.Format(dateLayout))
	}
	if err := nonNegative("max_presentations", c.MaxPresentations); err != nil {
		return err
	}
	if err := nonNegative("max_attendees", c.MaxAttendees); err != nil {
		return err
	}
	if len(c.Attendees) > c.MaxAttendees {
		return invalid("max_attendees", "max_attendees %d is below the %d registered attendees",
			c.MaxAttendees, len(c.Attendees))
	}
	if len(c.Presentations) > c.MaxPresentations {
		return invalid("max_presentations", "max_presentations %d is below the %d submitted presentations",
			c.MaxPresentations, len(c.Presentations))
	}
	return nil
}

func (c *Conference) Presentation(id primitive.ObjectID) (*Presentation, bool) {
	for i := range c.Presentations {
		if c.Presentations[i].Id == id {
			return &c.Presentations[i], true
		}
	}
	return nil, false
}

func (c *Conference) HasAttendee(userId primitive.ObjectID) bool {
	return lo.Contains(c.Attendees, userId)
}

func (c *Conference) AcceptsAttendee() error {
	if len(c.Attendees) >= c.MaxAttendees {
		return invalid("max_attendees", "conference %q is full: %d of %d attendees",
			c.Name, len(c.Attendees), c.MaxAttendees)
	}
	return nil
}

func (c *Conference) AcceptsPresentation() error {
	if len(c.Presentations) >= c.MaxPresentations {
		return invalid("max_presentations", "conference %q accepts no more presentations: %d of %d",
			c.Name, len(c.Presentations), c.MaxPresentations)
	}
	return nil
}

type ConferencePatch struct {
	Name             *string    `json:"name"`
	Starts           *time.Time `json:"-"`
	Ends             *time.Time `json:"-"`
	Description      *string    `json:"description"`
	MaxPresentations *int       `json:"max_presentations"`
	MaxAttendees     *int       `json:"max_attendees"`
}

// Apply writes the patch into c, re-validates the whole conference and
// returns the changed fields.
func (p ConferencePatch) Apply(c *Conference) (bson.M, error) {
	changes := bson.M{}
	if p.Name != nil {
		if name := strings.TrimSpace(*p.Name); name != c.Name {
			c.Name = name
			changes["name"] = name
		}
	}
	if p.Starts != nil && !p.Starts.Equal(c.Starts) {
		c.Starts = *p.Starts
		changes["starts"] = *p.Starts
	}
	if p.Ends != nil && !p.Ends.Equal(c.Ends) {
		c.Ends = *p.Ends
		changes["ends"] = *p.Ends
	}
	if p.Description != nil && *p.Description != c.Description {
		c.Description = *p.Description
		changes["description"] = *p.Description
	}
	if p.MaxPresentations != nil && *p.MaxPresentations != c.MaxPresentations {
		c.MaxPresentations = *p.MaxPresentations
		changes["max_presentations"] = *p.MaxPresentations
	}
	if p.MaxAttendees != nil && *p.MaxAttendees != c.MaxAttendees {
		c.MaxAttendees = *p.MaxAttendees
		changes["max_attendees"] = *p.MaxAttendees
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return changes, nil
}
