package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PresentationStatus string

const (
	StatusPending  PresentationStatus = "PENDING"
	StatusAccepted PresentationStatus = "ACCEPTED"
	StatusRejected PresentationStatus = "REJECTED"
)

func (s PresentationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

type Presentation struct {
	Id           primitive.ObjectID `json:"_id" bson:"_id"`
	Created      time.Time          `json:"created" bson:"created"`
	Updated      time.Time          `json:"updated" bson:"updated"`
	Presenter    primitive.ObjectID `json:"presenter" bson:"presenter"`
	Title        string             `json:"title" bson:"title"`
	Synopsis     string             `json:"synopsis" bson:"synopsis"`
	Status       PresentationStatus `json:"status" bson:"status"`
	LocationId   primitive.ObjectID `json:"location_id" bson:"location_id"`
	ConferenceId primitive.ObjectID `json:"conference_id" bson:"conference_id"`
}

func (p *Presentation) Validate() error {
	if p.Presenter.IsZero() {
		return invalid("presenter", "presenter is required")
	}
	if err := required("title", p.Title); err != nil {
		return err
	}
	if err := required("synopsis", p.Synopsis); err != nil {
		return err
	}
	if !p.Status.Valid() {
		return invalid("status", "unknown presentation status %q", p.Status)
	}
	return nil
}

type PresentationPatch struct {
	Title    *string             `json:"title"`
	Synopsis *string             `json:"synopsis"`
	Status   *PresentationStatus `json:"status"`
}

func (p PresentationPatch) Apply(pr *Presentation) (bson.M, error) {
	changes := bson.M{}
	if p.Title != nil {
		if title := strings.TrimSpace(*p.Title); title != pr.Title {
			pr.Title = title
			changes["title"] = title
		}
	}
	if p.Synopsis != nil {
		if synopsis := strings.TrimSpace(*p.Synopsis); synopsis != pr.Synopsis {
			pr.Synopsis = synopsis
			changes["synopsis"] = synopsis
		}
	}
	if p.Status != nil {
		status := PresentationStatus(strings.ToUpper(string(*p.Status)))
		if status != pr.Status {
			pr.Status = status
			changes["status"] = status
		}
	}
	if err := pr.Validate(); err != nil {
		return nil, err
	}
	return changes, nil
}
