package models

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator"
)

// SportTypes lists the sport types offered by the event form
var SportTypes = []string{
	"Football",
	"Basketball",
	"Soccer",
	"Tennis",
	"Baseball",
	"Volleyball",
	"Hockey",
	"Swimming",
	"Running",
	"Cycling",
	"Other",
}

// Event represents a sporting event
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	SportType   string    `json:"sport_type"`
	EventDate   time.Time `json:"event_date"`
	Venues      string    `json:"venues"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RSVP represents a user's attendance record for an event
type RSVP struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the signed-in user resolved from the session cookies
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RSVPSummary is the per-event RSVP state shown next to an event
type RSVPSummary struct {
	Count   int  `json:"count"`
	HasRSVP bool `json:"has_rsvp"`
}

// EventFilters narrows the event list
type EventFilters struct {
	SportType string
	Title     string
}

// TrendingEvent pairs an upcoming event with its RSVP count
type TrendingEvent struct {
	Event
	RSVPCount int `json:"rsvp_count"`
}

// EventInput is the user-editable part of an event
type EventInput struct {
	Title       string    `json:"title" validate:"notblank"`
	SportType   string    `json:"sport_type" validate:"notblank"`
	EventDate   time.Time `json:"event_date" validate:"required"`
	Venues      string    `json:"venues" validate:"notblank"`
	Description *string   `json:"description"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		return f.Kind() == reflect.String && strings.TrimSpace(f.String()) != ""
	})
	return v
}

var inputMessages = map[string]string{
	"Title":     "Title is required",
	"SportType": "Sport type is required",
	"EventDate": "Event date is required",
	"Venues":    "Venues is required",
}

// Normalize trims the text fields and drops a blank description.
func (in *EventInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.SportType = strings.TrimSpace(in.SportType)
	in.Venues = strings.TrimSpace(in.Venues)
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			in.Description = nil
		} else {
			in.Description = &d
		}
	}
}

// Validate checks the input and returns the message for the first failing
// field in form order.
func (in *EventInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := inputMessages[verrs[0].StructField()]; ok {
			return errors.New(msg)
		}
		return errors.New(verrs[0].Field() + " is invalid")
	}
	return err
}
