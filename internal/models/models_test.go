package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() EventInput {
	return EventInput{
		Title:     "Sunday 5-a-side",
		SportType: "Football",
		EventDate: time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC),
		Venues:    "Hackney Marshes",
	}
}

func TestEventInput_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *EventInput)
		want   string
	}{
		{"valid", func(in *EventInput) {}, ""},
		{"blank title", func(in *EventInput) { in.Title = "   " }, "Title is required"},
		{"blank sport", func(in *EventInput) { in.SportType = "" }, "Sport type is required"},
		{"zero date", func(in *EventInput) { in.EventDate = time.Time{} }, "Event date is required"},
		{"blank venues", func(in *EventInput) { in.Venues = "\t" }, "Venues is required"},
		{"title reported first", func(in *EventInput) { in.Title = ""; in.Venues = "" }, "Title is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := in.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestEventInput_Normalize(t *testing.T) {
	blank := "  "
	desc := "  bring boots "
	in := EventInput{Title: "  Match ", SportType: " Tennis", Venues: "Court 3 ", Description: &blank}
	in.Normalize()

	assert.Equal(t, "Match", in.Title)
	assert.Equal(t, "Tennis", in.SportType)
	assert.Equal(t, "Court 3", in.Venues)
	assert.Nil(t, in.Description)

	in.Description = &desc
	in.Normalize()
	require.NotNil(t, in.Description)
	assert.Equal(t, "bring boots", *in.Description)
}
