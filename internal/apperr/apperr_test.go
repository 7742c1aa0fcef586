package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom_PassesRedirectThrough(t *testing.T) {
	r := RedirectTo("/events")
	wrapped := fmt.Errorf("loading page: %w", r)

	got := From(wrapped)

	assert.Same(t, r, got)
	rd, ok := AsRedirect(got)
	assert.True(t, ok)
	assert.Equal(t, http.StatusSeeOther, rd.Status)
}

func TestFrom_KeepsTaggedErrors(t *testing.T) {
	e := New(KindConflict, "You have already RSVP'd for this event")
	got := From(fmt.Errorf("add rsvp: %w", e))

	assert.Same(t, e, got)
	assert.Equal(t, KindConflict, KindOf(got))
}

func TestFrom_UntaggedBecomesInternal(t *testing.T) {
	got := From(errors.New("boom"))

	assert.Equal(t, KindInternal, KindOf(got))
	assert.Equal(t, "boom", Message(got))
	assert.Nil(t, From(nil))
}

func TestKindHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindAuthentication: http.StatusUnauthorized,
		KindAuthorization:  http.StatusForbidden,
		KindValidation:     http.StatusBadRequest,
		KindNotFound:       http.StatusNotFound,
		KindConflict:       http.StatusConflict,
		KindRateLimit:      http.StatusTooManyRequests,
		KindInternal:       http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}

func TestIs(t *testing.T) {
	err := Wrap(KindNotFound, "event not found", errors.New("no rows"))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))
	assert.Equal(t, "no rows", errors.Unwrap(err).Error())
}
