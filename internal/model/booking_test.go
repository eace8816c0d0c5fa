package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatusTerminal(t *testing.T) {
	assert.True(t, BookingCompleted.Terminal())
	assert.True(t, BookingCancelled.Terminal())

	for _, st := range []BookingStatus{BookingWaitlist, BookingOffered, BookingReserved, BookingFulfilled} {
		assert.False(t, st.Terminal(), "%s is not terminal", st)
	}
}
