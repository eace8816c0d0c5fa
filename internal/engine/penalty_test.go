package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkiq/parkiq-server/internal/model"
)

func TestRecordNoShowWarnsBeforeThreshold(t *testing.T) {
	users := newMemUsers(model.User{ID: "u1", Tier: 3})
	audit := newMemAudit()
	p := NewPenalizer(users, audit)
	at := time.Date(2026, time.March, 2, 9, 20, 0, 0, time.UTC)

	for want := 1; want <= 2; want++ {
		count, banned, err := p.RecordNoShow(context.Background(), "u1", at)
		require.NoError(t, err)
		assert.Equal(t, want, count)
		assert.False(t, banned)
	}

	u, _ := users.GetByID(context.Background(), "u1")
	assert.False(t, u.Banned)
	assert.Contains(t, audit.actions(), "no_show_warning")
}

func TestRecordNoShowBansAtThreshold(t *testing.T) {
	users := newMemUsers(model.User{ID: "u1", Tier: 3, NoShows: 2})
	audit := newMemAudit()
	p := NewPenalizer(users, audit)
	at := time.Date(2026, time.March, 2, 9, 20, 0, 0, time.UTC)

	count, banned, err := p.RecordNoShow(context.Background(), "u1", at)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.True(t, banned)

	u, _ := users.GetByID(context.Background(), "u1")
	assert.True(t, u.Banned)
	require.NotNil(t, u.BanEnds)
	assert.Equal(t, at.Add(BanDuration), *u.BanEnds)
	assert.Contains(t, audit.actions(), "no_show_ban")
}

func TestRecordNoShowKeepsBanningPastThreshold(t *testing.T) {
	users := newMemUsers(model.User{ID: "u1", Tier: 3, NoShows: 5})
	p := NewPenalizer(users, newMemAudit())
	at := time.Now()

	count, banned, err := p.RecordNoShow(context.Background(), "u1", at)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
	assert.True(t, banned)
}

func TestRecordNoShowUnknownUser(t *testing.T) {
	p := NewPenalizer(newMemUsers(), newMemAudit())

	_, _, err := p.RecordNoShow(context.Background(), "ghost", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}
