package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBanActive(t *testing.T) {
	now := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.True(t, (&User{Banned: true, BanEnds: &future}).BanActive(now))
	assert.False(t, (&User{Banned: true, BanEnds: &past}).BanActive(now), "elapsed window counts as inactive")
	assert.False(t, (&User{Banned: true}).BanActive(now), "banned without an end is treated as inactive")
	assert.False(t, (&User{BanEnds: &future}).BanActive(now))
	assert.False(t, (&User{}).BanActive(now))
}
