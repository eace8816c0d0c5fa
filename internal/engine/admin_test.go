package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/parkiq/parkiq-server/internal/model"
	"github.com/parkiq/parkiq-server/internal/utils"
)

func TestForceBookSkipsWaitlistAndVIP(t *testing.T) {
	env := newTestEnv(vipSpot("V1", 1), regular("S2", 2))
	env.addUser("u1", 1, 0, 0)

	spot, err := env.coord.ForceBook(context.Background(), "admin", "u1")
	require.NoError(t, err)
	assert.Equal(t, "S2", spot.ID, "reserved tier is off-limits even to admins")
	assert.Equal(t, model.SpotReserved, env.spotState("S2"))
	assert.True(t, env.coord.Timers().Active("S2"))

	b := env.bookings.byUser("u1")
	require.NotNil(t, b)
	assert.True(t, b.ForceBooked)
	assert.Equal(t, float64(100), b.Score)

	assert.Contains(t, env.audit.actions(), "admin_force_book")
}

func TestForceBookWithNoFreeSpot(t *testing.T) {
	env := newTestEnv(vipSpot("V1", 1))
	env.addUser("u1", 1, 0, 0)

	_, err := env.coord.ForceBook(context.Background(), "admin", "u1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestForceBookUnknownUser(t *testing.T) {
	env := newTestEnv(regular("S1", 1))

	_, err := env.coord.ForceBook(context.Background(), "admin", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearPenaltyResetsViolationsAndBan(t *testing.T) {
	env := newTestEnv()
	env.addUser("u1", 3, 3, 0)
	until := env.now.Add(24 * time.Hour)
	env.users.users["u1"].Banned = true
	env.users.users["u1"].BanEnds = &until

	require.NoError(t, env.coord.ClearPenalty(context.Background(), "admin", "u1"))

	u, _ := env.users.GetByID(context.Background(), "u1")
	assert.Equal(t, 0, u.NoShows)
	assert.False(t, u.Banned)
	assert.Nil(t, u.BanEnds)
}

func TestGuestPassPrefersVIPSpot(t *testing.T) {
	env := newTestEnv(regular("S1", 1), vipSpot("V1", 2))

	res, err := env.coord.GuestPass(context.Background(), "admin", "Visiting Vendor", "$2a$10$hash")
	require.NoError(t, err)
	assert.Equal(t, "V1", res.SpotID, "guests are the one path onto the reserved tier")
	assert.True(t, strings.HasPrefix(res.Code, "QR-"))

	guest, err := env.users.GetByID(context.Background(), res.GuestID)
	require.NoError(t, err)
	assert.Equal(t, "guest", guest.Role)
	assert.Equal(t, 5, guest.Tier)
	assert.Equal(t, "$2a$10$hash", guest.AccessHash)
}

func TestGuestPassIssuedEvenWhenLotFull(t *testing.T) {
	env := newTestEnv()

	res, err := env.coord.GuestPass(context.Background(), "admin", "Visiting Vendor", "")
	require.NoError(t, err)
	assert.Empty(t, res.SpotID)
	assert.NotEmpty(t, res.GuestID)
}

func TestGuestPassRequiresName(t *testing.T) {
	env := newTestEnv(regular("S1", 1))

	_, err := env.coord.GuestPass(context.Background(), "admin", "", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestQRCheckInResolvesGuestCode(t *testing.T) {
	env := newTestEnv(vipSpot("V1", 1))

	res, err := env.coord.GuestPass(context.Background(), "admin", "Visiting Vendor", "")
	require.NoError(t, err)
	require.Equal(t, "V1", res.SpotID)

	spot, err := env.coord.QRCheckIn(context.Background(), res.Code, "")
	require.NoError(t, err)
	assert.Equal(t, "V1", spot.ID)
	assert.Equal(t, model.SpotOccupied, env.spotState("V1"))
}

func TestQRCheckInVerifiesAccessCode(t *testing.T) {
	env := newTestEnv(vipSpot("V1", 1))

	hash, err := utils.HashAccessCode("letmein", bcrypt.MinCost)
	require.NoError(t, err)
	res, err := env.coord.GuestPass(context.Background(), "admin", "Visiting Vendor", hash)
	require.NoError(t, err)

	_, err = env.coord.QRCheckIn(context.Background(), res.Code, "wrong")
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Equal(t, model.SpotReserved, env.spotState("V1"))

	spot, err := env.coord.QRCheckIn(context.Background(), res.Code, "letmein")
	require.NoError(t, err)
	assert.Equal(t, "V1", spot.ID)
	assert.Equal(t, model.SpotOccupied, env.spotState("V1"))
}

func TestQRCheckInRejectsMalformedCode(t *testing.T) {
	env := newTestEnv()

	_, err := env.coord.QRCheckIn(context.Background(), "nonsense", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.coord.QRCheckIn(context.Background(), "QR-", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateRulesResizesCapacity(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, env.coord.Seed(context.Background()))

	n, _ := env.spots.Count(context.Background())
	require.Equal(t, 30, n)

	err := env.coord.UpdateRules(context.Background(), "admin", map[string]string{
		SettingCapacity:     "10",
		SettingCarpoolSpots: "2",
		SettingEVSpots:      "1",
		SettingVIPSpots:     "1",
	})
	require.NoError(t, err)

	n, _ = env.spots.Count(context.Background())
	assert.Equal(t, 10, n)

	s1, _ := env.spots.GetByID(context.Background(), "S1")
	assert.True(t, s1.IsCarpool)
	s3, _ := env.spots.GetByID(context.Background(), "S3")
	assert.True(t, s3.IsEV)
	s10, _ := env.spots.GetByID(context.Background(), "S10")
	assert.True(t, s10.IsVIP)
}

func TestUpdateRulesRejectsInvalidCapacity(t *testing.T) {
	env := newTestEnv()

	err := env.coord.UpdateRules(context.Background(), "admin", map[string]string{SettingCapacity: "zero"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSeedIsIdempotent(t *testing.T) {
	env := newTestEnv()

	require.NoError(t, env.coord.Seed(context.Background()))
	n, _ := env.spots.Count(context.Background())
	require.Equal(t, 30, n)

	carpool, ev, vip := 0, 0, 0
	spots, _ := env.spots.List(context.Background())
	for _, s := range spots {
		if s.IsCarpool {
			carpool++
		}
		if s.IsEV {
			ev++
		}
		if s.IsVIP {
			vip++
		}
	}
	assert.Equal(t, 5, carpool)
	assert.Equal(t, 4, ev)
	assert.Equal(t, 3, vip)

	// Reserve one, then seed again: nothing changes.
	env.addUser("u1", 3, 0, 0)
	_, err := env.coord.Reserve(context.Background(), "u1", testDate, "09:00", nil)
	require.NoError(t, err)
	require.NoError(t, env.coord.Seed(context.Background()))
	assert.NotEqual(t, model.SpotAvailable, env.spotState("S6"))
}

func TestRecentAuditClampsLimit(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < 3; i++ {
		require.NoError(t, env.audit.Record(context.Background(), "u1", "reserve_spot", "x"))
	}

	entries, err := env.coord.RecentAudit(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = env.coord.RecentAudit(context.Background(), -1)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
