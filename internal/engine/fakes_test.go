package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/parkiq/parkiq-server/internal/model"
)

// In-memory store implementations mirroring the SQL repositories' conflict
// semantics: every conditional mutation checks the expected prior state and
// returns ErrConflict on mismatch.

type memSpots struct {
	mu    sync.Mutex
	spots map[string]*model.Spot
}

func newMemSpots(spots ...model.Spot) *memSpots {
	m := &memSpots{spots: make(map[string]*model.Spot)}
	for _, s := range spots {
		sp := s
		m.spots[sp.ID] = &sp
	}
	return m
}

func (m *memSpots) get(id string) (*model.Spot, bool) {
	s, ok := m.spots[id]
	return s, ok
}

func (m *memSpots) GetByID(_ context.Context, id string) (*model.Spot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSpots) List(_ context.Context) ([]model.Spot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Spot, 0, len(m.spots))
	for _, s := range m.spots {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out, nil
}

func (m *memSpots) ListAvailable(_ context.Context) ([]model.Spot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Spot
	for _, s := range m.spots {
		if s.State == model.SpotAvailable {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out, nil
}

func (m *memSpots) FindByHolder(_ context.Context, userID string, states ...model.SpotState) (*model.Spot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.spots {
		if s.UserID == nil || *s.UserID != userID {
			continue
		}
		for _, st := range states {
			if s.State == st {
				cp := *s
				return &cp, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (m *memSpots) Reserve(_ context.Context, id, userID string, reservedAt, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.get(id)
	if !ok || s.State != model.SpotAvailable {
		return ErrConflict
	}
	s.State = model.SpotReserved
	s.UserID = &userID
	s.ReservedAt = &reservedAt
	s.ExpiresAt = &expiresAt
	return nil
}

func (m *memSpots) Offer(_ context.Context, id, userID string, reservedAt, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.get(id)
	if !ok || s.State != model.SpotAvailable || s.IsVIP {
		return ErrConflict
	}
	s.State = model.SpotPendingOffer
	s.UserID = &userID
	s.ReservedAt = &reservedAt
	s.ExpiresAt = &expiresAt
	return nil
}

func (m *memSpots) AcceptOffer(_ context.Context, id, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.get(id)
	if !ok || s.State != model.SpotPendingOffer || s.UserID == nil || *s.UserID != userID {
		return ErrConflict
	}
	s.State = model.SpotReserved
	s.ExpiresAt = &expiresAt
	return nil
}

func (m *memSpots) CheckIn(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.get(id)
	if !ok || s.State != model.SpotReserved || s.UserID == nil || *s.UserID != userID {
		return ErrConflict
	}
	s.State = model.SpotOccupied
	s.ExpiresAt = nil
	return nil
}

func (m *memSpots) Checkout(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.get(id)
	if !ok || s.State != model.SpotOccupied || s.UserID == nil || *s.UserID != userID {
		return ErrConflict
	}
	m.clear(s)
	return nil
}

func (m *memSpots) Release(_ context.Context, id string, from model.SpotState, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.get(id)
	if !ok {
		return ErrNotFound
	}
	if s.State != from {
		return ErrConflict
	}
	if userID != "" && (s.UserID == nil || *s.UserID != userID) {
		return ErrConflict
	}
	m.clear(s)
	return nil
}

func (m *memSpots) clear(s *model.Spot) {
	s.State = model.SpotAvailable
	s.UserID = nil
	s.ReservedAt = nil
	s.ExpiresAt = nil
	s.TempReturnTime = nil
}

func (m *memSpots) BeginTempAway(_ context.Context, id, userID, returnTime string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.get(id)
	if !ok || s.State != model.SpotOccupied || s.UserID == nil || *s.UserID != userID {
		return ErrConflict
	}
	s.State = model.SpotTempAway
	s.TempReturnTime = &returnTime
	return nil
}

func (m *memSpots) EndTempAway(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.get(id)
	if !ok || s.State != model.SpotTempAway || s.UserID == nil || *s.UserID != userID {
		return ErrConflict
	}
	s.State = model.SpotOccupied
	s.TempReturnTime = nil
	return nil
}

func (m *memSpots) ExtendDeadline(_ context.Context, id, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.get(id)
	if !ok || s.State != model.SpotReserved || s.UserID == nil || *s.UserID != userID {
		return ErrConflict
	}
	s.ExpiresAt = &expiresAt
	return nil
}

func (m *memSpots) PendingDeadlines(_ context.Context) ([]model.Spot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Spot
	for _, s := range m.spots {
		if (s.State == model.SpotReserved || s.State == model.SpotPendingOffer) && s.ExpiresAt != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSpots) ReleaseAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.spots {
		m.clear(s)
	}
	return nil
}

func (m *memSpots) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spots), nil
}

func (m *memSpots) Resize(_ context.Context, capacity, carpool, ev, vip int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.spots {
		if s.Num > capacity {
			delete(m.spots, id)
		}
	}
	for n := 1; n <= capacity; n++ {
		id := fmt.Sprintf("S%d", n)
		s, ok := m.spots[id]
		if !ok {
			s = &model.Spot{ID: id, Num: n, State: model.SpotAvailable}
			m.spots[id] = s
		}
		s.IsCarpool = n <= carpool
		s.IsEV = n > carpool && n <= carpool+ev
		s.IsVIP = n > capacity-vip
	}
	return nil
}

type memBookings struct {
	mu        sync.Mutex
	rows      []*model.Booking
	createErr error // returned once by the next Create call
}

func newMemBookings() *memBookings { return &memBookings{} }

func (m *memBookings) failNextCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

func (m *memBookings) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		err := m.createErr
		m.createErr = nil
		return err
	}
	// Mirrors the uq_bookings_active unique key on (user_id, active_date).
	for _, row := range m.rows {
		if row.UserID == b.UserID && row.Date == b.Date && row.Status != model.BookingCancelled {
			return fmt.Errorf("%w: active booking already exists for %s", ErrValidation, b.Date)
		}
	}
	cp := *b
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memBookings) List(_ context.Context) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, 0, len(m.rows))
	for _, b := range m.rows {
		out = append(out, *b)
	}
	return out, nil
}

func (m *memBookings) ActiveForUserAndDate(_ context.Context, userID, date string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.UserID == userID && b.Date == date && b.Status != model.BookingCancelled {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memBookings) SetStatusForSpot(_ context.Context, spotID, userID string, from, to model.BookingStatus, noShow bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.SpotID != nil && *b.SpotID == spotID && b.UserID == userID && b.Status == from {
			b.Status = to
			if noShow {
				b.NoShow = true
			}
		}
	}
	return nil
}

func (m *memBookings) TopOfWaitlist(_ context.Context) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var top *model.Booking
	for _, b := range m.rows {
		if b.Status != model.BookingWaitlist {
			continue
		}
		if top == nil || b.Score > top.Score ||
			(b.Score == top.Score && b.CreatedAt.Before(top.CreatedAt)) {
			top = b
		}
	}
	if top == nil {
		return nil, nil
	}
	cp := *top
	return &cp, nil
}

func (m *memBookings) MarkOffered(_ context.Context, bookingID, spotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.ID == bookingID {
			if b.Status != model.BookingWaitlist {
				return ErrConflict
			}
			b.Status = model.BookingOffered
			b.SpotID = &spotID
			return nil
		}
	}
	return ErrConflict
}

func (m *memBookings) Rank(_ context.Context, score float64, createdAt time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ahead := 0
	for _, b := range m.rows {
		if b.Status != model.BookingWaitlist {
			continue
		}
		if b.Score > score || (b.Score == score && b.CreatedAt.Before(createdAt)) {
			ahead++
		}
	}
	return ahead + 1, nil
}

func (m *memBookings) CancelOpen(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		switch b.Status {
		case model.BookingWaitlist, model.BookingOffered, model.BookingReserved:
			b.Status = model.BookingCancelled
		}
	}
	return nil
}

func (m *memBookings) byUser(userID string) *model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			cp := *m.rows[i]
			return &cp
		}
	}
	return nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUsers(users ...model.User) *memUsers {
	m := &memUsers{users: make(map[string]*model.User)}
	for _, u := range users {
		cp := u
		m.users[cp.ID] = &cp
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[cp.ID] = &cp
	return nil
}

func (m *memUsers) IncrementNoShows(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	u.NoShows++
	return u.NoShows, nil
}

func (m *memUsers) SetBan(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Banned = true
	u.BanEnds = &until
	return nil
}

func (m *memUsers) LiftBan(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Banned = false
	u.BanEnds = nil
	return nil
}

func (m *memUsers) ClearPenalty(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.NoShows = 0
	u.Banned = false
	u.BanEnds = nil
	return nil
}

func (m *memUsers) ConsumeExtension(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.GraceUsedToday++
	u.GraceUsedWeek++
	return nil
}

func (m *memUsers) ResetDailyGrace(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		u.GraceUsedToday = 0
	}
	return nil
}

func (m *memUsers) ResetWeeklyGrace(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		u.GraceUsedWeek = 0
	}
	return nil
}

type memSettings struct {
	mu   sync.Mutex
	vals map[string]string
}

func newMemSettings() *memSettings { return &memSettings{vals: make(map[string]string)} }

func (m *memSettings) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memSettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	return nil
}

func (m *memSettings) All(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.vals))
	for k, v := range m.vals {
		out[k] = v
	}
	return out, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func newMemAudit() *memAudit { return &memAudit{} }

func (m *memAudit) Record(_ context.Context, userID, action, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, model.AuditEntry{
		ID:        int64(len(m.entries) + 1),
		Timestamp: time.Now(),
		UserID:    userID,
		Action:    action,
		Details:   details,
	})
	return nil
}

func (m *memAudit) Recent(_ context.Context, limit int) ([]model.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AuditEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordNotifier struct {
	mu      sync.Mutex
	actions []string
}

func (n *recordNotifier) StateChanged(_ context.Context, action, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, action)
}

func (n *recordNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.actions) == 0 {
		return ""
	}
	return n.actions[len(n.actions)-1]
}

// testEnv bundles a coordinator with its in-memory stores and a frozen
// clock.  Monday 2026-03-02 08:00 UTC unless a test moves it.
type testEnv struct {
	spots    *memSpots
	bookings *memBookings
	users    *memUsers
	settings *memSettings
	audit    *memAudit
	notes    *recordNotifier
	coord    *Coordinator
	now      time.Time
}

func newTestEnv(spots ...model.Spot) *testEnv {
	env := &testEnv{
		spots:    newMemSpots(spots...),
		bookings: newMemBookings(),
		users:    newMemUsers(),
		settings: newMemSettings(),
		audit:    newMemAudit(),
		notes:    &recordNotifier{},
		now:      time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC),
	}
	rules := Rules{GraceMinutes: 20, OfferMinutes: 10, ExtensionMinutes: 15, MiddayMaxHours: 3}
	env.coord = NewCoordinator(env.spots, env.bookings, env.users, env.settings, env.audit, env.notes, rules)
	env.coord.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) addUser(id string, tier, noShows, waitHistory int) {
	e.users.users[id] = &model.User{ID: id, Name: id, Tier: tier, NoShows: noShows, WaitHistory: waitHistory}
}

func (e *testEnv) spotState(id string) model.SpotState {
	s, _ := e.spots.GetByID(context.Background(), id)
	return s.State
}

func regular(id string, num int) model.Spot {
	return model.Spot{ID: id, Num: num, State: model.SpotAvailable}
}

func carpoolLane(id string, num int) model.Spot {
	return model.Spot{ID: id, Num: num, State: model.SpotAvailable, IsCarpool: true}
}

func vipSpot(id string, num int) model.Spot {
	return model.Spot{ID: id, Num: num, State: model.SpotAvailable, IsVIP: true}
}
