//go:build unit

package queries_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"schedcore/internal/domain/booking"
	"schedcore/internal/domain/catalog"
	"schedcore/internal/domain/schedule"
	"schedcore/internal/domain/staff"
	"schedcore/internal/infra"
	"schedcore/internal/pkg/clock"
	"schedcore/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	members    map[int64]staff.Member
	windows    map[int64][]schedule.Interval
	exceptions map[int64][]schedule.Interval
	err        error
}

func (p *stubProvider) ListActiveStaff(context.Context, []string) ([]staff.Member, error) {
	if p.err != nil {
		return nil, p.err
	}
	var out []staff.Member
	for _, m := range p.members {
		out = append(out, m)
	}
	return out, nil
}

func (p *stubProvider) GetStaff(_ context.Context, id int64) (*staff.Member, error) {
	if p.err != nil {
		return nil, p.err
	}
	m, ok := p.members[id]
	if !ok {
		return nil, infra.WrapRepoErr(infra.KindNotFound, "staff not found", nil)
	}
	return &m, nil
}

func (p *stubProvider) WorkWindows(_ context.Context, id int64, _, _ time.Time) ([]schedule.Interval, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.windows[id], nil
}

func (p *stubProvider) Exceptions(_ context.Context, id int64, _, _ time.Time) ([]schedule.Interval, error) {
	return p.exceptions[id], nil
}

type stubServices struct {
	services map[int64]catalog.Service
	mappings map[int64][]int64
}

func (s *stubServices) FindServiceByID(_ context.Context, id int64) (*catalog.Service, error) {
	svc, ok := s.services[id]
	if !ok {
		return nil, infra.WrapRepoErr(infra.KindNotFound, "service not found", nil)
	}
	return &svc, nil
}

func (s *stubServices) StaffIDsForService(_ context.Context, id int64) ([]int64, error) {
	return s.mappings[id], nil
}

type stubBookings struct {
	rows []*booking.Booking
}

func (s *stubBookings) ActiveInRange(_ context.Context, staffID int64, from, to time.Time) ([]*booking.Booking, error) {
	var out []*booking.Booking
	for _, b := range s.rows {
		if b.StaffID() != staffID || !b.Status().HoldsCapacity() {
			continue
		}
		if b.Start().Before(to) && b.End().After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

type stubBreaks struct {
	intervals []schedule.Interval
}

func (s *stubBreaks) ListInRange(_ context.Context, _ int64, _, _ time.Time) ([]schedule.Interval, error) {
	return s.intervals, nil
}

type memoryCache struct {
	entries map[string][]schedule.Slot
	hits    int
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]schedule.Slot{}}
}

func (c *memoryCache) key(staffID int64, from, to time.Time, fp string) string {
	return fmt.Sprintf("%d|%s|%s|%s", staffID, from, to, fp)
}

func (c *memoryCache) Get(_ context.Context, staffID int64, from, to time.Time, fp string) ([]schedule.Slot, bool) {
	slots, ok := c.entries[c.key(staffID, from, to, fp)]
	if ok {
		c.hits++
	}
	return slots, ok
}

func (c *memoryCache) Set(_ context.Context, staffID int64, from, to time.Time, fp string, slots []schedule.Slot) {
	c.sets++
	c.entries[c.key(staffID, from, to, fp)] = slots
}

type engineFixture struct {
	provider *stubProvider
	services *stubServices
	bookings *stubBookings
	breaks   *stubBreaks
	cache    *memoryCache
	clock    *clock.MockClock
	engine   queries.AvailabilityQueries
}

// Monday. Queries run against the following day.
var fixedNow = time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC)

func newEngineFixture() *engineFixture {
	day := fixedNow.AddDate(0, 0, 1)
	f := &engineFixture{
		provider: &stubProvider{
			members: map[int64]staff.Member{
				1: {ID: 1, Name: "Ada", TimeZone: "UTC", Active: true},
			},
			windows: map[int64][]schedule.Interval{
				1: {{
					Start: time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC),
					End:   time.Date(day.Year(), day.Month(), day.Day(), 17, 0, 0, 0, time.UTC),
				}},
			},
			exceptions: map[int64][]schedule.Interval{},
		},
		services: &stubServices{
			services: map[int64]catalog.Service{
				10: {ID: 10, Name: "Massage", Duration: 30 * time.Minute, MaxGroupSize: 3, Active: true},
			},
			mappings: map[int64][]int64{10: {1}},
		},
		bookings: &stubBookings{},
		breaks:   &stubBreaks{},
		cache:    newMemoryCache(),
		clock:    clock.NewMockClock(fixedNow),
	}
	f.engine = queries.NewAvailabilityUseCase(f.provider, f.services, f.bookings, f.breaks, f.cache, f.clock)
	return f
}

func basePolicy(t *testing.T) queries.Policy {
	t.Helper()
	hours, err := schedule.ParseBusinessHours(
		"Mon=09:00-17:00;Tue=09:00-17:00;Wed=09:00-17:00;Thu=09:00-17:00;Fri=09:00-17:00", "UTC")
	require.NoError(t, err)
	return queries.Policy{
		Mode:        schedule.EnforceRestrict,
		GlobalHours: hours,
		GridStep:    15 * time.Minute,
		LeadTime:    60 * time.Minute,
		Horizon:     7 * 24 * time.Hour,
	}
}

func queryRange() (time.Time, time.Time) {
	day := fixedNow.AddDate(0, 0, 1)
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

func occupy(t *testing.T, f *engineFixture, staffID int64, startHour, startMin, groupSize int) *booking.Booking {
	t.Helper()
	day := fixedNow.AddDate(0, 0, 1)
	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, startMin, 0, 0, time.UTC)
	b := booking.Reconstruct(uuid.New(), 10, staffID, booking.StatusConfirmed,
		schedule.Interval{Start: start, End: start.Add(30 * time.Minute)},
		groupSize, "Grace", "grace@example.com", "", "", fixedNow, fixedNow)
	f.bookings.rows = append(f.bookings.rows, b)
	return b
}

func TestFullDayGrid(t *testing.T) {
	f := newEngineFixture()
	from, to := queryRange()

	slots, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, basePolicy(t), queries.Options{})
	require.NoError(t, err)

	// 09:00 through 16:30 on a 15 minute grid.
	require.Len(t, slots, 31)
	day := fixedNow.AddDate(0, 0, 1)
	assert.Equal(t, time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, time.Date(day.Year(), day.Month(), day.Day(), 16, 30, 0, 0, time.UTC), slots[30].Start)
	for _, s := range slots {
		assert.Equal(t, 0, s.AvailableGroup)
		assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
	}
}

func TestOccupiedSlotExcluded(t *testing.T) {
	f := newEngineFixture()
	occupy(t, f, 1, 10, 0, 1)
	from, to := queryRange()

	slots, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, basePolicy(t), queries.Options{})
	require.NoError(t, err)

	starts := make(map[string]bool, len(slots))
	for _, s := range slots {
		starts[s.Start.Format("15:04")] = true
	}
	assert.False(t, starts["10:00"])
	assert.False(t, starts["09:45"], "a 09:45 slot would still be running at 10:00")
	assert.False(t, starts["10:15"])
	assert.True(t, starts["09:30"])
	assert.True(t, starts["10:30"])
}

func TestBufferBlocksSlotFlushAgainstBooking(t *testing.T) {
	f := newEngineFixture()
	svc := f.services.services[10]
	svc.Buffer = 10 * time.Minute
	f.services.services[10] = svc
	occupy(t, f, 1, 10, 30, 1)
	from, to := queryRange()

	slots, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, basePolicy(t), queries.Options{})
	require.NoError(t, err)

	starts := make(map[string]bool, len(slots))
	for _, s := range slots {
		starts[s.Start.Format("15:04")] = true
	}
	assert.False(t, starts["10:00"], "a 10:00 slot's own trailing buffer runs into the 10:30 booking")
	assert.False(t, starts["11:00"], "the booking's trailing buffer covers 11:00-11:10")
	assert.True(t, starts["09:45"], "ends 10:15, buffer clear of 10:30")
	assert.True(t, starts["11:15"])
}

func TestGroupCapacityReducesHeadroom(t *testing.T) {
	f := newEngineFixture()
	occupy(t, f, 1, 10, 0, 2)
	from, to := queryRange()
	policy := basePolicy(t)
	policy.GroupBookings = true

	slots, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, policy, queries.Options{})
	require.NoError(t, err)

	var at10 *schedule.Slot
	for i := range slots {
		if slots[i].Start.Format("15:04") == "10:00" {
			at10 = &slots[i]
		}
	}
	require.NotNil(t, at10, "partially occupied group slot must stay visible")
	assert.Equal(t, 1, at10.AvailableGroup)
}

func TestGroupCapacityExhaustedSlotHidden(t *testing.T) {
	f := newEngineFixture()
	occupy(t, f, 1, 10, 0, 3)
	from, to := queryRange()
	policy := basePolicy(t)
	policy.GroupBookings = true

	slots, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, policy, queries.Options{})
	require.NoError(t, err)
	for _, s := range slots {
		assert.NotEqual(t, "10:00", s.Start.Format("15:04"))
	}
}

func TestLeadTimeAndHorizonBounds(t *testing.T) {
	f := newEngineFixture()
	// Move "now" into the queried day so the lead time bites.
	day := fixedNow.AddDate(0, 0, 1)
	f.clock.Set(time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, time.UTC))
	from, to := queryRange()

	slots, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, basePolicy(t), queries.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, time.Date(day.Year(), day.Month(), day.Day(), 10, 30, 0, 0, time.UTC), slots[0].Start)
}

func TestBreaksSubtracted(t *testing.T) {
	f := newEngineFixture()
	day := fixedNow.AddDate(0, 0, 1)
	f.breaks.intervals = []schedule.Interval{{
		Start: time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC),
		End:   time.Date(day.Year(), day.Month(), day.Day(), 13, 0, 0, 0, time.UTC),
	}}
	from, to := queryRange()

	slots, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, basePolicy(t), queries.Options{})
	require.NoError(t, err)
	for _, s := range slots {
		lunch := schedule.Interval{Start: f.breaks.intervals[0].Start, End: f.breaks.intervals[0].End}
		assert.False(t, lunch.Overlaps(schedule.Interval{Start: s.Start, End: s.End}))
	}
}

func TestUnknownServiceYieldsEmpty(t *testing.T) {
	f := newEngineFixture()
	from, to := queryRange()

	slots, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 999}, from, to, basePolicy(t), queries.Options{})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestProviderOutageYieldsEmpty(t *testing.T) {
	f := newEngineFixture()
	f.provider.err = infra.WrapRepoErr(infra.KindUnavailable, "schedule provider unreachable", nil)
	from, to := queryRange()

	slots, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, basePolicy(t), queries.Options{})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestWarmCacheSkipsRecompute(t *testing.T) {
	f := newEngineFixture()
	from, to := queryRange()
	policy := basePolicy(t)

	first, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, policy, queries.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.sets)

	second, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, policy, queries.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, first, second)
}

func TestExcludedBookingBypassesCache(t *testing.T) {
	f := newEngineFixture()
	b := occupy(t, f, 1, 10, 0, 1)
	from, to := queryRange()

	slots, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, basePolicy(t),
		queries.Options{ReturnPerStaff: true, ExcludeBookingID: b.ID()})
	require.NoError(t, err)

	starts := make(map[string]bool, len(slots))
	for _, s := range slots {
		starts[s.Start.Format("15:04")] = true
	}
	assert.True(t, starts["10:00"], "own booking must not block its reschedule")
	assert.Zero(t, f.cache.sets, "excluded-booking computations must not be cached")
}

func TestPerStaffAggregation(t *testing.T) {
	f := newEngineFixture()
	day := fixedNow.AddDate(0, 0, 1)
	f.provider.members[2] = staff.Member{ID: 2, Name: "Lin", TimeZone: "UTC", Active: true}
	f.provider.windows[2] = []schedule.Interval{{
		Start: time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC),
		End:   time.Date(day.Year(), day.Month(), day.Day(), 17, 0, 0, 0, time.UTC),
	}}
	f.services.mappings[10] = []int64{1, 2}
	from, to := queryRange()
	policy := basePolicy(t)
	policy.GroupBookings = true

	perStaff, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, policy, queries.Options{ReturnPerStaff: true})
	require.NoError(t, err)
	require.Len(t, perStaff, 62)
	assert.Equal(t, int64(1), perStaff[0].StaffID)
	assert.Equal(t, int64(2), perStaff[1].StaffID)
	assert.Equal(t, perStaff[0].Start, perStaff[1].Start)

	merged, err := f.engine.ComputeAvailability(context.Background(),
		queries.ServiceRef{ServiceID: 10}, from, to, policy, queries.Options{})
	require.NoError(t, err)
	require.Len(t, merged, 31)
	assert.Equal(t, int64(0), merged[0].StaffID)
	assert.Equal(t, 6, merged[0].AvailableGroup, "group headroom sums across staff")
}
