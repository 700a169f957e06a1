//go:build unit

package commands_test

import (
	"context"
	"testing"
	"time"

	"schedcore/internal/domain/booking"
	"schedcore/internal/domain/catalog"
	"schedcore/internal/domain/schedule"
	"schedcore/internal/domain/staff"
	"schedcore/internal/infra"
	"schedcore/internal/infra/caldav"
	"schedcore/internal/infra/repository"
	"schedcore/internal/pkg/clock"
	"schedcore/internal/usecase/commands"
	"schedcore/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC)

type scriptedAvailability struct {
	slots []schedule.Slot
	err   error
	calls []queries.Options
}

func (a *scriptedAvailability) ComputeAvailability(_ context.Context, _ queries.ServiceRef, _, _ time.Time, _ queries.Policy, opts queries.Options) ([]schedule.Slot, error) {
	a.calls = append(a.calls, opts)
	return a.slots, a.err
}

type stubServices struct {
	services map[int64]catalog.Service
}

func (s *stubServices) FindServiceByID(_ context.Context, id int64) (*catalog.Service, error) {
	svc, ok := s.services[id]
	if !ok {
		return nil, infra.WrapRepoErr(infra.KindNotFound, "service not found", nil)
	}
	return &svc, nil
}

func (s *stubServices) StaffIDsForService(context.Context, int64) ([]int64, error) {
	return nil, nil
}

type stubProvider struct {
	members map[int64]staff.Member
}

func (p *stubProvider) ListActiveStaff(context.Context, []string) ([]staff.Member, error) {
	return nil, nil
}

func (p *stubProvider) GetStaff(_ context.Context, id int64) (*staff.Member, error) {
	m, ok := p.members[id]
	if !ok {
		return nil, infra.WrapRepoErr(infra.KindNotFound, "staff not found", nil)
	}
	return &m, nil
}

func (p *stubProvider) WorkWindows(context.Context, int64, time.Time, time.Time) ([]schedule.Interval, error) {
	return nil, nil
}

func (p *stubProvider) Exceptions(context.Context, int64, time.Time, time.Time) ([]schedule.Interval, error) {
	return nil, nil
}

type memoryRepo struct {
	rows       map[uuid.UUID]*booking.Booking
	createErr  error
	saves      int
	lastParams repository.CreateParams
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[uuid.UUID]*booking.Booking{}}
}

func (r *memoryRepo) Create(_ context.Context, b *booking.Booking, params repository.CreateParams) error {
	r.lastParams = params
	if r.createErr != nil {
		return r.createErr
	}
	r.rows[b.ID()] = b
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	b, ok := r.rows[id]
	if !ok {
		return nil, infra.WrapRepoErr(infra.KindNotFound, "booking not found", nil)
	}
	return b, nil
}

func (r *memoryRepo) Save(_ context.Context, b *booking.Booking) error {
	r.saves++
	r.rows[b.ID()] = b
	return nil
}

func (r *memoryRepo) LastActiveCreatedAt(context.Context, int64) (*time.Time, error) {
	return nil, nil
}

type scriptedCalendar struct {
	putErr    error
	putUIDs   []string
	deleteUID []string
	etag      string
}

func (c *scriptedCalendar) PutEvent(_ context.Context, _ int64, ev caldav.Event) (string, error) {
	c.putUIDs = append(c.putUIDs, ev.UID)
	if c.putErr != nil {
		return "", c.putErr
	}
	return c.etag, nil
}

func (c *scriptedCalendar) DeleteEvent(_ context.Context, _ int64, uid string) error {
	c.deleteUID = append(c.deleteUID, uid)
	return nil
}

type recordedInvalidations struct {
	days []string
}

func (r *recordedInvalidations) InvalidateDay(_ context.Context, staffID int64, day time.Time) {
	r.days = append(r.days, day.Format("2006-01-02"))
}

type recordedEvents struct {
	types []string
}

func (r *recordedEvents) Append(_ context.Context, _ uuid.UUID, eventType string, _ any, _ time.Time) error {
	r.types = append(r.types, eventType)
	return nil
}

type staticTokens struct{}

func (staticTokens) GenerateManageToken(uuid.UUID) (string, error) { return "manage-token", nil }

type commandFixture struct {
	availability *scriptedAvailability
	services     *stubServices
	provider     *stubProvider
	repo         *memoryRepo
	calendar     *scriptedCalendar
	cache        *recordedInvalidations
	events       *recordedEvents
	clock        *clock.MockClock
	uc           commands.BookingCommands
}

func newCommandFixture() *commandFixture {
	f := &commandFixture{
		availability: &scriptedAvailability{},
		services: &stubServices{services: map[int64]catalog.Service{
			10: {ID: 10, Name: "Massage", Duration: 30 * time.Minute, MaxGroupSize: 3, Active: true},
		}},
		provider: &stubProvider{members: map[int64]staff.Member{
			1: {ID: 1, Name: "Ada", TimeZone: "UTC", Active: true},
			2: {ID: 2, Name: "Lin", TimeZone: "UTC", Weight: 3, Active: true},
		}},
		repo:     newMemoryRepo(),
		calendar: &scriptedCalendar{etag: `"v1"`},
		cache:    &recordedInvalidations{},
		events:   &recordedEvents{},
		clock:    clock.NewMockClock(testNow),
	}
	f.uc = commands.NewBookingUseCase(f.availability, f.services, f.provider, f.repo,
		f.calendar, f.cache, f.events, staticTokens{}, f.clock)
	return f
}

func slotAt(staffID int64, start time.Time, headroom int) schedule.Slot {
	return schedule.Slot{StaffID: staffID, Start: start, End: start.Add(30 * time.Minute), AvailableGroup: headroom}
}

func createInput(start time.Time) commands.CreateBookingInput {
	return commands.CreateBookingInput{
		ServiceID:     10,
		Start:         start,
		CustomerName:  "Grace",
		CustomerEmail: "grace@example.com",
	}
}

func TestCreateBookingConfirmsAndStoresETag(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 0)}

	result, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	require.NoError(t, err)

	assert.Equal(t, string(booking.StatusConfirmed), result.Booking.Status)
	assert.Equal(t, "manage-token", result.ManageToken)
	assert.Equal(t, int64(1), result.Booking.StaffID)
	stored := f.repo.rows[result.Booking.ID]
	require.NotNil(t, stored)
	assert.Equal(t, `"v1"`, stored.CalendarETag())
	assert.Equal(t, []string{"2026-09-15"}, f.cache.days)
	assert.Equal(t, []string{
		commands.EventCreated, commands.EventSyncSucceeded, commands.EventConfirmed,
	}, f.events.types)
}

func TestCreateBookingSyncFailureDegradesNotFails(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 0)}
	f.calendar.putErr = &caldav.SyncError{Op: "PUT", URL: "https://cal.example.com", StatusCode: 502}

	result, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	require.NoError(t, err, "calendar failure must not fail the user-facing create")

	assert.Equal(t, string(booking.StatusFailedSync), result.Booking.Status)
	assert.Contains(t, f.events.types, commands.EventSyncFailed)
	assert.NotContains(t, f.events.types, commands.EventConfirmed)
}

func TestCreateBookingForwardsBufferToCapacityCheck(t *testing.T) {
	f := newCommandFixture()
	svc := f.services.services[10]
	svc.Buffer = 10 * time.Minute
	f.services.services[10] = svc
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 0)}

	_, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, f.repo.lastParams.Buffer,
		"the in-transaction re-check must see the same buffered window as the availability walk")
}

func TestCreateBookingNoMatchingSlotConflicts(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start.Add(15*time.Minute), 0)}

	_, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	assert.ErrorIs(t, err, commands.ErrSlotConflict)
	assert.Empty(t, f.repo.rows)
	assert.Empty(t, f.calendar.putUIDs)
}

func TestCreateBookingGroupSizeExceedingHeadroom(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 1)}

	input := createInput(start)
	input.GroupSize = 2
	_, err := f.uc.CreateBooking(context.Background(), input, queries.Policy{GroupBookings: true})
	assert.ErrorIs(t, err, commands.ErrSlotConflict)

	input.GroupSize = 1
	_, err = f.uc.CreateBooking(context.Background(), input, queries.Policy{GroupBookings: true})
	assert.NoError(t, err)
}

func TestCreateBookingRaceLostAtInsert(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 0)}
	f.repo.createErr = infra.WrapRepoErr(infra.KindDuplicateKey, "slot already booked", nil)

	_, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	assert.ErrorIs(t, err, commands.ErrSlotConflict)
}

func TestCreateBookingScoresCompetingStaff(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 0), slotAt(2, start, 0)}

	result, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	require.NoError(t, err)
	// Staff 2 carries weight 3: 100 + (3-1)*10 beats staff 1's base score.
	assert.Equal(t, int64(2), result.Booking.StaffID)
}

func TestCancelBookingIsIdempotent(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 0)}
	created, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	require.NoError(t, err)

	first, err := f.uc.CancelBooking(context.Background(), created.Booking.ID, queries.Policy{})
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusCancelled), first.Status)
	require.Len(t, f.calendar.deleteUID, 1)
	assert.Equal(t, created.Booking.CalendarUID, f.calendar.deleteUID[0])

	second, err := f.uc.CancelBooking(context.Background(), created.Booking.ID, queries.Policy{})
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusCancelled), second.Status)
	assert.Len(t, f.calendar.deleteUID, 1, "second cancel must not call the calendar")
}

func TestCancelBookingUnknownID(t *testing.T) {
	f := newCommandFixture()
	_, err := f.uc.CancelBooking(context.Background(), uuid.New(), queries.Policy{})
	assert.ErrorIs(t, err, commands.ErrBookingNotFound)
}

func TestRescheduleKeepsStaffAndMintsFreshUID(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 0)}
	created, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	require.NoError(t, err)
	oldUID := created.Booking.CalendarUID

	newStart := time.Date(2026, 9, 15, 14, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, newStart, 0)}

	updated, err := f.uc.RescheduleBooking(context.Background(), created.Booking.ID, newStart, queries.Policy{})
	require.NoError(t, err)

	assert.Equal(t, created.Booking.StaffID, updated.StaffID)
	assert.Equal(t, newStart, updated.StartUTC)
	assert.NotEqual(t, oldUID, updated.CalendarUID)
	assert.Equal(t, []string{oldUID}, f.calendar.deleteUID)
	require.Len(t, f.calendar.putUIDs, 2)
	assert.Equal(t, updated.CalendarUID, f.calendar.putUIDs[1])

	// Re-verification must target the booking's own staff and exclude the row.
	verify := f.availability.calls[len(f.availability.calls)-1]
	assert.Equal(t, []int64{created.Booking.StaffID}, verify.OverrideStaffIDs)
	assert.Equal(t, created.Booking.ID, verify.ExcludeBookingID)
}

func TestRescheduleSyncFailureKeepsNewTime(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 0)}
	created, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	require.NoError(t, err)

	newStart := time.Date(2026, 9, 15, 14, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, newStart, 0)}
	f.calendar.putErr = &caldav.SyncError{Op: "PUT", URL: "https://cal.example.com", StatusCode: 503}

	updated, err := f.uc.RescheduleBooking(context.Background(), created.Booking.ID, newStart, queries.Policy{})
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusFailedSync), updated.Status)
	assert.Equal(t, newStart, updated.StartUTC, "time change survives the sync failure")
	assert.NotEmpty(t, updated.CalendarUID, "new UID persisted before the failed PUT")
}

func TestRescheduleCancelledBookingRejected(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 0)}
	created, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	require.NoError(t, err)
	_, err = f.uc.CancelBooking(context.Background(), created.Booking.ID, queries.Policy{})
	require.NoError(t, err)

	_, err = f.uc.RescheduleBooking(context.Background(), created.Booking.ID, start.Add(time.Hour), queries.Policy{})
	assert.ErrorIs(t, err, commands.ErrBookingCancelled)
}

func TestRescheduleInvalidatesBothDays(t *testing.T) {
	f := newCommandFixture()
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, start, 0)}
	created, err := f.uc.CreateBooking(context.Background(), createInput(start), queries.Policy{})
	require.NoError(t, err)
	f.cache.days = nil

	newStart := time.Date(2026, 9, 16, 10, 0, 0, 0, time.UTC)
	f.availability.slots = []schedule.Slot{slotAt(1, newStart, 0)}
	_, err = f.uc.RescheduleBooking(context.Background(), created.Booking.ID, newStart, queries.Policy{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-09-15", "2026-09-16"}, f.cache.days)
}

func TestCreateBookingGroupSizeWithoutGroupMode(t *testing.T) {
	f := newCommandFixture()
	input := createInput(time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC))
	input.GroupSize = 2
	_, err := f.uc.CreateBooking(context.Background(), input, queries.Policy{})
	assert.ErrorIs(t, err, commands.ErrInvalidGroupSize)
}

func TestCreateBookingUnknownService(t *testing.T) {
	f := newCommandFixture()
	input := createInput(time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC))
	input.ServiceID = 999
	_, err := f.uc.CreateBooking(context.Background(), input, queries.Policy{})
	assert.ErrorIs(t, err, commands.ErrServiceNotFound)
}
