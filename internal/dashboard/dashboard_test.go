package dashboard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pmSchedule/internal/client/scheduleapi"
	"pmSchedule/internal/dashboard"
	"pmSchedule/internal/dashboard/derive"
	"pmSchedule/internal/dashboard/form"
	"pmSchedule/internal/dashboard/store"
	"pmSchedule/internal/dashboard/view"
	"pmSchedule/internal/models/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient - мок клиента /api/schedule
type MockClient struct {
	mock.Mock
}

func (m *MockClient) FetchAll(ctx context.Context) ([]schedule.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schedule.Task), args.Error(1)
}

func (m *MockClient) Save(ctx context.Context, task schedule.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockClient) Remove(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ dashboard.ScheduleClient = (*MockClient)(nil)

var today = time.Date(2024, time.May, 15, 9, 0, 0, 0, time.FixedZone("ICT", 7*60*60))

func fixedClock() time.Time {
	return today
}

func day(offset int) schedule.Date {
	return schedule.DateOf(today).AddDays(offset)
}

func newDashboard(client *MockClient) *dashboard.Dashboard {
	return dashboard.New(client, store.New(), fixedClock)
}

func TestDashboard_RefreshAndRender(t *testing.T) {
	client := new(MockClient)
	client.On("FetchAll", mock.Anything).Return([]schedule.Task{
		{ID: 1, MachineType: "Pump", Task: "Seal", DueDate: day(-1), Status: schedule.StatusPending},
		{ID: 2, MachineType: "Fan", Task: "Belt", DueDate: day(3)},
	}, nil).Once()

	d := newDashboard(client)
	snap, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Tasks, 2)

	page := d.Render("", nil)
	require.Len(t, page.Table.Rows, 2)
	assert.Equal(t, schedule.StatusOverdue, page.Table.Rows[0].Status)
	assert.Equal(t, derive.RowDanger, page.Table.Rows[0].RowClass)
	assert.Equal(t, derive.KPI{DueThisWeek: 1, Overdue: 1, DueThisMonth: 1}, page.Summary.KPI)
	assert.False(t, page.Dialog.Open())
	assert.Equal(t, today, page.Now)

	client.AssertExpectations(t)
}

func TestDashboard_FetchErrorKeepsPreviousSummary(t *testing.T) {
	client := new(MockClient)
	client.On("FetchAll", mock.Anything).Return([]schedule.Task{{ID: 1, DueDate: day(-2)}}, nil).Once()
	client.On("FetchAll", mock.Anything).Return(nil, &scheduleapi.FetchError{Err: errors.New("connection refused")}).Once()

	d := newDashboard(client)
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)

	snap, err := d.Refresh(context.Background())
	require.Error(t, err)
	assert.Len(t, snap.Tasks, 1, "snapshot survives a failed refresh")

	page := d.Render("", err)
	require.NotNil(t, page.Table.Notice)
	assert.Equal(t, view.FetchErrorMessage, page.Table.Notice.Message)
	assert.Empty(t, page.Table.Rows)
	assert.True(t, page.Summary.Stale)
	assert.Equal(t, 1, page.Summary.KPI.Overdue)
}

func TestDashboard_TableFiltersWithoutRefetch(t *testing.T) {
	client := new(MockClient)
	client.On("FetchAll", mock.Anything).Return([]schedule.Task{
		{ID: 1, MachineType: "Pump"},
		{ID: 2, MachineType: "Fan"},
	}, nil).Once()

	d := newDashboard(client)
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)

	assert.Len(t, d.Table("pu").Rows, 1)
	assert.Len(t, d.Table("f").Rows, 1)
	table := d.Table("chiller")
	require.NotNil(t, table.Notice)
	assert.Equal(t, view.NoDataMessage, table.Notice.Message)

	client.AssertNumberOfCalls(t, "FetchAll", 1)
}

func TestDashboard_OpenEdit(t *testing.T) {
	client := new(MockClient)
	client.On("FetchAll", mock.Anything).Return([]schedule.Task{{ID: 5, MachineType: "Boiler", Task: "Inspect", DueDate: day(10)}}, nil)

	d := newDashboard(client)
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)

	dialog, err := d.OpenEdit(5)
	require.NoError(t, err)
	assert.Equal(t, form.ModeEdit, dialog.Mode)
	assert.Equal(t, "5", dialog.Values.ID)
	assert.Equal(t, "Boiler", dialog.Values.MachineType)

	_, err = d.OpenEdit(99)
	assert.ErrorIs(t, err, dashboard.ErrNotFound)

	create := d.OpenCreate()
	assert.Equal(t, form.ModeCreate, create.Mode)
	assert.Empty(t, create.Values.ID)
}

func TestDashboard_SaveValidationFailureMakesNoCall(t *testing.T) {
	client := new(MockClient)
	d := newDashboard(client)

	dialog, err := d.Save(context.Background(), form.Values{MachineType: "", Task: "Seal", DueDate: "2024-05-20"})

	var validationErr *form.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.True(t, dialog.Open(), "dialog stays open")
	assert.Equal(t, form.RequiredFieldsAlert, dialog.Alert)
	assert.Equal(t, "Seal", dialog.Values.Task)
	client.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "FetchAll", mock.Anything)
}

func TestDashboard_SaveCreatesAndRefetches(t *testing.T) {
	client := new(MockClient)
	client.On("Save", mock.Anything, mock.MatchedBy(func(task schedule.Task) bool {
		return !task.HasID() && task.MachineType == "Pump" && task.DueDate == schedule.NewDate(2024, time.May, 20)
	})).Return(nil).Once()
	client.On("FetchAll", mock.Anything).Return([]schedule.Task{{ID: 1, MachineType: "Pump", DueDate: schedule.NewDate(2024, time.May, 20)}}, nil).Once()

	d := newDashboard(client)
	dialog, err := d.Save(context.Background(), form.Values{MachineType: " Pump ", Task: "Seal", DueDate: "2024-05-20"})

	require.NoError(t, err)
	assert.False(t, dialog.Open())
	assert.Len(t, d.Store().Snapshot().Tasks, 1)
	client.AssertExpectations(t)
}

// slowFirstClient - сервер в памяти, первая загрузка которого зависает до release
type slowFirstClient struct {
	mtx     sync.Mutex
	tasks   []schedule.Task
	calls   int
	started chan struct{}
	release chan struct{}
}

func newSlowFirstClient() *slowFirstClient {
	return &slowFirstClient{started: make(chan struct{}), release: make(chan struct{})}
}

func (c *slowFirstClient) FetchAll(ctx context.Context) ([]schedule.Task, error) {
	c.mtx.Lock()
	tasks := append([]schedule.Task(nil), c.tasks...)
	call := c.calls
	c.calls++
	c.mtx.Unlock()

	if call == 0 {
		close(c.started)
		<-c.release
	}
	return tasks, nil
}

func (c *slowFirstClient) Save(ctx context.Context, task schedule.Task) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	task.ID = int64(len(c.tasks) + 1)
	c.tasks = append(c.tasks, task)
	return nil
}

func (c *slowFirstClient) Remove(ctx context.Context, id int64) error {
	return nil
}

func TestDashboard_SaveDoesNotReuseFetchStartedBeforeIt(t *testing.T) {
	client := newSlowFirstClient()
	d := dashboard.New(client, store.New(), fixedClock)

	refreshed := make(chan error, 1)
	go func() {
		_, err := d.Refresh(context.Background())
		refreshed <- err
	}()
	<-client.started

	dialog, err := d.Save(context.Background(), form.Values{MachineType: "Pump", Task: "Seal", DueDate: "2024-05-20"})
	require.NoError(t, err)
	assert.False(t, dialog.Open())
	require.Len(t, d.Store().Snapshot().Tasks, 1, "после сохранения список перечитан заново")

	close(client.release)
	select {
	case err := <-refreshed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("загрузка не завершилась")
	}

	// старая загрузка завершилась позже, но снимок не откатился
	tasks := d.Store().Snapshot().Tasks
	require.Len(t, tasks, 1)
	assert.Equal(t, "Pump", tasks[0].MachineType)
}

func TestDashboard_SaveUpdatesBoundRecord(t *testing.T) {
	client := new(MockClient)
	client.On("Save", mock.Anything, mock.MatchedBy(func(task schedule.Task) bool {
		return task.ID == 8 && task.Status == schedule.StatusDone
	})).Return(nil).Once()
	client.On("FetchAll", mock.Anything).Return([]schedule.Task{}, nil).Once()

	d := newDashboard(client)
	_, err := d.Save(context.Background(), form.Values{ID: "8", MachineType: "Fan", Task: "Belt", DueDate: "2024-05-20", Status: string(schedule.StatusDone)})

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestDashboard_SaveFailureSurfacesInDialog(t *testing.T) {
	client := new(MockClient)
	client.On("Save", mock.Anything, mock.Anything).
		Return(&scheduleapi.MutationError{Op: "update", ID: 8, StatusCode: 404, Reason: "not found"}).Once()

	d := newDashboard(client)
	dialog, err := d.Save(context.Background(), form.Values{ID: "8", MachineType: "Fan", Task: "Belt", DueDate: "2024-05-20"})

	require.Error(t, err)
	assert.True(t, dialog.Open())
	assert.Equal(t, form.ModeEdit, dialog.Mode)
	assert.Equal(t, dashboard.SaveFailedPrefix+": not found", dialog.Alert)
	client.AssertNotCalled(t, "FetchAll", mock.Anything)
}

func TestDashboard_SaveBusy(t *testing.T) {
	client := new(MockClient)
	client.On("Save", mock.Anything, mock.Anything).
		Return(&scheduleapi.MutationError{Op: "create", Reason: scheduleapi.ErrBusy.Error(), Err: scheduleapi.ErrBusy}).Once()

	d := newDashboard(client)
	dialog, err := d.Save(context.Background(), form.Values{MachineType: "Fan", Task: "Belt", DueDate: "2024-05-20"})

	assert.ErrorIs(t, err, scheduleapi.ErrBusy)
	assert.Equal(t, dashboard.BusyMessage, dialog.Alert)
}

func TestDashboard_DeleteDeclinedMakesNoCall(t *testing.T) {
	client := new(MockClient)
	client.On("FetchAll", mock.Anything).Return([]schedule.Task{{ID: 3, MachineType: "Pump"}}, nil).Once()

	d := newDashboard(client)
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)
	before := d.Store().Snapshot()

	require.NoError(t, d.Delete(context.Background(), 3, false))

	client.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
	client.AssertNumberOfCalls(t, "FetchAll", 1)
	assert.Equal(t, before, d.Store().Snapshot())
}

func TestDashboard_DeleteConfirmed(t *testing.T) {
	client := new(MockClient)
	client.On("FetchAll", mock.Anything).Return([]schedule.Task{{ID: 3}}, nil).Once()
	client.On("Remove", mock.Anything, int64(3)).Return(nil).Once()
	client.On("FetchAll", mock.Anything).Return([]schedule.Task{}, nil).Once()

	d := newDashboard(client)
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)

	task, err := d.ConfirmDelete(3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), task.ID)

	require.NoError(t, d.Delete(context.Background(), 3, true))
	assert.Empty(t, d.Store().Snapshot().Tasks)
	client.AssertExpectations(t)

	_, err = d.ConfirmDelete(3)
	assert.ErrorIs(t, err, dashboard.ErrNotFound)
}

func TestDashboard_DeleteFailure(t *testing.T) {
	client := new(MockClient)
	failure := &scheduleapi.MutationError{Op: "delete", ID: 3, StatusCode: 500, Reason: "db down"}
	client.On("Remove", mock.Anything, int64(3)).Return(failure).Once()

	d := newDashboard(client)
	err := d.Delete(context.Background(), 3, true)

	assert.ErrorIs(t, err, failure)
	assert.Equal(t, dashboard.DeleteFailedPrefix+": db down", dashboard.DeleteFailedMessage(err))
	client.AssertNotCalled(t, "FetchAll", mock.Anything)
}
