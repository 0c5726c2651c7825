package governor

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"barbuddy/internal/reservation"
)

type mockHoldClient struct {
	mock.Mock

	mu    sync.Mutex
	calls []string
}

func (m *mockHoldClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockHoldClient) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockHoldClient) Hold(ctx context.Context, key reservation.ReservationKey, tableID string) error {
	m.record("hold:" + key.Time + ":" + tableID)
	args := m.Called(ctx, key, tableID)
	return args.Error(0)
}

func (m *mockHoldClient) Release(ctx context.Context, key reservation.ReservationKey, tableID string) error {
	m.record("release:" + key.Time + ":" + tableID)
	args := m.Called(ctx, key, tableID)
	return args.Error(0)
}

func (m *mockHoldClient) QueryHeld(ctx context.Context, key reservation.ReservationKey) ([]reservation.HeldTable, error) {
	m.record("query:" + key.Time)
	args := m.Called(ctx, key)
	held, _ := args.Get(0).([]reservation.HeldTable)
	return held, args.Error(1)
}

func (m *mockHoldClient) FindAvailable(ctx context.Context, key reservation.ReservationKey, tableTypeID string) ([]reservation.Table, error) {
	m.record("find:" + key.Time)
	args := m.Called(ctx, key, tableTypeID)
	tables, _ := args.Get(0).([]reservation.Table)
	return tables, args.Error(1)
}
