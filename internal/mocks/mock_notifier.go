package mocks

import (
	context "context"

	ports "github.com/jsamuelsen/quote-sync/internal/ports"
	mock "github.com/stretchr/testify/mock"
)

// MockNotifier is an autogenerated mock type for the Notifier type
type MockNotifier struct {
	mock.Mock
}

type MockNotifier_Expecter struct {
	mock *mock.Mock
}

func (_m *MockNotifier) EXPECT() *MockNotifier_Expecter {
	return &MockNotifier_Expecter{mock: &_m.Mock}
}

// Notify provides a mock function with given fields: ctx, n
func (_m *MockNotifier) Notify(ctx context.Context, n ports.Notification) {
	_m.Called(ctx, n)
}

// MockNotifier_Notify_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Notify'
type MockNotifier_Notify_Call struct {
	*mock.Call
}

// Notify is a helper method to define mock.On call
//   - ctx context.Context
//   - n ports.Notification
func (_e *MockNotifier_Expecter) Notify(ctx interface{}, n interface{}) *MockNotifier_Notify_Call {
	return &MockNotifier_Notify_Call{Call: _e.mock.On("Notify", ctx, n)}
}

func (_c *MockNotifier_Notify_Call) Run(run func(ctx context.Context, n ports.Notification)) *MockNotifier_Notify_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(ports.Notification))
	})
	return _c
}

func (_c *MockNotifier_Notify_Call) Return() *MockNotifier_Notify_Call {
	_c.Call.Return()
	return _c
}

func (_c *MockNotifier_Notify_Call) RunAndReturn(run func(context.Context, ports.Notification)) *MockNotifier_Notify_Call {
	_c.Run(run)
	return _c
}

// NewMockNotifier creates a new instance of MockNotifier. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNotifier {
	mock := &MockNotifier{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
