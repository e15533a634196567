// Package mocks holds testify mocks for the ports, written in mockery's
// expecter style.
package mocks

import (
	context "context"

	domain "github.com/jsamuelsen/quote-sync/internal/domain"
	mock "github.com/stretchr/testify/mock"
)

// MockRemoteQuoteSource is an autogenerated mock type for the RemoteQuoteSource type
type MockRemoteQuoteSource struct {
	mock.Mock
}

type MockRemoteQuoteSource_Expecter struct {
	mock *mock.Mock
}

func (_m *MockRemoteQuoteSource) EXPECT() *MockRemoteQuoteSource_Expecter {
	return &MockRemoteQuoteSource_Expecter{mock: &_m.Mock}
}

// FetchQuotes provides a mock function with given fields: ctx
func (_m *MockRemoteQuoteSource) FetchQuotes(ctx context.Context) ([]domain.Quote, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for FetchQuotes")
	}

	var r0 []domain.Quote
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) ([]domain.Quote, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) []domain.Quote); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]domain.Quote)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// MockRemoteQuoteSource_FetchQuotes_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'FetchQuotes'
type MockRemoteQuoteSource_FetchQuotes_Call struct {
	*mock.Call
}

// FetchQuotes is a helper method to define mock.On call
//   - ctx context.Context
func (_e *MockRemoteQuoteSource_Expecter) FetchQuotes(ctx interface{}) *MockRemoteQuoteSource_FetchQuotes_Call {
	return &MockRemoteQuoteSource_FetchQuotes_Call{Call: _e.mock.On("FetchQuotes", ctx)}
}

func (_c *MockRemoteQuoteSource_FetchQuotes_Call) Run(run func(ctx context.Context)) *MockRemoteQuoteSource_FetchQuotes_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context))
	})
	return _c
}

func (_c *MockRemoteQuoteSource_FetchQuotes_Call) Return(_a0 []domain.Quote, _a1 error) *MockRemoteQuoteSource_FetchQuotes_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

func (_c *MockRemoteQuoteSource_FetchQuotes_Call) RunAndReturn(run func(context.Context) ([]domain.Quote, error)) *MockRemoteQuoteSource_FetchQuotes_Call {
	_c.Call.Return(run)
	return _c
}

// UploadQuote provides a mock function with given fields: ctx, q
func (_m *MockRemoteQuoteSource) UploadQuote(ctx context.Context, q domain.Quote) error {
	ret := _m.Called(ctx, q)

	if len(ret) == 0 {
		panic("no return value specified for UploadQuote")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, domain.Quote) error); ok {
		r0 = rf(ctx, q)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// MockRemoteQuoteSource_UploadQuote_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'UploadQuote'
type MockRemoteQuoteSource_UploadQuote_Call struct {
	*mock.Call
}

// UploadQuote is a helper method to define mock.On call
//   - ctx context.Context
//   - q domain.Quote
func (_e *MockRemoteQuoteSource_Expecter) UploadQuote(ctx interface{}, q interface{}) *MockRemoteQuoteSource_UploadQuote_Call {
	return &MockRemoteQuoteSource_UploadQuote_Call{Call: _e.mock.On("UploadQuote", ctx, q)}
}

func (_c *MockRemoteQuoteSource_UploadQuote_Call) Run(run func(ctx context.Context, q domain.Quote)) *MockRemoteQuoteSource_UploadQuote_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(domain.Quote))
	})
	return _c
}

func (_c *MockRemoteQuoteSource_UploadQuote_Call) Return(_a0 error) *MockRemoteQuoteSource_UploadQuote_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockRemoteQuoteSource_UploadQuote_Call) RunAndReturn(run func(context.Context, domain.Quote) error) *MockRemoteQuoteSource_UploadQuote_Call {
	_c.Call.Return(run)
	return _c
}

// NewMockRemoteQuoteSource creates a new instance of MockRemoteQuoteSource. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockRemoteQuoteSource(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRemoteQuoteSource {
	mock := &MockRemoteQuoteSource{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
