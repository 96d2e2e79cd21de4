// Package mocks provides test doubles for the realvalidation client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	realvalidation "github.com/sells-group/lender-enrich/pkg/realvalidation"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// DNCLookup provides a mock function with given fields: ctx, phone
func (_m *MockClient) DNCLookup(ctx context.Context, phone string) (*realvalidation.LookupResponse, error) {
	ret := _m.Called(ctx, phone)

	if len(ret) == 0 {
		panic("no return value specified for DNCLookup")
	}

	var r0 *realvalidation.LookupResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*realvalidation.LookupResponse, error)); ok {
		return rf(ctx, phone)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *realvalidation.LookupResponse); ok {
		r0 = rf(ctx, phone)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*realvalidation.LookupResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, phone)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
