package model

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockModel is a testify mock for the Model interface.
type MockModel struct {
	mock.Mock
}

// Name returns the mocked model name.
func (m *MockModel) Name() string {
	args := m.Called()
	return args.String(0)
}

// Complete returns the mocked completion.
func (m *MockModel) Complete(ctx context.Context, req Request) (*Response, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*Response), args.Error(1)
	}
	return nil, args.Error(1)
}
