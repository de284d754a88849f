package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/santosrai/bioai/core"
)

// MockAgent is a testify mock of core.Agent for engine and orchestration
// tests.
type MockAgent struct {
	mock.Mock
}

var _ core.Agent = (*MockAgent)(nil)

func (m *MockAgent) ID() string {
	return m.Called().String(0)
}

func (m *MockAgent) Type() core.AgentType {
	return m.Called().Get(0).(core.AgentType)
}

func (m *MockAgent) Description() string {
	return m.Called().String(0)
}

func (m *MockAgent) CanHandle(s *core.WorkflowState) bool {
	return m.Called(s).Bool(0)
}

func (m *MockAgent) Execute(ctx context.Context, s *core.WorkflowState) (*core.Delta, error) {
	args := m.Called(ctx, s)
	if d, ok := args.Get(0).(*core.Delta); ok {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
