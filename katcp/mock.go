package katcp

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockTransport is a testify mock implementing Transport, for driving a
// Client in tests without a device.
type MockTransport struct {
	mock.Mock
}

var _ Transport = (*MockTransport)(nil)

// NewMockTransport creates a MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) SendRequest(msg *Message, onReply DeliveryFunc, onInform DeliveryFunc, correlationID string) error {
	args := m.Called(msg, onReply, onInform, correlationID)
	return args.Error(0)
}

func (m *MockTransport) BlockingRequest(ctx context.Context, msg *Message, timeout time.Duration) (*Message, []*Message, error) {
	args := m.Called(ctx, msg, timeout)

	var reply *Message
	if v := args.Get(0); v != nil {
		reply = v.(*Message)
	}

	var informs []*Message
	if v := args.Get(1); v != nil {
		informs = v.([]*Message)
	}

	return reply, informs, args.Error(2)
}

func (m *MockTransport) Host() string {
	args := m.Called()
	return args.String(0)
}
