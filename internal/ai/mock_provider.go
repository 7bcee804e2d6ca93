package ai

import (
	"context"
	"sync"
)

// MockProvider is a test provider that records calls and returns
// configurable responses
type MockProvider struct {
	name      string
	responses []MockResponse
	calls     []MockCall
	mu        sync.Mutex
	respIndex int
}

// MockResponse represents a pre-configured response for the mock provider
type MockResponse struct {
	Content string
	Usage   Usage
	Error   error
}

// MockCall records information about a call to GenerateResponse
type MockCall struct {
	Request *GenerateRequest
}

// NewMockProvider creates a new mock provider for testing
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

// Name returns the provider name
func (m *MockProvider) Name() string {
	return m.name
}

// QueueResponse appends a response to be returned by a later call
func (m *MockProvider) QueueResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// GenerateResponse records the call and returns the next configured
// response, or a canned default when the queue is exhausted
func (m *MockProvider) GenerateResponse(_ context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Request: req})

	if m.respIndex < len(m.responses) {
		resp := m.responses[m.respIndex]
		m.respIndex++
		if resp.Error != nil {
			return nil, resp.Error
		}
		return &GenerateResponse{Content: resp.Content, Usage: resp.Usage}, nil
	}

	return &GenerateResponse{Content: "mock response"}, nil
}

// Calls returns a copy of all recorded calls
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
