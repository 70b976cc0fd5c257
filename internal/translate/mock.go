package translate

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is an in-memory provider for tests. Unknown texts come back
// bracketed so assertions can tell mock output from real passthrough.
type MockProvider struct {
	mu           sync.Mutex
	Translations map[string]string // source text to translation
	Errs         map[string]error  // source text to forced error
	FailFirst    int               // fail this many calls before succeeding
	CallCount    int
	LastRequest  *Request
}

// NewMockProvider creates a mock with an empty translation table.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Translations: make(map[string]string),
		Errs:         make(map[string]error),
	}
}

// Translate returns the configured translation, or the text wrapped in
// brackets when none is set.
func (m *MockProvider) Translate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastRequest = &req

	if m.FailFirst > 0 {
		m.FailFirst--
		return "", &ProviderError{Message: "forced failure", Retryable: true}
	}
	if err, ok := m.Errs[req.Text]; ok {
		return "", err
	}
	if translation, ok := m.Translations[req.Text]; ok {
		return translation, nil
	}
	return fmt.Sprintf("[%s]", req.Text), nil
}

// Calls reports how many times Translate ran.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// Reset clears call tracking.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount = 0
	m.LastRequest = nil
	m.FailFirst = 0
}

var _ Provider = (*MockProvider)(nil)
