package factory

import (
	"time"

	"github.com/mcoot/ultratic/internal/dependencies/mocks"
	"github.com/mcoot/ultratic/internal/services/lifecycle"
	"github.com/mcoot/ultratic/internal/session"
	"github.com/mcoot/ultratic/internal/storage/memory"
	"github.com/mcoot/ultratic/internal/testutil"
)

// TestSessionSecret keys session cookies in test apps
const TestSessionSecret = "test-session-secret-0123456789abcdef"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithPageSize(0)
}

// NewTestAppWithPageSize is NewTestApp with a custom stats page size
func NewTestAppWithPageSize(pageSize int) *TestApp {
	ledger := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	sessCfg := session.DefaultConfig()
	sessCfg.Secret = []byte(TestSessionSecret)

	app, err := newWithDependencies(ledger, mockClock, sessCfg, lifecycle.DefaultConfig(), pageSize, testutil.NopLogger())
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:       app,
		MockClock: mockClock,
	}
}
