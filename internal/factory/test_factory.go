package factory

import (
	"time"

	"github.com/atlasguess/atlasguess/internal/dependencies/mocks"
	"github.com/atlasguess/atlasguess/internal/history"
	"github.com/atlasguess/atlasguess/internal/snapshot"
	"github.com/atlasguess/atlasguess/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(
		DefaultConfig(),
		snapshot.NewMemoryStore(),
		history.NopRecorder{},
		history.GuestOnlyVerifier{},
		mockClock,
		mockRandom,
		testutil.NopLogger(),
	)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
