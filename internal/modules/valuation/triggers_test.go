package valuation

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wilqq-the/stronghodl/internal/domain"
)

func TestDebouncedTriggerCollapsesBurst(t *testing.T) {
	engine, repo := testEngine(t, &fakeLedger{},
		&fakePriceStore{price: &domain.CurrentPrice{Price: 70000, Timestamp: time.Now()}},
		&fakeResolver{})

	triggers := NewTriggers(engine, 30*time.Millisecond, time.Minute, zerolog.Nop())
	defer triggers.Stop()

	for i := 0; i < 5; i++ {
		triggers.TriggerDebouncedRecompute()
	}

	// Nothing persisted before the window elapses.
	snapshot, err := repo.Get()
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	assert.Eventually(t, func() bool {
		s, err := repo.Get()
		return err == nil && s != nil
	}, time.Second, 10*time.Millisecond)
}

func TestRateLimitedTriggerThrottles(t *testing.T) {
	engine, repo := testEngine(t, &fakeLedger{},
		&fakePriceStore{price: &domain.CurrentPrice{Price: 70000, Timestamp: time.Now()}},
		&fakeResolver{})

	triggers := NewTriggers(engine, time.Minute, time.Minute, zerolog.Nop())
	defer triggers.Stop()

	assert.True(t, triggers.TriggerRateLimitedRecompute())
	assert.False(t, triggers.TriggerRateLimitedRecompute())

	snapshot, err := repo.Get()
	require.NoError(t, err)
	assert.NotNil(t, snapshot)
}
