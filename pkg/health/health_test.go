package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatus_SampleWithinTimeoutStaysAlive(t *testing.T) {
	cfg := ConfigFromComponent(time.Second, 5*time.Second)
	st := NewStatus()
	st.LastSeen = time.Now().Add(-2 * time.Second)

	res := st.Sample(time.Now(), cfg)

	require.True(t, res.Alive)
	require.False(t, st.Dead)
	require.Zero(t, st.ConsecutiveMisses)
}

func TestStatus_SampleAfterTimeoutDies(t *testing.T) {
	cfg := ConfigFromComponent(time.Second, 2*time.Second)
	st := NewStatus()
	st.LastSeen = time.Now().Add(-3 * time.Second)

	res := st.Sample(time.Now(), cfg)

	require.False(t, res.Alive)
	require.True(t, st.Dead)
	require.Equal(t, 1, st.ConsecutiveMisses)
}

func TestStatus_RetriesTolerateASingleMiss(t *testing.T) {
	cfg := Config{Interval: time.Second, Timeout: 2 * time.Second, Retries: 2}
	st := NewStatus()
	now := time.Now()
	st.LastSeen = now.Add(-3 * time.Second)

	res := st.Sample(now, cfg)
	require.True(t, res.Alive)
	require.False(t, st.Dead)
	require.Equal(t, 1, st.ConsecutiveMisses)

	res = st.Sample(now.Add(time.Second), cfg)
	require.False(t, res.Alive)
	require.True(t, st.Dead)
	require.Equal(t, 2, st.ConsecutiveMisses)
}

func TestStatus_SeenResetsMissesAndClearsDead(t *testing.T) {
	cfg := ConfigFromComponent(time.Second, time.Second)
	st := NewStatus()
	st.LastSeen = time.Now().Add(-5 * time.Second)

	st.Sample(time.Now(), cfg)
	require.True(t, st.Dead)

	st.Seen(time.Now())
	require.False(t, st.Dead)
	require.Zero(t, st.ConsecutiveMisses)
}

func TestStatus_DeadIsStickyUntilSeen(t *testing.T) {
	cfg := ConfigFromComponent(time.Second, time.Second)
	st := NewStatus()
	st.LastSeen = time.Now().Add(-5 * time.Second)

	st.Sample(time.Now(), cfg)
	require.True(t, st.Dead)

	res := st.Sample(time.Now(), cfg)
	require.False(t, res.Alive)
}
