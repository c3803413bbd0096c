package pacer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallReturnsImmediatelyOnSuccess(t *testing.T) {
	p := New()
	calls := 0
	err := p.Call(context.Background(), func() (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallStopsWhenErrorIsNotRetryable(t *testing.T) {
	p := New()
	wantErr := errors.New("permanent")
	calls := 0
	err := p.Call(context.Background(), func() (bool, error) {
		calls++
		return false, wantErr
	})
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls, "retry=false must not trigger a second attempt")
}

func TestCallRetriesUntilSuccess(t *testing.T) {
	p := &Pacer{MinSleep: time.Millisecond, MaxSleep: 5 * time.Millisecond, DecayConstant: 2, MaxRetries: 5}
	calls := 0
	err := p.Call(context.Background(), func() (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("transient")
		}
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCallGivesUpAfterMaxRetries(t *testing.T) {
	p := &Pacer{MinSleep: time.Millisecond, MaxSleep: 2 * time.Millisecond, DecayConstant: 2, MaxRetries: 3}
	calls := 0
	err := p.Call(context.Background(), func() (bool, error) {
		calls++
		return true, errors.New("always fails")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestCallStopsOnContextCancellation(t *testing.T) {
	p := &Pacer{MinSleep: 50 * time.Millisecond, MaxSleep: time.Second, DecayConstant: 2, MaxRetries: 0}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Call(ctx, func() (bool, error) {
		return true, errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResetBringsBackoffToMinSleep(t *testing.T) {
	p := New()
	p.sleepTime = p.MaxSleep
	p.Reset()
	assert.Equal(t, p.MinSleep, p.sleepTime)
}
