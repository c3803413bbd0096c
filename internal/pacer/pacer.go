// Package pacer implements the exponential-backoff retry decorator the
// ftp, scp and sftp adapters use to retry their dial in Connect. The
// shape (minSleep, maxSleep,
// decayConstant) mirrors the retry convention visible across the backend
// adapters this module is grounded on (backend/sftp, backend/ftp,
// backend/smb each declare their own minSleep/maxSleep/decayConstant and
// wrap retryable calls in an equivalent loop).
package pacer

import (
	"context"
	"math/rand"
	"time"
)

// Pacer retries a Call's function with exponential backoff between
// attempts, capped at MaxSleep, until it succeeds, the context is done,
// or the function declares the error non-retryable.
type Pacer struct {
	MinSleep      time.Duration
	MaxSleep      time.Duration
	DecayConstant uint
	MaxRetries    int

	sleepTime time.Duration
}

// New builds a Pacer with the defaults observed across the backends:
// 100ms min, 2s max, decay constant 2.
func New() *Pacer {
	return &Pacer{
		MinSleep:      100 * time.Millisecond,
		MaxSleep:      2 * time.Second,
		DecayConstant: 2,
		MaxRetries:    10,
	}
}

// Paced is the signature a retried operation implements: it returns
// (retry, err) — retry tells the Pacer whether err is worth retrying.
type Paced func() (retry bool, err error)

// Call runs fn, retrying on a retryable error with exponential backoff.
func (p *Pacer) Call(ctx context.Context, fn Paced) error {
	if p.sleepTime == 0 {
		p.sleepTime = p.MinSleep
	}
	var err error
	for attempt := 0; p.MaxRetries <= 0 || attempt < p.MaxRetries; attempt++ {
		var retry bool
		retry, err = fn()
		if !retry || err == nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.jitter()):
		}
		p.grow()
	}
	return err
}

func (p *Pacer) grow() {
	p.sleepTime *= time.Duration(p.DecayConstant)
	if p.sleepTime > p.MaxSleep {
		p.sleepTime = p.MaxSleep
	}
}

// jitter adds +/-50% randomness to avoid a thundering herd of retries.
func (p *Pacer) jitter() time.Duration {
	half := p.sleepTime / 2
	return half + time.Duration(rand.Int63n(int64(p.sleepTime)))
}

// Reset brings the backoff back to MinSleep. Call does not reset it after
// a success, so a reused Pacer keeps its grown backoff until Reset.
func (p *Pacer) Reset() { p.sleepTime = p.MinSleep }
