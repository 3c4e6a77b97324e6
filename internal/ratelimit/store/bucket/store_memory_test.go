package bucket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const (
	testLimit  = 3
	testWindow = time.Minute
)

type InMemoryBucketStoreSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *InMemoryBucketStore
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.store = New(WithClock(func() time.Time { return s.now }))
}

func (s *InMemoryBucketStoreSuite) TestAllow() {
	s.Run("requests up to the limit are allowed", func() {
		for i := range testLimit {
			result, err := s.store.Allow(s.ctx, "k:allow", testLimit, testWindow)
			s.Require().NoError(err)
			s.True(result.Allowed)
			s.Equal(testLimit, result.Limit)
			s.Equal(testLimit-i-1, result.Remaining)
			s.Equal(s.now.Add(testWindow), result.ResetAt)
		}
	})

	s.Run("request over the limit is denied with retry after", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "k:over", testLimit, testWindow)
			s.Require().NoError(err)
		}
		s.now = s.now.Add(20 * time.Second)
		result, err := s.store.Allow(s.ctx, "k:over", testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(40, result.RetryAfter)
	})

	s.Run("keys are independent", func() {
		for range testLimit {
			_, _ = s.store.Allow(s.ctx, "k:a", testLimit, testWindow)
		}
		result, err := s.store.Allow(s.ctx, "k:b", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *InMemoryBucketStoreSuite) TestWindowSlides() {
	_, _ = s.store.Allow(s.ctx, "k", testLimit, testWindow)
	s.now = s.now.Add(30 * time.Second)
	_, _ = s.store.Allow(s.ctx, "k", testLimit, testWindow)
	_, _ = s.store.Allow(s.ctx, "k", testLimit, testWindow)

	result, _ := s.store.Allow(s.ctx, "k", testLimit, testWindow)
	s.False(result.Allowed)

	// The first request leaves the window; the two later ones remain.
	s.now = s.now.Add(30 * time.Second)
	result, _ = s.store.Allow(s.ctx, "k", testLimit, testWindow)
	s.True(result.Allowed)
	s.Equal(0, result.Remaining)
}

func (s *InMemoryBucketStoreSuite) TestDeniedRequestsDoNotExtendTheWindow() {
	for range testLimit {
		_, _ = s.store.Allow(s.ctx, "k", testLimit, testWindow)
	}
	for range 5 {
		s.now = s.now.Add(time.Second)
		_, _ = s.store.Allow(s.ctx, "k", testLimit, testWindow)
	}
	s.now = s.now.Add(testWindow - 5*time.Second)
	result, _ := s.store.Allow(s.ctx, "k", testLimit, testWindow)
	s.True(result.Allowed)
}

func (s *InMemoryBucketStoreSuite) TestResetAndSweep() {
	_, _ = s.store.Allow(s.ctx, "reset", 1, testWindow)
	s.Require().NoError(s.store.Reset(s.ctx, "reset"))
	result, _ := s.store.Allow(s.ctx, "reset", 1, testWindow)
	s.True(result.Allowed)

	_, _ = s.store.Allow(s.ctx, "stale", 1, testWindow)
	s.now = s.now.Add(2 * testWindow)
	s.Equal(2, s.store.Sweep(testWindow))
	s.Empty(s.store.buckets)
}

func (s *InMemoryBucketStoreSuite) TestConcurrentAllowNeverExceedsLimit() {
	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.store.Allow(s.ctx, "k:concurrent", 10, testWindow)
			if err == nil && result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(10, allowed)
}
