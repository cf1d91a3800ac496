package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locshare/locshare/pkg/core"
)

// chanSource emits records pushed to fixes and closes on context cancel.
type chanSource struct {
	fixes chan core.LocationRecord
}

func (s *chanSource) Watch(ctx context.Context) (<-chan core.LocationRecord, error) {
	out := make(chan core.LocationRecord)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case rec, ok := <-s.fixes:
				if !ok {
					return
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type recordingSink struct {
	mu        sync.Mutex
	published []core.LocationRecord
	removed   []core.Identifier
}

func (s *recordingSink) Publish(rec core.LocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, rec)
	return nil
}

func (s *recordingSink) Remove(id core.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, id)
	return nil
}

func (s *recordingSink) publishedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func TestPublisher_ForwardsFixesUnderOwnIdentifier(t *testing.T) {
	source := &chanSource{fixes: make(chan core.LocationRecord)}
	sink := &recordingSink{}
	p := New("alice", source, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	source.fixes <- core.LocationRecord{Latitude: 10, Longitude: 20, Timestamp: 1}
	source.fixes <- core.LocationRecord{Latitude: 11, Longitude: 21, Timestamp: 2}

	require.Eventually(t, func() bool {
		return sink.publishedCount() == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, rec := range sink.published {
		assert.Equal(t, core.Identifier("alice"), rec.Identifier)
	}
}

func TestPublisher_RemovesRecordOnStop(t *testing.T) {
	source := &chanSource{fixes: make(chan core.LocationRecord)}
	sink := &recordingSink{}
	p := New("alice", source, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.removed, 1)
	assert.Equal(t, core.Identifier("alice"), sink.removed[0])
}

func TestPublisher_StopsWhenSourceCloses(t *testing.T) {
	source := &chanSource{fixes: make(chan core.LocationRecord)}
	sink := &recordingSink{}
	p := New("alice", source, sink)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	close(source.fixes)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop when source closed")
	}
}

func TestPublisher_MinIntervalThrottles(t *testing.T) {
	source := &chanSource{fixes: make(chan core.LocationRecord)}
	sink := &recordingSink{}
	p := New("alice", source, sink, WithMinInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := 0; i < 5; i++ {
		source.fixes <- core.LocationRecord{Latitude: float64(i), Longitude: 20, Timestamp: int64(i + 1)}
	}

	require.Eventually(t, func() bool {
		return sink.publishedCount() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, 1, sink.publishedCount())
}

func TestRandomWalk_ProducesValidFixes(t *testing.T) {
	walk := &RandomWalk{
		Start:    core.Position{Lat: 52.52, Lon: 13.405},
		Interval: time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fixes, err := walk.Watch(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		rec := <-fixes
		assert.True(t, rec.HasValidPosition(), "fix %d: %+v", i, rec)
	}
}
