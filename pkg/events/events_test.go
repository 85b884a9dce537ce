package events

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuiseki/underpass/pkg/log"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})
}

func TestPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	ev := New(EventStateRecorded, "replication/minute/004/230/996")
	ev.Metadata["sequence"] = "4230996"
	b.Publish(ev)

	select {
	case got := <-sub:
		assert.Equal(t, EventStateRecorded, got.Type)
		assert.Equal(t, "4230996", got.Metadata["sequence"])
		assert.NotEmpty(t, got.ID)
		assert.False(t, got.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMultipleSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	require.Equal(t, 2, b.SubscriberCount())

	b.Publish(New(EventFindingDuplicate, "way 800"))

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case got := <-sub:
			assert.Equal(t, EventFindingDuplicate, got.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	_, open := <-sub
	assert.False(t, open)
	assert.Zero(t, b.SubscriberCount())
}

// syncBuffer makes the sink's concurrent log writes safe to read back.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogSinkDrainsEvents(t *testing.T) {
	buf := &syncBuffer{}
	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: buf})
	defer log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})

	b := NewBroker()
	b.Start()
	defer b.Stop()

	sink := NewLogSink(b)
	sink.Start()

	ev := New(EventFindingDuplicate, "conflation finding")
	ev.Metadata["way"] = "800"
	b.Publish(ev)

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "finding.duplicate")
	}, time.Second, 10*time.Millisecond)
	sink.Stop()

	out := buf.String()
	assert.Contains(t, out, `"way":"800"`)
	assert.Contains(t, out, "conflation finding")
	assert.Zero(t, b.SubscriberCount())
}
