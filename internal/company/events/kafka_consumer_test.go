package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeReader serves queued messages and then blocks until ctx ends.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		msg := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestConsumer_Start(t *testing.T) {
	good, err := json.Marshal(Event{Type: CompanyAccepted, CompanyID: uuid.New()})
	require.NoError(t, err)
	failing, err := json.Marshal(Event{Type: CompanyDeleted, CompanyID: uuid.New()})
	require.NoError(t, err)

	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("{not json")},
		{Offset: 3, Value: failing},
	}}

	var handled []EventType
	consumer := NewConsumerWithReader(reader, zaptest.NewLogger(t))
	consumer.RegisterHandler(func(_ context.Context, ev Event) error {
		handled = append(handled, ev.Type)
		if ev.Type == CompanyDeleted {
			return errors.New("cache unavailable")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)
	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.msgs) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-consumer.Done()
	consumer.Close()

	assert.Equal(t, []EventType{CompanyAccepted, CompanyDeleted}, handled)
	offsets := make([]int64, 0, len(reader.committed))
	for _, m := range reader.committed {
		offsets = append(offsets, m.Offset)
	}
	assert.Equal(t, []int64{1, 2}, offsets, "poison messages are committed, failed handlers are not")
	assert.True(t, reader.closed)
}
