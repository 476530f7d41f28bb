package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/monozip/internal/kafka"
	"github.com/jmehdipour/monozip/internal/model"
	"github.com/jmehdipour/monozip/internal/worker"
	"github.com/stretchr/testify/require"
)

type chanSource struct {
	ch chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newChanSource() *chanSource { return &chanSource{ch: make(chan kafka.Message, 16)} }

func (s *chanSource) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-s.ch:
		return m, nil
	}
}

func (s *chanSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *chanSource) offsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type memSink struct {
	mu      sync.Mutex
	fail    int // number of calls to fail
	batches [][]model.ClientEvent
}

func (s *memSink) InsertBatch(_ context.Context, events []model.ClientEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("clickhouse down")
	}
	s.batches = append(s.batches, append([]model.ClientEvent(nil), events...))
	return nil
}

func (s *memSink) stored() []model.ClientEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ClientEvent
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func eventMsg(t *testing.T, offset int64, id string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(model.ClientEvent{
		ID:         id,
		Type:       model.ClientCreated,
		ClientKey:  "acme",
		ClientName: "Acme",
		Prefix:     "ACM",
		OccurredAt: time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestAuditFlushesFullBatchAndCommits(t *testing.T) {
	src, sink := newChanSource(), &memSink{}
	w := worker.NewAudit(src, sink)
	w.BatchSize = 3
	w.BatchWait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := int64(0); i < 3; i++ {
		src.ch <- eventMsg(t, i, "ev"+string(rune('a'+i)))
	}

	require.Eventually(t, func() bool { return len(sink.stored()) == 3 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []int64{0, 1, 2}, src.offsets())

	cancel()
	require.NoError(t, <-done)
}

func TestAuditFlushesRemainderOnShutdown(t *testing.T) {
	src, sink := newChanSource(), &memSink{}
	w := worker.NewAudit(src, sink)
	w.BatchSize = 10
	w.BatchWait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	src.ch <- eventMsg(t, 7, "only")
	require.Eventually(t, func() bool { return len(src.ch) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Len(t, sink.stored(), 1)
	require.Equal(t, []int64{7}, src.offsets())
}

func TestAuditSkipsPoisonButCommitsIt(t *testing.T) {
	src, sink := newChanSource(), &memSink{}
	w := worker.NewAudit(src, sink)
	w.BatchSize = 2
	w.BatchWait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	src.ch <- kafka.Message{Offset: 1, Value: []byte("not json")}
	src.ch <- eventMsg(t, 2, "good1")
	src.ch <- eventMsg(t, 3, "good2")

	require.Eventually(t, func() bool { return len(sink.stored()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []int64{1, 2, 3}, src.offsets())
}

func TestAuditRetriesAfterSinkFailure(t *testing.T) {
	src, sink := newChanSource(), &memSink{fail: 1}
	w := worker.NewAudit(src, sink)
	w.BatchSize = 1
	w.BatchWait = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	src.ch <- eventMsg(t, 5, "retry")

	require.Eventually(t, func() bool { return len(sink.stored()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []int64{5}, src.offsets())
}

func TestDecodeEvent(t *testing.T) {
	obj := []byte(`{"id":"01HX","type":"client.updated","client_key":"am","client_name":"AMさま","prefix":"AMS_KTC","occurred_at":"2024-03-07T09:00:00Z"}`)

	ev, err := worker.DecodeEvent(obj)
	require.NoError(t, err)
	require.Equal(t, model.ClientUpdated, ev.Type)
	require.Equal(t, "AMさま", ev.ClientName)

	quoted, err := json.Marshal(string(obj))
	require.NoError(t, err)
	ev2, err := worker.DecodeEvent(quoted)
	require.NoError(t, err)
	require.Equal(t, ev, ev2)

	_, err = worker.DecodeEvent([]byte(`{"id":"x","type":"client.renamed","client_key":"am"}`))
	require.Error(t, err)
	_, err = worker.DecodeEvent([]byte(`{"type":"client.created","client_key":"am"}`))
	require.Error(t, err)
}
