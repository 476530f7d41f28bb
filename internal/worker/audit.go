package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/monozip/internal/kafka"
	"github.com/jmehdipour/monozip/internal/logger"
	"github.com/jmehdipour/monozip/internal/metrics"
	"github.com/jmehdipour/monozip/internal/model"
	"go.uber.org/zap"
)

// MessageSource is the part of kafka.Consumer the audit worker needs.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// EventSink stores decoded client events.
type EventSink interface {
	InsertBatch(ctx context.Context, events []model.ClientEvent) error
}

// Audit consumes client events published from the outbox and writes them
// to the audit store in batches. Offsets are committed only after a batch
// has been stored (at-least-once).
type Audit struct {
	Source    MessageSource
	Sink      EventSink
	BatchSize int           // max events per flush
	BatchWait time.Duration // max time to wait before flush
	Log       *zap.Logger
}

func NewAudit(src MessageSource, sink EventSink) *Audit {
	return &Audit{
		Source:    src,
		Sink:      sink,
		BatchSize: 200,
		BatchWait: time.Second,
	}
}

// Run blocks until ctx is cancelled, then flushes what is buffered.
func (w *Audit) Run(ctx context.Context) error {
	if w.Source == nil || w.Sink == nil {
		return errors.New("audit: source and sink are required")
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 200
	}
	if w.BatchWait <= 0 {
		w.BatchWait = time.Second
	}
	if w.Log == nil {
		w.Log = logger.Named("audit")
	}

	msgCh := make(chan kafka.Message, w.BatchSize)
	go w.fetch(ctx, msgCh)

	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	b := &batch{}
	for {
		// stop reading while a full batch waits for the sink to recover
		in := msgCh
		if len(b.events) >= w.BatchSize {
			in = nil
		}

		select {
		case <-ctx.Done():
			drain(w.Log, msgCh, b)
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.flush(fctx, b)
			cancel()
			return nil

		case m, ok := <-in:
			if !ok {
				msgCh = nil
				continue
			}
			b.add(w.Log, m)
			if len(b.events) >= w.BatchSize {
				w.flush(ctx, b)
			}

		case <-tick.C:
			w.flush(ctx, b)
		}
	}
}

func (w *Audit) fetch(ctx context.Context, out chan<- kafka.Message) {
	defer close(out)
	for {
		m, err := w.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}

// drain moves already fetched messages into b without blocking.
func drain(log *zap.Logger, in <-chan kafka.Message, b *batch) {
	for {
		select {
		case m, ok := <-in:
			if !ok {
				return
			}
			b.add(log, m)
		default:
			return
		}
	}
}

type batch struct {
	events []model.ClientEvent
	msgs   []kafka.Message
}

func (b *batch) add(log *zap.Logger, m kafka.Message) {
	b.msgs = append(b.msgs, m)

	ev, err := DecodeEvent(m.Value)
	if err != nil {
		// poison: committed with the batch, never stored
		metrics.AuditEvents.WithLabelValues("skipped").Inc()
		log.Warn("skipping undecodable client event",
			zap.Int64("offset", m.Offset), zap.Int("partition", m.Partition), zap.Error(err))
		return
	}
	b.events = append(b.events, ev)
}

func (b *batch) reset() {
	b.events = b.events[:0]
	b.msgs = b.msgs[:0]
}

// flush stores the batch and commits its offsets. On a sink failure the batch
// is kept and retried on the next tick.
func (w *Audit) flush(ctx context.Context, b *batch) {
	if len(b.msgs) == 0 {
		return
	}

	if len(b.events) > 0 {
		if err := w.Sink.InsertBatch(ctx, b.events); err != nil {
			metrics.AuditEvents.WithLabelValues("failed").Add(float64(len(b.events)))
			w.Log.Error("audit batch insert failed", zap.Int("events", len(b.events)), zap.Error(err))
			return
		}
		metrics.AuditEvents.WithLabelValues("stored").Add(float64(len(b.events)))
	}

	if err := w.Source.Commit(ctx, b.msgs...); err != nil {
		w.Log.Error("kafka commit failed", zap.Int("messages", len(b.msgs)), zap.Error(err))
	}
	w.Log.Debug("audit batch flushed", zap.Int("events", len(b.events)), zap.Int("messages", len(b.msgs)))
	b.reset()
}

// DecodeEvent parses a client event from a Kafka record value. The outbox
// router may deliver the payload column either as a JSON object or as a
// JSON string holding it.
func DecodeEvent(value []byte) (model.ClientEvent, error) {
	raw := bytes.TrimSpace(value)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.ClientEvent{}, fmt.Errorf("decode quoted payload: %w", err)
		}
		raw = []byte(s)
	}

	var ev model.ClientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return model.ClientEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.ID == "" {
		return model.ClientEvent{}, errors.New("event without id")
	}
	if !ev.Type.Valid() {
		return model.ClientEvent{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.ClientKey == "" {
		return model.ClientEvent{}, errors.New("event without client key")
	}
	return ev, nil
}
