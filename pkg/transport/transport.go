// Package transport delivers profiler output: a serial-style byte stream,
// a rotated log file, an MQTT topic, or several of these at once.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/absmach/profiler/pkg/mqtt"
	"github.com/absmach/profiler/profiler"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrTimeout    = errors.New("transmit timed out")
	ErrShortWrite = errors.New("short write")
	errEmptyTopic = errors.New("empty topic")
)

var (
	_ profiler.Transport = (*Serial)(nil)
	_ profiler.Transport = (*MQTT)(nil)
	_ profiler.Transport = Multi(nil)
)

type deadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Serial writes payloads to a byte stream one at a time. Writers that
// support write deadlines have the timeout applied to each payload.
type Serial struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSerial(w io.Writer) *Serial {
	return &Serial{w: w}
}

// NewFile returns a Serial backed by a size-rotated log file.
func NewFile(path string, maxSizeMB, maxBackups int) *Serial {
	return NewSerial(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	})
}

func (s *Serial) Transmit(ctx context.Context, payload []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if d, ok := s.w.(deadliner); ok && timeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(timeout)); err == nil {
			defer func() { _ = d.SetWriteDeadline(time.Time{}) }()
		}
	}

	n, err := s.w.Write(payload)
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimeout
	case err != nil:
		return fmt.Errorf("failed to write payload: %w", err)
	case n < len(payload):
		return ErrShortWrite
	}

	return nil
}

// Close closes the underlying writer when it is closable.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// MQTT publishes each payload to a fixed topic.
type MQTT struct {
	pubsub mqtt.PubSub
	topic  string
}

func NewMQTT(pubsub mqtt.PubSub, topic string) (*MQTT, error) {
	if topic == "" {
		return nil, errEmptyTopic
	}

	return &MQTT{pubsub: pubsub, topic: topic}, nil
}

func (m *MQTT) Transmit(ctx context.Context, payload []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data := make([]byte, len(payload))
	copy(data, payload)

	if err := m.pubsub.Publish(ctx, m.topic, data); err != nil {
		return fmt.Errorf("failed to publish payload: %w", err)
	}

	return nil
}

// Multi transmits to every transport and joins their errors.
type Multi []profiler.Transport

func (m Multi) Transmit(ctx context.Context, payload []byte, timeout time.Duration) error {
	var errs []error
	for _, t := range m {
		if err := t.Transmit(ctx, payload, timeout); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
