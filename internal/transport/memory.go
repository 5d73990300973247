package transport

import (
	"context"
	"sync"
)

// Message is one recorded publish.
type Message struct {
	Topic   string
	Payload []byte
}

// Memory is an in-process Publisher that records every message in order.
type Memory struct {
	mu       sync.Mutex
	messages []Message
	failures []error
	attempts int
	closed   bool
}

func NewMemory() *Memory {
	return &Memory{}
}

// FailNext makes the next n Publish calls return err without recording.
func (m *Memory) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.failures = append(m.failures, err)
	}
}

func (m *Memory) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.closed {
		return ErrClosed
	}
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return err
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	m.messages = append(m.messages, Message{Topic: topic, Payload: buf})
	return nil
}

func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Attempts counts Publish calls, including failed ones.
func (m *Memory) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}
