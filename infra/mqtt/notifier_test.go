package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/haulcommand/dispatchd/core/notify"
	"github.com/haulcommand/dispatchd/infra/logger"
)

type mockToken struct {
	err error
}

func (t *mockToken) Wait() bool                     { return true }
func (t *mockToken) WaitTimeout(time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *mockToken) Error() error { return t.err }

type mockClient struct {
	topics    []string
	payloads  [][]byte
	failFirst int
}

func (m *mockClient) IsConnected() bool      { return true }
func (m *mockClient) Connect() paho.Token    { return &mockToken{} }
func (m *mockClient) Disconnect(uint)        {}
func (m *mockClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	if m.failFirst > 0 {
		m.failFirst--
		return &mockToken{err: context.DeadlineExceeded}
	}
	m.topics = append(m.topics, topic)
	m.payloads = append(m.payloads, payload.([]byte))
	return &mockToken{}
}

func newTestNotifier(cli pahoClient) *Notifier {
	return &Notifier{
		cli:        cli,
		topicRoot:  "dispatch/offers",
		qos:        1,
		maxRetries: 3,
		backoff:    time.Millisecond,
		log:        logger.NopLogger{},
	}
}

func TestNotifyOffer_PublishesToEscortTopic(t *testing.T) {
	cli := &mockClient{}
	n := newTestNotifier(cli)

	err := n.NotifyOffer(context.Background(), notify.OfferNotification{
		EscortID: "esc-1",
		LoadID:   "ld-1",
		Title:    "Load Offer",
		Wave:     1,
	})
	if err != nil {
		t.Fatalf("NotifyOffer: %v", err)
	}
	if len(cli.topics) != 1 || cli.topics[0] != "dispatch/offers/esc-1" {
		t.Fatalf("unexpected topics %v", cli.topics)
	}

	var got notify.OfferNotification
	if err := json.Unmarshal(cli.payloads[0], &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.LoadID != "ld-1" || got.Wave != 1 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestNotifyOffer_RetriesOnBrokerError(t *testing.T) {
	cli := &mockClient{failFirst: 2}
	n := newTestNotifier(cli)

	err := n.NotifyOffer(context.Background(), notify.OfferNotification{EscortID: "esc-2"})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(cli.topics) != 1 {
		t.Fatalf("expected one successful publish, got %d", len(cli.topics))
	}
}

func TestNotifyOffer_ExhaustsRetries(t *testing.T) {
	cli := &mockClient{failFirst: 10}
	n := newTestNotifier(cli)

	if err := n.NotifyOffer(context.Background(), notify.OfferNotification{EscortID: "esc-3"}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}
