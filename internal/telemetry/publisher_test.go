package telemetry

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type failingWriter struct{ err error }

func (w failingWriter) Write(p []byte) (int, error) { return 0, w.err }

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }

func TestPublish_WritesEverySink(t *testing.T) {
	var console, radio bytes.Buffer
	p := NewPublisher(Sink{"console", &console}, Sink{"radio", &radio})

	line := []byte("ahtT=1.00\n")
	if err := p.Publish(line); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if console.String() != string(line) || radio.String() != string(line) {
		t.Fatalf("console=%q radio=%q", console.String(), radio.String())
	}
}

func TestPublisher_SinksInWriteOrder(t *testing.T) {
	p := NewPublisher(Sink{"console", io.Discard}, Sink{"radio", io.Discard}, Sink{"mqtt", io.Discard})
	var names []string
	for _, s := range p.Sinks() {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "console,radio,mqtt" {
		t.Fatalf("sinks %v", names)
	}
}

func TestPublish_FailingSinkDoesNotStopOthers(t *testing.T) {
	boom := errors.New("boom")
	var radio bytes.Buffer
	p := NewPublisher(Sink{"console", failingWriter{boom}}, Sink{"short", shortWriter{}}, Sink{"radio", &radio})

	err := p.Publish([]byte("x\n"))
	if !errors.Is(err, boom) || !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("got %v", err)
	}
	if radio.String() != "x\n" {
		t.Fatalf("radio=%q", radio.String())
	}
}

type fakeToken struct {
	err      error
	timedOut bool
}

func (t *fakeToken) Wait() bool                     { return !t.timedOut }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timedOut }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

type fakeBroker struct {
	topic    string
	payloads [][]byte
	token    *fakeToken
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.topic = topic
	b.payloads = append(b.payloads, payload.([]byte))
	return b.token
}

func TestMQTTSink_PublishesTrimmedLine(t *testing.T) {
	b := &fakeBroker{token: &fakeToken{}}
	s := &MQTTSink{client: b, topic: "station/telemetry"}

	n, err := s.Write([]byte("ahtT=1.00\r\n"))
	if err != nil || n != 11 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if b.topic != "station/telemetry" || string(b.payloads[0]) != "ahtT=1.00" {
		t.Fatalf("topic=%q payload=%q", b.topic, b.payloads[0])
	}
}

func TestMQTTSink_Errors(t *testing.T) {
	boom := errors.New("not connected")
	s := &MQTTSink{client: &fakeBroker{token: &fakeToken{err: boom}}, topic: "t"}
	if _, err := s.Write([]byte("x\n")); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}

	s = &MQTTSink{client: &fakeBroker{token: &fakeToken{timedOut: true}}, topic: "t"}
	if _, err := s.Write([]byte("x\n")); err == nil {
		t.Fatalf("expected timeout error")
	}
}
