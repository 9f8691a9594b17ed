package telemetry

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// Sink is one downstream link that receives every line.
type Sink struct {
	Name string
	W    io.Writer
}

// Publisher writes each line to every sink in order. Writes block; a slow
// sink holds up the ones after it.
type Publisher struct {
	sinks []Sink
}

func NewPublisher(sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks}
}

// Sinks returns the configured sinks in write order.
func (p *Publisher) Sinks() []Sink {
	return p.sinks
}

// Publish sends line to all sinks. A failing sink does not stop the others;
// the failures are returned joined.
func (p *Publisher) Publish(line []byte) error {
	var errs []error
	for _, s := range p.sinks {
		n, err := s.W.Write(line)
		if err == nil && n < len(line) {
			err = io.ErrShortWrite
		}
		if err != nil {
			log.Warnf("telemetry: %s write failed: %v", s.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
