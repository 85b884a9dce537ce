package events

import (
	"github.com/rs/zerolog"

	"github.com/yuiseki/underpass/pkg/log"
)

// LogSink drains a broker subscription into the structured log, so the
// statistics and quality findings the pipeline publishes surface as
// queryable log lines.
type LogSink struct {
	broker *Broker
	sub    Subscriber
	logger zerolog.Logger
	done   chan struct{}
}

// NewLogSink subscribes to the broker and returns a sink ready to start.
func NewLogSink(b *Broker) *LogSink {
	return &LogSink{
		broker: b,
		sub:    b.Subscribe(),
		logger: log.WithComponent("events"),
		done:   make(chan struct{}),
	}
}

// Start begins draining the subscription.
func (s *LogSink) Start() {
	go s.run()
}

// Stop unsubscribes and waits for the drain loop to finish.
func (s *LogSink) Stop() {
	s.broker.Unsubscribe(s.sub)
	<-s.done
}

func (s *LogSink) run() {
	defer close(s.done)
	for ev := range s.sub {
		line := s.logger.Info().
			Str("event", string(ev.Type)).
			Str("id", ev.ID).
			Time("at", ev.Timestamp)
		for k, v := range ev.Metadata {
			line = line.Str(k, v)
		}
		line.Msg(ev.Message)
	}
}
