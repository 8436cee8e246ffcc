// Package publisher pushes trip alerts to NATS for downstream
// notification consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"

	"waka/internal/domain"
	"waka/internal/metrics"
)

// NATSPublisher publishes alert events on the alerts.trip.<id>
// subject family.
type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
	collector     *metrics.Collector
}

// NewNATSPublisher connects to NATS. The collector may be nil.
func NewNATSPublisher(url, subjectPrefix string, collector *metrics.Collector) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("waka-tracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if collector != nil {
				collector.NATSConnected.Set(0)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if collector != nil {
				collector.NATSConnected.Set(1)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if collector != nil {
				collector.NATSConnected.Set(0)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}

	if collector != nil {
		collector.NATSConnected.Set(1)
	}

	return &NATSPublisher{nc: nc, subjectPrefix: subjectPrefix, collector: collector}, nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// PublishAlert publishes one alert event as JSON.
func (p *NATSPublisher) PublishAlert(_ context.Context, event domain.AlertEvent) error {
	subject := fmt.Sprintf("%s.%s.%s", p.subjectPrefix, subjectToken(event.TripID), string(event.Kind))

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.nc.Publish(subject, data)
	if p.collector != nil {
		if err != nil {
			p.collector.NATSPublishErrs.Inc()
		} else {
			p.collector.NATSPublished.Inc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
