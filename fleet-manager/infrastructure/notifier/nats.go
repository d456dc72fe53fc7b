package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const (
	DefaultViewSubject = "quickfleet.fleet.view"

	drainTimeout = 5 * time.Second
)

type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	// closed is closed by the connection's closed handler.
	closed chan struct{}
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultViewSubject
	}
	closed := make(chan struct{})
	var once sync.Once
	opts := []nats.Option{
		nats.Name("quickfleet-manager"),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(_ *nats.Conn) {
			once.Do(func() { close(closed) })
		}),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected to %s", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc, subject: subject, closed: closed}, nil
}

func (p *NATSPublisher) PublishView(ctx context.Context, view *domain.FleetView) error {
	if p.nc == nil || p.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}

	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}
	return p.nc.Publish(p.subject, data)
}

// Close flushes pending views and waits for the connection to close.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	drainAndWait(p.nc.Drain, p.nc.Close, p.closed, drainTimeout+time.Second)
}

// drainAndWait starts an asynchronous drain and blocks until closed fires.
// The connection is closed outright if the drain cannot start or does not
// finish within timeout.
func drainAndWait(drain func() error, forceClose func(), closed <-chan struct{}, timeout time.Duration) {
	if err := drain(); err != nil {
		log.Printf("nats drain failed: %v", err)
		forceClose()
		return
	}
	select {
	case <-closed:
	case <-time.After(timeout):
		log.Printf("nats drain did not finish in %s", timeout)
		forceClose()
	}
}
