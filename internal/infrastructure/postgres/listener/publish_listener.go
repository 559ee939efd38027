package listener

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/lib/pq"

	"fraudserve/internal/infrastructure/postgres"
)

const (
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// PublishListener watches for newly published artifact versions. Loaded
// artifacts are never swapped at runtime; the handler only gets told.
type PublishListener struct {
	connStr string
	handle  func(postgres.PublishNotification)
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPublishListener creates a listener on postgres.PublishChannel.
func NewPublishListener(connStr string, handle func(postgres.PublishNotification)) *PublishListener {
	return &PublishListener{
		connStr: connStr,
		handle:  handle,
		done:    make(chan struct{}),
	}
}

// Start listens in the background until ctx ends or Stop is called.
func (l *PublishListener) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go l.run(ctx)
	log.Println("Artifact publish listener started")
}

// Stop cancels the listener and waits for it to exit.
func (l *PublishListener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	log.Println("Artifact publish listener stopped")
}

func (l *PublishListener) run(ctx context.Context) {
	defer close(l.done)

	for ctx.Err() == nil {
		l.session(ctx)

		select {
		case <-ctx.Done():
		case <-time.After(reconnectInterval):
			log.Printf("Reconnecting to %s", postgres.PublishChannel)
		}
	}
}

// session holds one LISTEN connection until it drops or ctx ends.
func (l *PublishListener) session(ctx context.Context) {
	pl := pq.NewListener(l.connStr, 10*time.Second, time.Minute, logListenerEvent)
	defer pl.Close()

	if err := pl.Listen(postgres.PublishChannel); err != nil {
		log.Printf("LISTEN %s failed: %v", postgres.PublishChannel, err)
		return
	}
	log.Printf("Listening on channel: %s", postgres.PublishChannel)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-pl.Notify:
			if !ok || n == nil {
				return
			}
			l.dispatch(n.Extra)
		case <-ping.C:
			if err := pl.Ping(); err != nil {
				log.Printf("Publish listener ping failed: %v", err)
				return
			}
		}
	}
}

func logListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		log.Printf("Connected to %s", postgres.PublishChannel)
	case pq.ListenerEventDisconnected:
		log.Printf("Disconnected from %s: %v", postgres.PublishChannel, err)
	case pq.ListenerEventReconnected:
		log.Printf("Reconnected to %s", postgres.PublishChannel)
	case pq.ListenerEventConnectionAttemptFailed:
		log.Printf("Connection attempt to %s failed: %v", postgres.PublishChannel, err)
	}
}

func (l *PublishListener) dispatch(extra string) {
	var payload postgres.PublishNotification
	if err := json.Unmarshal([]byte(extra), &payload); err != nil {
		log.Printf("Failed to parse artifact notification: %v", err)
		return
	}
	if l.handle != nil {
		l.handle(payload)
	}
}
