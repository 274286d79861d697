package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/eventface/internal/models"
)

const (
	MediaStreamName    = "MEDIA"
	MediaSubjectBase   = "media"
	ResultsStreamName  = "INGEST_RESULTS"
	ResultsSubjectBase = "ingested"
)

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

// Subject returns the per-event subject under base. NATS tokens cannot
// contain dots or wildcards, so those are replaced.
func Subject(base, eventID string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, eventID)
	return base + "." + token
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      MediaStreamName,
			Subjects:  []string{MediaSubjectBase + ".>"},
			Retention: jetstream.WorkQueuePolicy,
			// Uploads wait here while the workers catch up after a busy event.
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  2 * time.Minute,
			Description: "Media ingest tasks for face workers",
		},
		{
			Name:        ResultsStreamName,
			Subjects:    []string{ResultsSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Description: "Ingest results per media item",
		},
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishTask queues a media item for ingestion. The media id is used as the
// message id so a retried upload is not indexed twice.
func (p *Producer) PublishTask(ctx context.Context, task models.IngestTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal ingest task: %w", err)
	}

	_, err = p.js.Publish(ctx, Subject(MediaSubjectBase, task.EventID), payload, jetstream.WithMsgID(task.MediaID))
	if err != nil {
		return fmt.Errorf("publish ingest task: %w", err)
	}
	return nil
}

func (p *Producer) PublishResult(ctx context.Context, result models.IngestResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal ingest result: %w", err)
	}

	_, err = p.js.Publish(ctx, Subject(ResultsSubjectBase, result.EventID), payload)
	if err != nil {
		return fmt.Errorf("publish ingest result: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending messages in the MEDIA stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, MediaStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
