package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/eventface/internal/models"
)

type TaskHandler func(ctx context.Context, task models.IngestTask) error

type ResultHandler func(ctx context.Context, result models.IngestResult) error

// taskRetryDelays is the wait before redelivering a task whose handler
// failed, indexed by delivery attempt. The last entry repeats.
var taskRetryDelays = []time.Duration{5 * time.Second, 30 * time.Second, 2 * time.Minute}

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
	wg sync.WaitGroup // task fetch loop and workers
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeTasks starts consuming ingest tasks from the MEDIA stream.
// workerCount determines how many goroutines process messages concurrently.
// Malformed payloads are terminated rather than redelivered.
func (c *Consumer) ConsumeTasks(ctx context.Context, consumerName string, handler TaskHandler, workerCount int) error {
	if workerCount < 1 {
		workerCount = 1
	}
	stream, err := c.js.Stream(ctx, MediaStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", MediaStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:      consumerName,
		Durable:   consumerName,
		AckPolicy: jetstream.AckExplicitPolicy,
		// One item may run several extractor calls back to back. Failed
		// handlers nak with an explicit delay, see retryDelay.
		AckWait:       2 * time.Minute,
		MaxDeliver:    5,
		FilterSubject: MediaSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(msgCh)
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch tasks error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				if ctx.Err() != nil {
					_ = msg.Nak()
					continue
				}
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					_ = msg.Nak()
				}
			}
		}
	}()

	c.startWorkers(ctx, msgCh, handler, workerCount)

	slog.Info("task consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

// startWorkers runs workerCount goroutines until msgs is closed. Handlers
// get a context that outlives ctx so an item started before shutdown runs to
// completion; Wait blocks until they are done.
func (c *Consumer) startWorkers(ctx context.Context, msgs <-chan jetstream.Msg, handler TaskHandler, workerCount int) {
	handlerCtx := context.WithoutCancel(ctx)
	for i := 0; i < workerCount; i++ {
		c.wg.Add(1)
		go func(workerID int) {
			defer c.wg.Done()
			for msg := range msgs {
				processTask(handlerCtx, workerID, msg, handler)
			}
		}(i)
	}
}

func processTask(ctx context.Context, workerID int, msg jetstream.Msg, handler TaskHandler) {
	task, err := DecodeTask(msg.Data())
	if err != nil {
		slog.Error("drop malformed task", "worker", workerID, "error", err, "subject", msg.Subject())
		_ = msg.Term()
		return
	}
	if err := handler(ctx, task); err != nil {
		delay := retryDelay(msg)
		slog.Error("process task error", "worker", workerID, "error", err, "media_id", task.MediaID, "retry_in", delay)
		_ = msg.NakWithDelay(delay)
		return
	}
	_ = msg.Ack()
}

func retryDelay(msg jetstream.Msg) time.Duration {
	attempt := 1
	if meta, err := msg.Metadata(); err == nil && meta.NumDelivered > 0 {
		attempt = int(meta.NumDelivered)
	}
	return taskRetryDelays[min(attempt, len(taskRetryDelays))-1]
}

// Wait blocks until the task fetch loop and all workers have returned, or
// ctx is done. Call it after cancelling the context given to ConsumeTasks.
func (c *Consumer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeResults delivers new ingest results to handler. Each call reads
// through its own ephemeral ordered consumer, so every API replica sees every
// result for its websocket clients. Results are best effort and never acked.
func (c *Consumer) ConsumeResults(ctx context.Context, handler ResultHandler) error {
	stream, err := c.js.Stream(ctx, ResultsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", ResultsStreamName, err)
	}

	cons, err := stream.OrderedConsumer(ctx, resultConsumerConfig())
	if err != nil {
		return fmt.Errorf("create result consumer: %w", err)
	}

	go func() {
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				handleResult(ctx, msg.Data(), handler)
			}
		}
	}()

	slog.Info("result consumer started", "stream", ResultsStreamName)
	return nil
}

func resultConsumerConfig() jetstream.OrderedConsumerConfig {
	return jetstream.OrderedConsumerConfig{
		FilterSubjects:    []string{ResultsSubjectBase + ".>"},
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: time.Minute,
	}
}

func handleResult(ctx context.Context, data []byte, handler ResultHandler) {
	var result models.IngestResult
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("drop malformed ingest result", "error", err)
		return
	}
	if err := handler(ctx, result); err != nil {
		slog.Error("process result error", "error", err, "media_id", result.MediaID)
	}
}

// DecodeTask parses an ingest task payload and checks the required fields.
func DecodeTask(data []byte) (models.IngestTask, error) {
	var task models.IngestTask
	if err := json.Unmarshal(data, &task); err != nil {
		return task, fmt.Errorf("unmarshal ingest task: %w", err)
	}
	if task.MediaID == "" || task.EventID == "" || task.ObjectKey == "" {
		return task, fmt.Errorf("ingest task missing fields: media=%q event=%q key=%q", task.MediaID, task.EventID, task.ObjectKey)
	}
	return task, nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
