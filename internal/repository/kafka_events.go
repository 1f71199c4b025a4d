package repository

import (
	"context"
	"time"

	"HistFill/internal/domain/models"
	drepo "HistFill/internal/domain/repository"
	pkgkafka "HistFill/pkg/kafka"
	applogger "HistFill/pkg/logger"
)

// KafkaEvents publishes ingestion lifecycle events keyed by job id so one
// job's events stay ordered within a partition. Publishing is best-effort:
// a broker hiccup must never fail a chunk.
type KafkaEvents struct {
	producer *pkgkafka.Producer
	topic    string
	logger   *applogger.Logger
}

func NewKafkaEvents(producer *pkgkafka.Producer, topic string, logger *applogger.Logger) *KafkaEvents {
	return &KafkaEvents{producer: producer, topic: topic, logger: logger}
}

type jobEvent struct {
	Type      string             `json:"type"`
	JobID     string             `json:"jobId"`
	Chunk     *int               `json:"chunk,omitempty"`
	Status    models.JobStatus   `json:"status,omitempty"`
	Result    *models.FillResult `json:"result,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func (e *KafkaEvents) publish(ctx context.Context, ev jobEvent) {
	ev.Timestamp = time.Now().UTC()
	if err := e.producer.Publish(ctx, e.topic, []byte(ev.JobID), ev); err != nil {
		e.logger.Warn("event publish failed",
			applogger.String("type", ev.Type),
			applogger.String("job_id", ev.JobID),
			applogger.Error(err),
		)
	}
}

func (e *KafkaEvents) JobCreated(ctx context.Context, job *models.Job) {
	e.publish(ctx, jobEvent{Type: "job.created", JobID: job.ID, Status: job.Status})
}

func (e *KafkaEvents) ChunkCompleted(ctx context.Context, jobID string, chunk int, res *models.FillResult) {
	e.publish(ctx, jobEvent{Type: "chunk.completed", JobID: jobID, Chunk: &chunk, Result: res})
}

func (e *KafkaEvents) JobFinished(ctx context.Context, job *models.Job) {
	e.publish(ctx, jobEvent{Type: "job.finished", JobID: job.ID, Status: job.Status})
}

func (e *KafkaEvents) Close() error {
	return e.producer.Close()
}

// NoopEvents is used when no broker is configured.
type NoopEvents struct{}

func (NoopEvents) JobCreated(context.Context, *models.Job)                            {}
func (NoopEvents) ChunkCompleted(context.Context, string, int, *models.FillResult)    {}
func (NoopEvents) JobFinished(context.Context, *models.Job)                           {}
func (NoopEvents) Close() error                                                       { return nil }

var _ drepo.Events = (*KafkaEvents)(nil)
var _ drepo.Events = NoopEvents{}
