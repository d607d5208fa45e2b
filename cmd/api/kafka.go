package main

import (
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	// kafkaBatchTimeout replaces kafka-go's 1s default so a single message
	// is flushed right away.
	kafkaBatchTimeout = 10 * time.Millisecond
	kafkaWriteTimeout = 5 * time.Second
	kafkaMaxAttempts  = 3
)

// newApprovalWriter is synchronous: a failed dispatch must reach the caller,
// who reports it and leaves the operation pending for a resend.
func newApprovalWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           kafkaBatchTimeout,
		WriteTimeout:           kafkaWriteTimeout,
		MaxAttempts:            kafkaMaxAttempts,
		AllowAutoTopicCreation: true,
	}
}

// newNotificationWriter is asynchronous. Notifications are published after
// settlement has committed and are already stored, so a slow or absent
// broker must not hold up the confirm response; failures are only logged.
func newNotificationWriter(brokers []string, topic string, log *zap.SugaredLogger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           kafkaBatchTimeout,
		WriteTimeout:           kafkaWriteTimeout,
		MaxAttempts:            kafkaMaxAttempts,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warnw("notifications not published", "count", len(msgs), "error", err)
			}
		},
	}
}
