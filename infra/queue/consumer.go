package queue

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ShixuDing/32933-project-match/internal/interfaces"
	"github.com/juju/errors"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

type KafkaConsumer struct {
	Reader      *kafka.Reader
	Handler     interfaces.ConsumerHandler
	ServiceName string
}

func NewKafkaConsumer(broker, topic, groupID, username, password string, handler interfaces.ConsumerHandler) *KafkaConsumer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if username != "" {
		dialer.SASLMechanism = plain.Mechanism{Username: username, Password: password}
		dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6, //10MB
		MaxWait:  2 * time.Second,
		Dialer:   dialer,
	})

	return &KafkaConsumer{
		Reader:      reader,
		Handler:     handler,
		ServiceName: "notifier",
	}
}

// Listen reads until ctx is cancelled. Handler errors are logged and the
// message is still committed.
func (kc *KafkaConsumer) Listen(ctx context.Context) error {
	defer func() {
		if err := kc.Reader.Close(); err != nil {
			logger.Warningf("[%s] close reader: %v", kc.ServiceName, err)
		}
	}()

	for {
		msg, err := kc.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Errorf("[%s] read: %v", kc.ServiceName, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		logger.Debugf("[%s] received %s at offset %d", kc.ServiceName, msg.Key, msg.Offset)
		if err := kc.Handler.HandleMessage(string(msg.Value)); err != nil {
			logger.Errorf("[%s] handle %s: %v", kc.ServiceName, msg.Key, errors.Details(err))
		}
	}
}
