package queue

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

var logger = loggo.GetLogger("projmatch.queue")

const publishTimeout = 5 * time.Second

// Producer publishes assignment events. A nil *Producer drops every message,
// which is how the API runs without a broker.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer returns nil when broker is empty. SASL/PLAIN over TLS is used
// only when a username is given.
func NewProducer(broker, topic, username, password string) *Producer {
	if broker == "" || topic == "" {
		logger.Infof("kafka broker not configured, events will not be published")
		return nil
	}

	transport := &kafka.Transport{}
	if username != "" {
		transport.SASL = plain.Mechanism{Username: username, Password: password}
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Async:                  false,
			AllowAutoTopicCreation: true,
			Transport:              transport,
			WriteTimeout:           10 * time.Second,
		},
	}
}

func (p *Producer) PublishMessage(key, value []byte) error {
	if p == nil || p.writer == nil {
		logger.Tracef("producer disabled, dropping %s", key)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
	return errors.Annotatef(err, "publish %s", key)
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
