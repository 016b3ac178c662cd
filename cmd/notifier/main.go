package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ShixuDing/32933-project-match/config"
	"github.com/ShixuDing/32933-project-match/infra/queue"
	"github.com/ShixuDing/32933-project-match/internal/api/rest/handlers"
	"github.com/ShixuDing/32933-project-match/internal/services"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("projmatch.notifier")

func main() {
	if err := run(); err != nil {
		logger.Errorf("notifier stopped: %s", errors.Details(err))
		os.Exit(1)
	}
}

func run() error {
	// ---------- Load Config ----------
	cfg := config.LoadConfig()
	if err := loggo.ConfigureLoggers(cfg.LogLevel); err != nil {
		logger.Warningf("bad LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}
	if err := cfg.ValidateNotifier(); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("KafkaBroker=%s Topic=%s GroupID=%s", cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaGroupID)

	// ---------- Init Service ----------
	mailer, err := services.NewMailService(services.MailConfig{
		SMTPAddr:    cfg.SMTPAddr,
		Username:    cfg.GmailUser,
		AppPassword: cfg.GmailAppPassword,
		From:        cfg.MailFrom,
		FromName:    cfg.MailFromName,
	})
	if err != nil {
		return errors.Trace(err)
	}

	// ---------- Init Kafka Consumer ----------
	consumer := queue.NewKafkaConsumer(
		cfg.KafkaBroker,
		cfg.KafkaTopic,
		cfg.KafkaGroupID,
		cfg.KafkaUsername,
		cfg.KafkaPassword,
		handlers.NewNotificationHandler(mailer),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------- Start Listening ----------
	logger.Infof("notifier listening for assignment events")
	return errors.Trace(consumer.Listen(ctx))
}
