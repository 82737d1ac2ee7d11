// Package main (in worker-subfolder) consumes upload notifications from Kafka
// and runs them through the processing pipeline one record per message.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/rapidphoto/pipeline/internal/dispatcher"
	"github.com/rapidphoto/pipeline/internal/kafka"
	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/rapidphoto/pipeline/internal/mwlogger"
	"github.com/rapidphoto/pipeline/internal/notifier"
	"github.com/rapidphoto/pipeline/internal/pipeline"
	"github.com/rapidphoto/pipeline/internal/repository"
	"github.com/rapidphoto/pipeline/internal/storage"
	"github.com/rapidphoto/pipeline/internal/vision/httpvision"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// подключиться к базе и хранилищу
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	repo := repository.NewPostgresPhotoRepo(dbConn)
	strg := storage.NewBlobStorage(appConfig, 10*time.Second)

	// клиенты внешних сервисов
	det := httpvision.NewClient(appConfig.GetString("VISION_URL"), 10*time.Second)
	ntf := notifier.NewHTTPNotifier(appConfig.GetString("BACKEND_URL"), appConfig.GetString("PIPELINE_SECRET"), 10*time.Second)

	pipe, err := pipeline.New(pipeline.ConfigFromEnv(appConfig), repo, strg, det, ntf)
	if err != nil {
		log.Fatalf("Invalid pipeline configuration: %v", err)
	}
	disp := dispatcher.New(pipe, 1) // воркер обрабатывает по одной записи на сообщение

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ждем пока кафка раздуплится и создаем топик если его еще нет
	broker := appConfig.GetString("KAFKA_BROKER")
	topic := appConfig.GetString("KAFKA_TOPIC")
	kafka.WaitKafkaReady(ctx, broker, 5*time.Second)
	kafka.EnsureTopics(ctx, broker,
		intEnv(appConfig, "KAFKA_PARTITIONS", 1),
		intEnv(appConfig, "KAFKA_REPLICATION", 1),
		10*time.Second, topic)

	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	groupID := appConfig.GetString("KAFKA_GROUPID")
	cons := wbfkafka.NewConsumer([]string{broker}, topic, groupID)

	cons.StartConsuming(ctx, queue, retryStrategy)

	go consumeLoop(ctx, disp, queue, cons)

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdown(cons, dbConn)
	log.Println("Exiting worker...")
}

// consumeLoop runs each message through the dispatcher as a one-record batch.
// Parse failures are not retryable and job failures are already marked in the
// metadata store, so the offset is committed either way; the idempotency gate
// keeps a redelivered success from double-processing.
func consumeLoop(ctx context.Context, disp *dispatcher.Dispatcher, queue <-chan kafkago.Message, cons *wbfkafka.Consumer) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}

			record := model.InboundRecord{
				MessageID: messageID(msg),
				Body:      msg.Value,
			}

			recCtx := mwlogger.WithBatchLogger(ctx, record.MessageID)
			summary := disp.ProcessBatch(recCtx, []model.InboundRecord{record})
			if summary.Failed > 0 {
				log.Printf("Record %s failed: %s", record.MessageID, summary.Errors[0].Error)
			}

			if err := cons.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit queue-message: %v", err)
			}
		}
	}
}

func intEnv(appConfig *config.Config, key string, fallback int) int {
	val, err := strconv.Atoi(appConfig.GetString(key))
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func messageID(msg kafkago.Message) string {
	if len(msg.Key) > 0 {
		return string(msg.Key)
	}
	return fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	log.Println("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
