// Package kafka bootstraps the upload-notification topics and probes broker readiness
package kafka

import (
	"context"
	"errors"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// EnsureTopics creates the given topics and retries until every one is usable.
// A topic that already exists counts as success, so redeploys are no-ops.
func EnsureTopics(ctx context.Context, brokerAddr string, partitions, replication int, delay time.Duration, topics ...string) {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	req := kafkago.CreateTopicsRequest{
		Topics: make([]kafkago.TopicConfig, 0, len(topics)),
	}
	for _, t := range topics {
		req.Topics = append(req.Topics, kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
		})
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Topic bootstrap canceled")
			return
		default:
		}

		resp, err := client.CreateTopics(ctx, &req)
		if err == nil && countReady(resp.Errors) == len(resp.Errors) {
			log.Println("All topics are ready!")
			return
		}
		if err != nil {
			log.Printf("Failed to run topics creation request: %v", err)
		}

		log.Printf("Topics not ready yet, next try in %v...", delay)
		time.Sleep(delay)
	}
}

// countReady - свежесозданный топик приходит с nil-ошибкой, уже существующий
// с TopicAlreadyExists; оба считаются готовыми
func countReady(topicErrors map[string]error) int {
	ready := 0
	for topic, err := range topicErrors {
		switch {
		case err == nil, errors.Is(err, kafkago.TopicAlreadyExists):
			ready++
		default:
			log.Printf("Topic %q creation error: %v", topic, err)
		}
	}
	return ready
}

// WaitKafkaReady - timeout given to kafka-service for getting fully functional
func WaitKafkaReady(ctx context.Context, brokerAddr string, delay time.Duration) {
	for {
		conn, err := kafkago.Dial("tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				log.Println("Failed to close connection after testing Kafka readyness:", errConn)
			}
			break
		}

		log.Printf("Kafka not ready, retrying in %v...", delay)
		select {
		case <-ctx.Done():
			log.Println("Kafka readiness wait canceled")
			return
		case <-time.After(delay):
		}
	}
	log.Println("Kafka is ready!")
}
