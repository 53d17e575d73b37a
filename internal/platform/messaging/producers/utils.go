package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicReadAttempts = 5
	topicReadBackoff  = 2 * time.Second
)

// topicAdmin is the part of *kafka.Conn used to inspect and create topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// createKafkaTopicIfNotExists creates the topic when its partitions cannot be read
func createKafkaTopicIfNotExists(conn topicAdmin, topicName string, numPartitions int, replicationFactor int, log *slog.Logger) error {
	return ensureTopic(conn, kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     max(numPartitions, 1),
		ReplicationFactor: max(replicationFactor, 1),
	}, topicReadAttempts, topicReadBackoff, log)
}

func ensureTopic(conn topicAdmin, topic kafka.TopicConfig, attempts int, backoff time.Duration, log *slog.Logger) error {
	var partitions []kafka.Partition
	var err error

	for i := 0; i < attempts; i++ {
		partitions, err = conn.ReadPartitions(topic.Topic)
		if err == nil {
			break
		}
		log.Warn("Failed to read partitions, retrying", "topic", topic.Topic, "attempt", i+1, "error", err)
		if i < attempts-1 {
			time.Sleep(backoff)
		}
	}

	if len(partitions) > 0 {
		log.Info("Kafka topic already exists", "topic", topic.Topic, "partitions", len(partitions))
		return nil
	}

	log.Info("Kafka topic not found, creating it", "topic", topic.Topic, "last_read_error", err)
	if err := conn.CreateTopics(topic); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic.Topic, err)
	}
	log.Info("Created Kafka topic", "topic", topic.Topic)
	return nil
}
