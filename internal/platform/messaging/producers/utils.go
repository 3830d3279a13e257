package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// createKafkaTopicIfNotExists creates a Kafka topic if not found, retrying
// on partition read errors. role identifies which of nexusd/nexus-worker's
// three topics this is (bank-task dispatch, dead-letter, or ingestion
// notification) so a single shared log stream can tell them apart.
func createKafkaTopicIfNotExists(conn *kafka.Conn, topicName, role string, numPartitions int, replicationFactor int, log *slog.Logger) error {
	var partitions []kafka.Partition
	var err error

	log.Info("checking if kafka topic exists", "topic", topicName, "role", role)
	for i := 0; i < 5; i++ { // Retry topic partition read
		partitions, err = conn.ReadPartitions(topicName)
		if err == nil {
			break // Topic exists and partitions read
		}
		log.Warn("failed to read partitions, retrying", "topic", topicName, "role", role, "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second) // Wait before retrying
	}

	if err != nil && len(partitions) == 0 {
		log.Info("could not definitively read partitions (or topic does not exist), attempting to create topic", "topic", topicName, "role", role, "last_error_read", err)
	}

	if len(partitions) == 0 {
		log.Info("kafka topic does not exist or is not accessible, attempting to create it", "topic", topicName, "role", role)
		topicConfig := kafka.TopicConfig{
			Topic:             topicName,
			NumPartitions:     numPartitions,
			ReplicationFactor: replicationFactor,
		}
		if topicConfig.NumPartitions == 0 {
			topicConfig.NumPartitions = 1
			log.Debug("defaulting NumPartitions to 1 for topic creation", "topic", topicName, "role", role)
		}
		if topicConfig.ReplicationFactor == 0 {
			topicConfig.ReplicationFactor = 1
			log.Debug("defaulting ReplicationFactor to 1 for topic creation", "topic", topicName, "role", role)
		}

		creationErr := conn.CreateTopics(topicConfig)
		if creationErr != nil {
			return fmt.Errorf("failed to create kafka topic %s (%s): %w", topicName, role, creationErr)
		}
		log.Info("successfully created kafka topic", "topic", topicName, "role", role)
	} else if err == nil {
		log.Info("kafka topic already exists", "topic", topicName, "role", role)
	} else {
		log.Warn("kafka topic seems to exist but there was an error during final partition read attempt", "topic", topicName, "role", role, "error", err)
	}
	return nil
}
