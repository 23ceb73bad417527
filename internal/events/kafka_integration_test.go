//go:build integration

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "failed to dial Kafka")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
	time.Sleep(time.Second)
}

func TestKafkaPublisherRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start Kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	const topic = "tourist.sos"
	createTopic(t, brokers[0], topic)

	logger, _ := zap.NewDevelopment()
	pub := NewKafkaPublisher(brokers, topic, logger)
	defer pub.Close()

	event, err := NewEvent("sos.raised", "session-int", map[string]string{"type": "police"})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, event))

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "events-it",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer reader.Close()

	var got Event
	require.Eventually(t, func() bool {
		readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		msg, err := reader.ReadMessage(readCtx)
		if err != nil {
			return false
		}
		if json.Unmarshal(msg.Value, &got) != nil {
			return false
		}
		return string(msg.Key) == "session-int"
	}, 30*time.Second, 200*time.Millisecond, "event never arrived")

	require.Equal(t, event.ID, got.ID)
	require.Equal(t, "sos.raised", got.Type)
}
