//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RedpandaContainer wraps a Kafka-compatible broker.
type RedpandaContainer struct {
	Container testcontainers.Container
	Broker    string
}

// NewRedpandaContainer starts Redpanda and creates the given topics.
func NewRedpandaContainer(t *testing.T, topics ...string) *RedpandaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.2.4")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		t.Fatalf("failed to get seed broker: %v", err)
	}

	if len(topics) > 0 {
		client, err := kgo.NewClient(kgo.SeedBrokers(broker))
		if err != nil {
			t.Fatalf("failed to create admin client: %v", err)
		}
		defer client.Close()

		resp, err := kadm.NewClient(client).CreateTopics(ctx, 1, 1, nil, topics...)
		if err != nil {
			t.Fatalf("failed to create topics: %v", err)
		}
		if err := resp.Error(); err != nil {
			t.Fatalf("failed to create topics: %v", err)
		}
	}

	return &RedpandaContainer{Container: container, Broker: broker}
}
