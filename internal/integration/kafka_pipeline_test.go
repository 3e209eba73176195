//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/gridatlas/queue-etl/internal/domain"
	"github.com/gridatlas/queue-etl/internal/emissions"
	"github.com/gridatlas/queue-etl/internal/geo"
	"github.com/gridatlas/queue-etl/internal/observability"
	"github.com/gridatlas/queue-etl/internal/pipeline"
	kafkasink "github.com/gridatlas/queue-etl/internal/sink/kafka"
	"github.com/gridatlas/queue-etl/internal/source"
	"github.com/gridatlas/queue-etl/internal/stage"
	"github.com/gridatlas/queue-etl/internal/store/sqlite"
	"github.com/gridatlas/queue-etl/internal/taxonomy"
)

const transitionTopic = "queue-status-transitions-test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker
// address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("queue-etl-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeSnapshots lays out one <source>.csv per entry under dir.
func writeSnapshots(t *testing.T, dir string, snapshots map[string]string) {
	t.Helper()
	for src, csv := range snapshots {
		require.NoError(t, os.WriteFile(filepath.Join(dir, src+".csv"), []byte(csv), 0o644))
	}
}

func newPipeline(t *testing.T, snapshotDir string, store *sqlite.Store, pub *kafkasink.Publisher) *pipeline.Pipeline {
	t.Helper()
	logger := discardLogger()

	tables, err := taxonomy.DefaultTables()
	require.NoError(t, err)
	gazetteer, err := geo.DefaultGazetteer()
	require.NoError(t, err)
	rules, err := stage.DefaultRules()
	require.NoError(t, err)

	miso, err := source.ByName("miso", logger)
	require.NoError(t, err)

	return pipeline.New(pipeline.Deps{
		Adapters:  []source.Adapter{miso},
		Snapshots: source.NewDirReader(snapshotDir),
		Mapper:    taxonomy.NewMapper(tables, false, logger),
		Allocator: geo.NewAllocator(gazetteer, logger),
		Rules:     rules,
		Estimator: emissions.NewEstimator(emissions.DefaultCapacityFactors(), emissions.DefaultTechnologyBoundaryMW, logger),
		Store:     store,
		Publisher: pub,
		Logger:    logger,
		Metrics:   observability.NewMetricsForTesting(),
	})
}

type transitionEvent struct {
	EntityID      string  `json:"entity_id"`
	Attribute     string  `json:"attribute"`
	Value         string  `json:"value"`
	Transition    string  `json:"transition"`
	EffectiveDate string  `json:"effective_date"`
	EndDate       *string `json:"end_date"`
	RunDate       string  `json:"run_date"`
}

func readTransitions(ctx context.Context, t *testing.T, broker string, want int) []transitionEvent {
	t.Helper()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       transitionTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	events := make([]transitionEvent, 0, want)
	for len(events) < want {
		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		cancel()
		require.NoError(t, err, "read from transition topic")

		var ev transitionEvent
		require.NoError(t, json.Unmarshal(msg.Value, &ev))
		assert.Equal(t, ev.EntityID, string(msg.Key), "messages are keyed by entity")
		events = append(events, ev)
	}
	return events
}

// TestPipelinePublishesTransitions runs two reconciliation runs against real
// Kafka and SQLite and verifies the transition stream: the first run opens
// intervals for every tracked attribute, the second publishes exactly the
// close/open pair for the one status that moved.
func TestPipelinePublishesTransitions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, transitionTopic)

	dir := t.TempDir()
	store, err := sqlite.Open(filepath.Join(dir, "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	pub := kafkasink.NewPublisher([]string{broker}, transitionTopic, discardLogger())
	t.Cleanup(func() { _ = pub.Close() })

	snapshotDir := filepath.Join(dir, "snapshots")
	require.NoError(t, os.Mkdir(snapshotDir, 0o755))
	p := newPipeline(t, snapshotDir, store, pub)

	// Day one: two projects enter the queue.
	writeSnapshots(t, snapshotDir, map[string]string{
		"miso": `Project #,Study Phase,Request Status,Fuel Type,Capacity (MW),County,State
J100,Phase 1,Active,Solar,150,Polk,IA
J200,Phase 2,Active,Wind,200,Kossuth,IA
`,
	})
	summary, err := p.Run(ctx, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 4, summary.Opened)

	opened := readTransitions(ctx, t, broker, 4)
	for _, ev := range opened {
		assert.Equal(t, "opened", ev.Transition)
		assert.Equal(t, "2024-03-01", ev.EffectiveDate)
		assert.Nil(t, ev.EndDate)
	}

	// Day two: J100 advances a phase, J200 is unchanged.
	writeSnapshots(t, snapshotDir, map[string]string{
		"miso": `Project #,Study Phase,Request Status,Fuel Type,Capacity (MW),County,State
J100,Phase 2,Active,Solar,150,Polk,IA
J200,Phase 2,Active,Wind,200,Kossuth,IA
`,
	})
	summary, err = p.Run(ctx, time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Closed)
	require.Equal(t, 1, summary.Opened)

	events := readTransitions(ctx, t, broker, 6)[4:]
	byTransition := map[string]transitionEvent{}
	for _, ev := range events {
		assert.Equal(t, "miso:J100", ev.EntityID)
		assert.Equal(t, domain.AttrInterconnectionStatus, ev.Attribute)
		assert.Equal(t, "2024-03-08", ev.RunDate)
		byTransition[ev.Transition] = ev
	}

	closed := byTransition["closed"]
	assert.Equal(t, "Feasibility Study", closed.Value)
	assert.Equal(t, "2024-03-01", closed.EffectiveDate)
	require.NotNil(t, closed.EndDate)
	assert.Equal(t, "2024-03-08", *closed.EndDate)

	reopened := byTransition["opened"]
	assert.Equal(t, "System Impact Study", reopened.Value)
	assert.Equal(t, "2024-03-08", reopened.EffectiveDate)
	assert.Nil(t, reopened.EndDate)

	// The store agrees with the stream.
	intervals, err := store.Intervals(ctx, "miso:J100")
	require.NoError(t, err)
	values := map[string]bool{}
	for _, iv := range intervals {
		if iv.Attribute == domain.AttrInterconnectionStatus {
			values[iv.Value] = iv.Open()
		}
	}
	assert.Equal(t, map[string]bool{"Feasibility Study": false, "System Impact Study": true}, values)
}

// TestPipelinePublishFailureDoesNotLoseCommit points the publisher at a dead
// broker; the run must still commit and the interval history must be intact.
func TestPipelinePublishFailureDoesNotLoseCommit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	dir := t.TempDir()
	store, err := sqlite.Open(filepath.Join(dir, "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	pub := kafkasink.NewPublisher([]string{"127.0.0.1:1"}, transitionTopic, discardLogger())
	t.Cleanup(func() { _ = pub.Close() })

	snapshotDir := filepath.Join(dir, "snapshots")
	require.NoError(t, os.Mkdir(snapshotDir, 0o755))
	writeSnapshots(t, snapshotDir, map[string]string{
		"miso": `Project #,Study Phase,Request Status,Fuel Type,County,State
J100,Phase 1,Active,Solar,Polk,IA
`,
	})

	p := newPipeline(t, snapshotDir, store, pub)
	summary, err := p.Run(ctx, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Opened)

	open, err := store.OpenIntervals(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}
