//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tripmate/service-routemap/internal/application"
	"github.com/tripmate/service-routemap/internal/bridge"
	"github.com/tripmate/service-routemap/internal/common/kafka"
	itineraryDomain "github.com/tripmate/service-routemap/internal/domain/itinerary"
	"github.com/tripmate/service-routemap/internal/events"
	"github.com/tripmate/service-routemap/internal/geo"
	"github.com/tripmate/service-routemap/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// routemapStack is one running instance of the service: its own hub,
// publisher source and itinerary consumer, sharing the database.
type routemapStack struct {
	Itineraries     *application.ItineraryService
	Maps            *application.MapService
	Hub             *bridge.Hub
	Consumer        *events.ItineraryEventConsumer
	CleanupProducer func()
}

// straightRoutes routes through the waypoints themselves so tests do not
// depend on the TMap API.
type straightRoutes struct{}

func (straightRoutes) Route(_ context.Context, _ itineraryDomain.TransportMode, wps []itineraryDomain.Waypoint) ([]geo.Projected, error) {
	out := make([]geo.Projected, len(wps))
	for i, w := range wps {
		out[i] = geo.ToProjected(w.LatLng)
	}
	return out, nil
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_routemap",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_routemap sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.ItineraryModel{}, &repository.FeedbackModel{}))

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicItineraryEvents, events.TopicMapEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupRoutemapStack wires one service instance the way cmd/server does,
// with in-process bridge transports and a fake route provider.
func setupRoutemapStack(t *testing.T, db *gorm.DB, brokers []string) *routemapStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	instanceID := uuid.NewString()
	source := events.InstanceSource(instanceID)

	repo := repository.NewGormItineraryRepository(db)
	producer := kafka.NewProducer(brokers, logger)
	publisher := events.NewPublisher(producer, source, logger)

	hub := bridge.NewHub(bridge.ControllerDeps{
		Store:     repo,
		Routes:    straightRoutes{},
		Publisher: publisher,
	}, bridge.HubConfig{RedrawDelay: 5 * time.Millisecond}, bridge.MemoryTransports(64), logger)
	t.Cleanup(hub.CloseAll)

	groupID := fmt.Sprintf("test-routemap-%s", instanceID[:8])
	consumer := events.NewItineraryEventConsumer(brokers, groupID, source, hub, logger)

	return &routemapStack{
		Itineraries:     application.NewItineraryService(repo, nil, publisher, hub, nil, logger),
		Maps:            application.NewMapService(hub, logger),
		Hub:             hub,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seoulDayTrip is a one-day itinerary with three located places.
func seoulDayTrip() application.CreateItineraryRequest {
	lat := func(v float64) *float64 { return &v }
	return application.CreateItineraryRequest{
		Destination:    "서울",
		StartDate:      "2025-03-01",
		EndDate:        "2025-03-01",
		Transportation: []string{"대중교통"},
		Days: []application.DayInput{{
			Date: "2025-03-01",
			Places: []application.PlaceInput{
				{Title: "서울시청", Lat: lat(37.5665), Lng: lat(126.978)},
				{Title: "경복궁", Lat: lat(37.5796), Lng: lat(126.977), Cost: 3000},
				{Title: "강남역", Lat: lat(37.4979), Lng: lat(127.0276), Cost: 5000},
			},
		}},
	}
}

// waitForWaypoints polls a session until its controller shows n waypoints.
func waitForWaypoints(t *testing.T, stack *routemapStack, sessionID string, n int, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		session, err := stack.Hub.Get(sessionID)
		if err != nil {
			return false
		}
		return len(session.Controller.Status().Waypoints) == n
	}, timeout, 100*time.Millisecond, "session %s did not reach %d waypoints", sessionID, n)
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
