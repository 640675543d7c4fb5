//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sweepstar/service-booking/internal/application"
	"github.com/sweepstar/service-booking/internal/config"
	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	bookingEvents "github.com/sweepstar/service-booking/internal/events"
	"github.com/sweepstar/service-booking/internal/events/contracts"
	"github.com/sweepstar/service-booking/internal/pkg/database"
	"github.com/sweepstar/service-booking/internal/pkg/kafka"
	"github.com/sweepstar/service-booking/internal/repository"
	"github.com/sweepstar/service-booking/migrations"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	Redis        *redis.Client
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Service         *application.BookingService
	Claims          *application.ClaimCoordinator
	Catalog         *application.CatalogService
	Consumer        *bookingEvents.ProviderEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL, Redis and Kafka testcontainers and
// returns a migrated GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
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

	dbCfg := config.DatabaseConfig{
		Host:         pgHost,
		Port:         pgPort.Int(),
		User:         "test",
		Password:     "test",
		Name:         "test_booking",
		SSLMode:      "disable",
		MaxOpenConns: 20,
		MaxIdleConns: 5,
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(dbCfg, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	// Apply the embedded SQL migrations the way production does.
	require.NoError(t, database.RunMigrations(dbCfg.URL(), migrations.FS, ".", logger))

	// Start Redis for the catalog cache.
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	redisEndpoint, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: redisEndpoint})

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, contracts.TopicBookingEvents, contracts.TopicProviderEvents)

	cleanup := func() {
		_ = rdb.Close()
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		Redis:        rdb,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, infra *testInfra) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(infra.DB)
	serviceRepo := repository.NewCachedServiceRepository(
		repository.NewGormServiceRepository(infra.DB), infra.Redis, time.Minute, logger)
	producer := kafka.NewProducer(infra.KafkaBrokers, logger)

	claims := application.NewClaimCoordinator(bookingRepo, producer, logger)
	bookingSvc := application.NewBookingService(
		bookingRepo,
		serviceRepo,
		bookingDomain.NewStandardPricingStrategy(bookingDomain.DefaultMultiplierBounds()),
		bookingDomain.NewLifecycleEngine(bookingDomain.LifecyclePolicy{CancellationCutoff: 2 * time.Hour}),
		claims,
		producer,
		logger,
	)
	catalogSvc := application.NewCatalogService(serviceRepo, bookingRepo, logger)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewProviderEventConsumer(infra.KafkaBrokers, groupID, claims, logger)

	return &bookingStack{
		Service:         bookingSvc,
		Claims:          claims,
		Catalog:         catalogSvc,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedPendingBooking creates a catalog service and a pending booking on it.
func seedPendingBooking(t *testing.T, stack *bookingStack, clientID uuid.UUID) *application.BookingDTO {
	t.Helper()
	ctx := context.Background()

	svc, err := stack.Catalog.CreateService(ctx, application.ServiceRequest{
		Name:         "Deep clean",
		BasePrice:    decimal.NewFromInt(50),
		BaseDuration: 60,
		OptionGroups: []application.OptionGroupRequest{{
			Name:     "Size",
			Required: true,
			Options: []application.OptionRequest{
				{Name: "Small"},
				{Name: "Large", PriceDelta: decimal.NewFromInt(10), DurationDelta: 25},
			},
		}},
		Extras: []application.ExtraRequest{
			{Name: "Windows", PriceDelta: decimal.NewFromInt(5), DurationDelta: 5, MaxQuantity: 3},
		},
	})
	require.NoError(t, err)

	multiplier := decimal.RequireFromString("1.1")
	bk, err := stack.Service.CreateBooking(ctx, clientID, application.CreateBookingRequest{
		ServiceID: svc.ID,
		Selection: application.SelectionRequest{
			OptionIDs: []uuid.UUID{svc.OptionGroups[0].Options[1].ID},
			Extras:    []application.ExtraSelection{{ExtraID: svc.Extras[0].ID, Quantity: 2}},
		},
		ScheduledAt: time.Now().Add(48 * time.Hour),
		AddressID:   uuid.New(),
		Multiplier:  &multiplier,
	})
	require.NoError(t, err)
	return bk
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

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		err := db.Where("id = ?", bookingID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
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
