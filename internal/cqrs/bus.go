package cqrs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	wmcqrs "github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danghamo/satwatch/pkg/logger"
)

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// BusConfig configures the event bus. A nil RedisClient keeps events inside
// the process.
type BusConfig struct {
	RedisClient   redis.UniversalClient
	ConsumerGroup string
	TopicPrefix   string
	CloseTimeout  time.Duration
}

// Bus wires a watermill event bus and processor over gochannel or Redis
// streams
type Bus struct {
	logger         *logger.Logger
	router         *message.Router
	publisher      message.Publisher
	subscriber     message.Subscriber
	sharedPubSub   bool
	eventBus       *wmcqrs.EventBus
	eventProcessor *wmcqrs.EventProcessor
}

// NewBus creates the publisher, subscriber, router, event bus and processor
func NewBus(cfg BusConfig, log *logger.Logger) (*Bus, error) {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "satwatch-events"
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}

	busLogger := log.WithComponent("event-bus")
	wmLogger := NewWatermillLogger(log)

	var (
		publisher  message.Publisher
		subscriber message.Subscriber
	)
	if cfg.RedisClient != nil {
		pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: cfg.RedisClient,
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}

		// every instance gets its own group so each one sees all events
		sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        cfg.RedisClient,
			ConsumerGroup: fmt.Sprintf("%s-%s", cfg.ConsumerGroup, instanceID()),
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create subscriber: %w", err)
		}
		publisher, subscriber = pub, sub
		busLogger.Info("Event bus using Redis streams")
	} else {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		publisher, subscriber = ch, ch
		busLogger.Info("Event bus using in-process channels")
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	// topics are named after the bare struct name, e.g. satwatch-events.ViewUpdatedEvent
	marshaler := wmcqrs.JSONMarshaler{GenerateName: wmcqrs.StructName}
	topic := func(eventName string) string {
		return fmt.Sprintf("%s.%s", cfg.TopicPrefix, eventName)
	}

	eventBus, err := wmcqrs.NewEventBusWithConfig(publisher, wmcqrs.EventBusConfig{
		GeneratePublishTopic: func(params wmcqrs.GenerateEventPublishTopicParams) (string, error) {
			return topic(params.EventName), nil
		},
		Marshaler: marshaler,
		Logger:    wmLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	eventProcessor, err := wmcqrs.NewEventProcessorWithConfig(router, wmcqrs.EventProcessorConfig{
		GenerateSubscribeTopic: func(params wmcqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return topic(params.EventName), nil
		},
		SubscriberConstructor: func(params wmcqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return subscriber, nil
		},
		Marshaler: marshaler,
		Logger:    wmLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event processor: %w", err)
	}

	return &Bus{
		logger:         busLogger,
		router:         router,
		publisher:      publisher,
		subscriber:     subscriber,
		sharedPubSub:   cfg.RedisClient == nil,
		eventBus:       eventBus,
		eventProcessor: eventProcessor,
	}, nil
}

// AddHandlers registers event handlers; call before Run
func (b *Bus) AddHandlers(handlers ...wmcqrs.EventHandler) error {
	return b.eventProcessor.AddHandlers(handlers...)
}

// Publish sends an event to every subscribed handler
func (b *Bus) Publish(ctx context.Context, event any) error {
	return b.eventBus.Publish(ctx, event)
}

// Run blocks processing events until ctx is cancelled
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once the router has started its handlers
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and releases the pub/sub
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		b.logger.Error("Router shutdown error", zap.Error(err))
		return err
	}
	if err := b.publisher.Close(); err != nil {
		return err
	}
	if !b.sharedPubSub {
		return b.subscriber.Close()
	}
	return nil
}

func instanceID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s", hostname, watermill.NewShortUUID())
}
