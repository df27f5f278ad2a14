package rabbitmq_consumer

import (
	"context"
	"fmt"
	"log"

	"cian-pipeline/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение. Возвращает:
// ack — подтвердить сообщение; requeueOnError — вернуть в очередь при отказе.
type MessageHandler func(d amqp.Delivery) (ack bool, requeueOnError bool, err error)

// ConsumerConfig — конфигурация потребителя.
type ConsumerConfig struct {
	rabbitmq_common.Config
	QueueName           string
	RoutingKeyForBind   string
	ExchangeNameForBind string
	PrefetchCount       int
	DurableQueue        bool
	ConsumerTag         string
	DeclareQueue        bool
}

// Consumer читает сообщения из одной очереди и передает их обработчику.
type Consumer struct {
	config     ConsumerConfig
	connection *amqp.Connection
	channel    *amqp.Channel
	handler    MessageHandler
}

// NewConsumer создает потребителя: соединение, канал, объявление
// и привязка очереди.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid base config: %w", err)
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("consumer: queue name is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("consumer: message handler is required")
	}

	c := &Consumer{config: cfg, handler: handler}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("consumer: failed to dial RabbitMQ: %w", err)
	}
	c.connection = conn

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("consumer: failed to open a channel: %w", err)
	}
	c.channel = ch

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			c.closeQuietly()
			return nil, fmt.Errorf("consumer: failed to set QoS: %w", err)
		}
	}

	if cfg.DeclareQueue {
		_, err = ch.QueueDeclare(
			cfg.QueueName,
			cfg.DurableQueue,
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			c.closeQuietly()
			return nil, fmt.Errorf("consumer: failed to declare queue '%s': %w", cfg.QueueName, err)
		}

		if cfg.ExchangeNameForBind != "" {
			err = ch.QueueBind(cfg.QueueName, cfg.RoutingKeyForBind, cfg.ExchangeNameForBind, false, nil)
			if err != nil {
				c.closeQuietly()
				return nil, fmt.Errorf("consumer: failed to bind queue '%s' to exchange '%s': %w",
					cfg.QueueName, cfg.ExchangeNameForBind, err)
			}
		}
	}

	log.Printf("Consumer: Connected, queue '%s' ready.\n", cfg.QueueName)
	return c, nil
}

// StartConsuming запускает цикл обработки. Блокирует до отмены контекста
// или закрытия канала доставки.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.config.QueueName,
		c.config.ConsumerTag,
		false, // auto-ack выключен: подтверждаем вручную по результату обработчика
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consumer: failed to start consuming from '%s': %w", c.config.QueueName, err)
	}

	log.Printf("Consumer: Started consuming from '%s' (tag: %s)\n", c.config.QueueName, c.config.ConsumerTag)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Consumer: Context cancelled, stopping consumption from '%s'.\n", c.config.QueueName)
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				log.Printf("Consumer: Delivery channel closed for '%s'.\n", c.config.QueueName)
				return nil
			}
			c.handleDelivery(d)
		}
	}
}

func (c *Consumer) handleDelivery(d amqp.Delivery) {
	ack, requeue, err := c.handler(d)
	if err != nil {
		log.Printf("Consumer: Handler error (tag: %d): %v\n", d.DeliveryTag, err)
	}

	if ack {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Printf("Consumer: Failed to ack message (tag: %d): %v\n", d.DeliveryTag, ackErr)
		}
		return
	}
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Printf("Consumer: Failed to nack message (tag: %d): %v\n", d.DeliveryTag, nackErr)
	}
}

// Close закрывает канал и соединение потребителя.
func (c *Consumer) Close() error {
	log.Println("Consumer: Closing...")
	var firstErr error

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
		c.channel = nil
	}
	if c.connection != nil {
		if err := c.connection.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.connection = nil
	}
	return firstErr
}

func (c *Consumer) closeQuietly() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.connection != nil {
		_ = c.connection.Close()
	}
}
