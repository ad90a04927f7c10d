package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"crowdsale/internal/tokenomics"
)

// Publisher publishes JSON messages to one durable queue
type Publisher struct {
	mu      sync.Mutex
	channel *amqp.Channel
	queue   string
}

// NewPublisher opens a channel on the shared connection and declares queueName
func NewPublisher(queueName string) (*Publisher, error) {
	if RabbitMQ == nil {
		return nil, errors.New("RabbitMQ connection not initialized")
	}
	ch, err := RabbitMQ.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := declareQueue(ch, queueName); err != nil {
		ch.Close()
		return nil, err
	}
	return &Publisher{channel: ch, queue: queueName}, nil
}

// Publish sends message as a persistent JSON message
func (p *Publisher) Publish(ctx context.Context, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	log.Debugf("Published message to queue %s: %s", p.queue, string(body))
	return nil
}

// PublishPurchase implements tokenomics.EventPublisher
func (p *Publisher) PublishPurchase(ctx context.Context, event tokenomics.PurchaseEvent) error {
	return p.Publish(ctx, event)
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
