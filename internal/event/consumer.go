package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"project-service/internal/models"
	"project-service/internal/repository"

	"github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type Consumer interface {
	Start() error
	Close() error
}

// EventConsumer keeps the users read model in sync with the identity service
// by consuming user-events.
type EventConsumer struct {
	conn           *amqp091.Connection
	channel        *amqp091.Channel
	queueName      string
	userRepository *repository.UserRepository
	shutdown       chan struct{}
	wg             sync.WaitGroup
	enabled        bool
}

func NewEventConsumer(rabbitURI, queueName string, userRepo *repository.UserRepository) (*EventConsumer, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event consumption is disabled")
		return &EventConsumer{
			userRepository: userRepo,
			shutdown:       make(chan struct{}),
			enabled:        false,
		}, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.Qos(
		10,    // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &EventConsumer{
		conn:           conn,
		channel:        channel,
		queueName:      queueName,
		userRepository: userRepo,
		shutdown:       make(chan struct{}),
		enabled:        true,
	}, nil
}

func (c *EventConsumer) Start() error {
	if !c.enabled {
		log.Println("Event consumption is disabled, not starting consumer")
		return nil
	}

	err := c.channel.ExchangeDeclare(
		userEventsExchange, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", userEventsExchange, err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,        // queue name
		"user.#",           // routing key
		userEventsExchange, // exchange
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue to exchange %s: %w", userEventsExchange, err)
	}

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(msgs)
	}()

	log.Println("Event consumer started and listening for user events")
	return nil
}

func (c *EventConsumer) consume(msgs <-chan amqp091.Delivery) {
	for {
		select {
		case <-c.shutdown:
			log.Println("Stopping event consumer")
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Println("Message channel closed, reconnecting...")
				time.Sleep(5 * time.Second)
				return
			}

			err := c.processMessage(msg)
			if err != nil {
				log.Printf("Error processing message: %v", err)
				if err := msg.Nack(false, true); err != nil {
					log.Printf("Error NACKing message: %v", err)
				}
			} else {
				if err := msg.Ack(false); err != nil {
					log.Printf("Error ACKing message: %v", err)
				}
			}
		}
	}
}

func (c *EventConsumer) processMessage(msg amqp091.Delivery) error {
	log.Printf("Processing message from exchange '%s' with routing key: %s", msg.Exchange, msg.RoutingKey)

	switch msg.RoutingKey {
	case UserRegistered, UserUpdated:
		return c.handleUserUpserted(msg.Body)
	case UserDeactivated:
		return c.handleUserDeactivated(msg.Body)
	default:
		log.Printf("Unknown routing key: %s from exchange: %s", msg.RoutingKey, msg.Exchange)
		return nil // Acknowledge the message to avoid requeuing
	}
}

func (c *EventConsumer) handleUserUpserted(body []byte) error {
	var payload UserEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("failed to decode user event: %w", err)
	}

	userID, err := bson.ObjectIDFromHex(payload.UserID)
	if err != nil {
		return fmt.Errorf("invalid user ID in event: %w", err)
	}

	role := models.Role(payload.Role)
	if role != models.RoleAdministrator && role != models.RoleClient {
		log.Printf("Ignoring user event with unknown role %q for user %s", payload.Role, payload.UserID)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user := &models.User{
		ID:       userID,
		Username: payload.Username,
		Email:    payload.Email,
		Role:     role,
		Active:   payload.Active,
	}

	if err := c.userRepository.Upsert(ctx, user); err != nil {
		return fmt.Errorf("failed to apply user event: %w", err)
	}

	log.Printf("Applied user event for user %s", payload.UserID)
	return nil
}

func (c *EventConsumer) handleUserDeactivated(body []byte) error {
	var payload UserEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("failed to decode user event: %w", err)
	}

	userID, err := bson.ObjectIDFromHex(payload.UserID)
	if err != nil {
		return fmt.Errorf("invalid user ID in event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.userRepository.Deactivate(ctx, userID); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	log.Printf("Deactivated user %s", payload.UserID)
	return nil
}

func (c *EventConsumer) Close() error {
	if !c.enabled {
		return nil
	}

	close(c.shutdown)
	c.wg.Wait()

	var err error
	if c.channel != nil {
		err = c.channel.Close()
	}
	if c.conn != nil {
		err = c.conn.Close()
	}
	return err
}
