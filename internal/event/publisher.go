package event

import (
	"context"
	"log"
)

type Publisher interface {
	PublishProjectCreated(ctx context.Context, projectID, name, ownerID string) error
	PublishRequestSubmitted(ctx context.Context, requestID, userID, projectID string) error
	PublishRequestReviewed(ctx context.Context, requestID, userID, projectID, status, reviewerID string) error
	PublishAccessGranted(ctx context.Context, projectID, userID, actorID string) error
	PublishAccessRevoked(ctx context.Context, projectID, userID, actorID string) error

	// Close closes the publisher and releases resources
	Close() error
}

type EventPublisher struct {
	rabbitMQ *RabbitMQClient
	enabled  bool
}

func NewEventPublisher(rabbitURI string) (*EventPublisher, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event publishing is disabled")
		return &EventPublisher{
			rabbitMQ: nil,
			enabled:  false,
		}, nil
	}

	client, err := NewRabbitMQClient(rabbitURI)
	if err != nil {
		return nil, err
	}

	err = client.setupExchanges()
	if err != nil {
		client.Close()
		return nil, err
	}

	return &EventPublisher{
		rabbitMQ: client,
		enabled:  true,
	}, nil
}

func (p *EventPublisher) PublishProjectCreated(ctx context.Context, projectID, name, ownerID string) error {
	if !p.enabled {
		log.Println("Event publishing is disabled, skipping ProjectCreatedEvent")
		return nil
	}

	event := NewProjectCreatedEvent(projectID, name, ownerID)

	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	err = p.rabbitMQ.PublishEvent(projectEventsExchange, string(ProjectCreated), eventData)
	if err != nil {
		return err
	}

	log.Printf("Published ProjectCreated event for project %s", projectID)
	return nil
}

func (p *EventPublisher) PublishRequestSubmitted(ctx context.Context, requestID, userID, projectID string) error {
	if !p.enabled {
		log.Println("Event publishing is disabled, skipping RequestSubmittedEvent")
		return nil
	}

	event := NewRequestSubmittedEvent(requestID, userID, projectID)

	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	err = p.rabbitMQ.PublishEvent(projectEventsExchange, string(RequestSubmitted), eventData)
	if err != nil {
		return err
	}

	log.Printf("Published RequestSubmitted event for request %s", requestID)
	return nil
}

func (p *EventPublisher) PublishRequestReviewed(ctx context.Context, requestID, userID, projectID, status, reviewerID string) error {
	if !p.enabled {
		log.Println("Event publishing is disabled, skipping RequestReviewedEvent")
		return nil
	}

	event := NewRequestReviewedEvent(requestID, userID, projectID, status, reviewerID)

	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	err = p.rabbitMQ.PublishEvent(projectEventsExchange, string(RequestReviewed), eventData)
	if err != nil {
		return err
	}

	log.Printf("Published RequestReviewed event for request %s (%s)", requestID, status)
	return nil
}

func (p *EventPublisher) PublishAccessGranted(ctx context.Context, projectID, userID, actorID string) error {
	if !p.enabled {
		log.Println("Event publishing is disabled, skipping AccessGrantedEvent")
		return nil
	}

	event := NewAccessGrantedEvent(projectID, userID, actorID)

	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	err = p.rabbitMQ.PublishEvent(projectEventsExchange, string(AccessGranted), eventData)
	if err != nil {
		return err
	}

	log.Printf("Published AccessGranted event for user %s on project %s", userID, projectID)
	return nil
}

func (p *EventPublisher) PublishAccessRevoked(ctx context.Context, projectID, userID, actorID string) error {
	if !p.enabled {
		log.Println("Event publishing is disabled, skipping AccessRevokedEvent")
		return nil
	}

	event := NewAccessRevokedEvent(projectID, userID, actorID)

	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	err = p.rabbitMQ.PublishEvent(projectEventsExchange, string(AccessRevoked), eventData)
	if err != nil {
		return err
	}

	log.Printf("Published AccessRevoked event for user %s on project %s", userID, projectID)
	return nil
}

// Close releases resources
func (p *EventPublisher) Close() error {
	if !p.enabled || p.rabbitMQ == nil {
		return nil
	}

	return p.rabbitMQ.Close()
}
