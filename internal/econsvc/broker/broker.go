package broker

import (
	"encoding/json"

	"github.com/econlab/econ-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Broker pushes game lifecycle events onto the NATS backbone and lets
// collaborating services consume them. It satisfies the orchestrator's
// EventPublisher; publish failures are logged, never surfaced, so a flaky
// backbone cannot fail a settlement.
type Broker struct {
	Conn *nats.Conn
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{Conn: nc}
}

func (b *Broker) PublishGameEvent(eventType string, ev comm.GameEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("[PublishGameEvent] unable to marshal game event %s", ev.GameID)
		return
	}

	msg := &comm.EventMessage{
		Type: eventType,
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(comm.TopicEvents, payload)
}

func (b *Broker) PublishRoundSettled(gameID string, summary comm.RoundSummary) {
	round := struct {
		GameID string            `json:"game_id"`
		Round  comm.RoundSummary `json:"round"`
	}{
		GameID: gameID,
		Round:  summary,
	}

	data, err := json.Marshal(round)
	if err != nil {
		log.Errorf("[PublishRoundSettled] unable to marshal round summary for game %s", gameID)
		return
	}

	msg := &comm.EventMessage{
		Type: comm.EventRoundSettled,
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(comm.TopicEvents, payload)
}

// SubscribeEvents delivers every backbone event to the handler.
func (b *Broker) SubscribeEvents(handler func(msg *comm.EventMessage)) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(comm.TopicEvents, func(msgNat *nats.Msg) {
		msg := &comm.EventMessage{}
		if err := json.Unmarshal(msgNat.Data, msg); err != nil {
			log.Errorf("Error nats message %s", err)
			return
		}
		handler(msg)
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// QueueSubscribeEvents spreads backbone events across a queue group so
// multiple agent instances do not double-play the same round.
func (b *Broker) QueueSubscribeEvents(queueGroup string, handler func(msg *comm.EventMessage)) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(comm.TopicEvents, queueGroup, func(msgNat *nats.Msg) {
		msg := &comm.EventMessage{}
		if err := json.Unmarshal(msgNat.Data, msg); err != nil {
			log.Errorf("Error nats message %s", err)
			return
		}
		handler(msg)
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
