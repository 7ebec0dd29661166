package notifier

import (
	"context"

	"trustpay/internal/domain/entity"
)

// Publisher — буферизованный канал доменных событий. Publish никогда не
// блокирует переход: при переполненном буфере событие отбрасывается, аудит
// в базе при этом остаётся полным.
type Publisher struct {
	events chan entity.AuditEvent
}

func NewPublisher(buffer int) *Publisher {
	return &Publisher{
		events: make(chan entity.AuditEvent, buffer),
	}
}

func (p *Publisher) Publish(event entity.AuditEvent) {
	select {
	case p.events <- event:
	default:
		logger(context.Background()).Warn("notification buffer full, event dropped",
			"deal_id", event.DealID, "action", event.Action)
	}
}

// Events — канал для нотификатора.
func (p *Publisher) Events() <-chan entity.AuditEvent {
	return p.events
}

// Close закрывает канал. Вызывается один раз при остановке приложения.
func (p *Publisher) Close() {
	close(p.events)
}
