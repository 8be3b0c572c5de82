package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/eventbus"
	"github.com/dokzlo13/sunlamp/internal/ledger"
)

// ledgerTypes maps bus events to ledger entries and their default source.
var ledgerTypes = map[eventbus.EventType]struct {
	entry  ledger.EventType
	source string
}{
	eventbus.EventTypePhase:   {ledger.EventPhaseDispatched, "scheduler"},
	eventbus.EventTypeCommand: {ledger.EventCommandReceived, "control"},
	eventbus.EventTypeMode:    {ledger.EventModeChanged, "scheduler"},
	eventbus.EventTypeClock:   {ledger.EventClockResync, "clock"},
}

// EventService records lamp events from the bus into the ledger.
type EventService struct {
	bus    *eventbus.Bus
	ledger *ledger.Ledger
}

// NewEventService creates a new EventService.
func NewEventService(bus *eventbus.Bus, l *ledger.Ledger) *EventService {
	return &EventService{bus: bus, ledger: l}
}

// Start subscribes to every event type.
func (s *EventService) Start() {
	s.bus.Subscribe(s.record, eventbus.AllEventTypes...)
}

func (s *EventService) record(event eventbus.Event) {
	mapping, ok := ledgerTypes[event.Type]
	if !ok {
		return
	}

	source := mapping.source
	if src, ok := event.Data["source"].(string); ok && src != "" {
		source = src
	}

	id, err := s.ledger.Append(mapping.entry, source, event.Data)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to record event")
		return
	}
	log.Debug().Str("id", id).Str("event_type", string(mapping.entry)).Msg("Event recorded")
}
