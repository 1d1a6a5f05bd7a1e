package notify

import (
	"context"
	"fmt"
	"log/slog"

	"antdrive/internal/bus"
	"antdrive/internal/events"
)

// Service listens to ride events on the bus and raises desktop
// notifications for the ones a rider wants to see without a screen in front
// of them.
type Service struct {
	logger *slog.Logger
	bus    bus.MessageBus
	sender Sender
}

func NewService(logger *slog.Logger, b bus.MessageBus, sender Sender) *Service {
	return &Service{
		logger: logger,
		bus:    b,
		sender: sender,
	}
}

func (s *Service) Start(ctx context.Context) {
	sub := s.bus.Subscribe(events.TopicRideState, events.TopicButton, events.TopicConnStatus)
	go s.run(ctx, sub)
}

func (s *Service) run(ctx context.Context, sub bus.Subscription) {
	defer s.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			s.handle(raw)
		}
	}
}

func (s *Service) handle(raw any) {
	switch ev := raw.(type) {
	case events.RideStateChange:
		switch ev.State {
		case events.RideStatePaused:
			s.send("Ride paused", "The trainer reported a pause.")
		case events.RideStateRunning:
			s.send("Ride resumed", "The trainer is running again.")
		}
	case events.ButtonPress:
		s.send("Button pressed", fmt.Sprintf("Head unit button 0x%02X", ev.Code))
	case events.ConnectionStatus:
		if ev.State == events.ConnectionStateDisconnected && ev.Err != "" {
			s.send("Trainer disconnected", ev.Err)
		}
	}
}

func (s *Service) send(title, body string) {
	if err := s.sender.Send(title, body); err != nil {
		s.logger.Warn("send notification", "title", title, "error", err)
	}
}
