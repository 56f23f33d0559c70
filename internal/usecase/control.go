package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"GreyPulse/internal/domain/models"
	pkgkafka "GreyPulse/pkg/kafka"
	"GreyPulse/pkg/logger"
)

// InstrumentAdmin is the scheduler surface the control channel drives.
type InstrumentAdmin interface {
	Track(inst models.TrackedInstrument) error
	Untrack(id string) error
	Pause(id string) error
	Resume(id string) error
	UpdateStatus(id string, status models.InstrumentStatus) error
}

// ControlHandler consumes tracking commands from the control topic. This
// is how operators and external health probes re-add or resume paused
// instruments without restarting the engine.
type ControlHandler struct {
	topic string
	admin InstrumentAdmin
	log   *logger.Logger
}

func NewControlHandler(topic string, admin InstrumentAdmin, log *logger.Logger) *ControlHandler {
	return &ControlHandler{topic: topic, admin: admin, log: log}
}

func (h *ControlHandler) Topic() string { return h.topic }

// command schema: {action, instrument_id, instrument?, status?}
type controlCommand struct {
	Action       string                    `json:"action"` // track, untrack, pause, resume, status
	InstrumentID string                    `json:"instrument_id,omitempty"`
	Instrument   *models.TrackedInstrument `json:"instrument,omitempty"`
	Status       models.InstrumentStatus   `json:"status,omitempty"`
}

func (h *ControlHandler) Handle(_ context.Context, b []byte) error {
	var cmd controlCommand
	if err := json.Unmarshal(b, &cmd); err != nil {
		return fmt.Errorf("control unmarshal: %w", err)
	}

	var err error
	switch cmd.Action {
	case "track":
		if cmd.Instrument == nil {
			return fmt.Errorf("control track: instrument missing")
		}
		err = h.admin.Track(*cmd.Instrument)
	case "untrack":
		err = h.admin.Untrack(cmd.InstrumentID)
	case "pause":
		err = h.admin.Pause(cmd.InstrumentID)
	case "resume":
		err = h.admin.Resume(cmd.InstrumentID)
	case "status":
		err = h.admin.UpdateStatus(cmd.InstrumentID, cmd.Status)
	default:
		return fmt.Errorf("control: unknown action %q", cmd.Action)
	}
	if err != nil {
		return fmt.Errorf("control %s: %w", cmd.Action, err)
	}

	h.log.Info("control command applied",
		logger.String("action", cmd.Action),
		logger.String("instrument", cmd.InstrumentID))
	return nil
}

var _ pkgkafka.MessageHandler = (*ControlHandler)(nil)
