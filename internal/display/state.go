package display

import "time"

// Phase is the scheduler's position in the presentation cycle.
type Phase string

const (
	// PhaseIdle: not processing; the slot keeps whatever it showed last.
	PhaseIdle Phase = "idle"
	// PhaseFadingOut: the outgoing item is still in the slot but flagged not visible.
	PhaseFadingOut Phase = "fading_out"
	// PhaseActive: the slot item is visible and its hold timer is running.
	PhaseActive Phase = "active"
)

// Snapshot is the renderer-facing view of a screen.
type Snapshot struct {
	Screen string `json:"screen"`
	// Seq increases on every published change.
	Seq        uint64    `json:"seq"`
	Phase      Phase     `json:"phase"`
	Current    Request   `json:"current"`
	Visible    bool      `json:"visible"`
	Processing bool      `json:"processing"`
	QueueLen   int       `json:"queue_len"`
	Shown      uint64    `json:"shown"`
	HoldUntil  time.Time `json:"hold_until,omitempty"`
	At         time.Time `json:"at"`
}

// StateTopic is the bus topic on which a screen's scheduler publishes snapshots.
func StateTopic(screen string) string { return "display.state." + screen }
