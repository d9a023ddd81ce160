package playback

import "time"

// EventType represents a playback event type.
type EventType int

const (
	EventSessionStarted     EventType = iota // Start accepted
	EventSessionEnded                        // Session reset (natural end, stop or abort)
	EventClipStarted                         // Clip became live
	EventClipEnded                           // Clip released
	EventTransitionBegin                     // Transition effect began
	EventTransitionCutPoint                  // Transition reached its visual midpoint
	EventTransitionEnd                       // Transition effect finished
	EventPaused                              // Live clip paused
	EventResumed                             // Live clip resumed
	EventCommandRejected                     // A command was rejected
	EventRunAborted                          // Run terminated by an error
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSessionStarted:
		return "session_started"
	case EventSessionEnded:
		return "session_ended"
	case EventClipStarted:
		return "clip_started"
	case EventClipEnded:
		return "clip_ended"
	case EventTransitionBegin:
		return "transition_begin"
	case EventTransitionCutPoint:
		return "transition_cut_point"
	case EventTransitionEnd:
		return "transition_end"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventCommandRejected:
		return "command_rejected"
	case EventRunAborted:
		return "run_aborted"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type      EventType
	SessionID string
	Index     int    // Clip index (-1 when not clip related)
	ClipID    string // Clip ID (empty when not clip related)
	Command   string // Rejected command name
	Phase     Phase  // Phase after the event
	Err       error  // Rejection or abort cause
	At        time.Time
}
