// Package playback provides the playback sequencer: double-buffered clip
// slots, transition handoff and the command layer.
package playback

import "github.com/osa030/pano360/internal/app/transition"

// Phase represents the sequencer state.
type Phase int

const (
	PhaseIdle                  Phase = iota // No run active
	PhasePreparing                          // First clip decoding, nothing live
	PhaseLive                               // A clip is live, next clip preparing
	PhaseAwaitingSwap                       // Outgoing transition armed, waiting for cut point and decode
	PhaseAwaitingFinalMidpoint              // Last clip leaving, waiting for cut point
	PhaseResetting                          // Releasing resources
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseLive:
		return "live"
	case PhaseAwaitingSwap:
		return "awaiting_swap"
	case PhaseAwaitingFinalMidpoint:
		return "awaiting_final_midpoint"
	case PhaseResetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// run is the handle of one Start..end run.
type run struct {
	done chan struct{}
	err  error
}

// session holds every piece of session-scoped state. The zero value is the
// idle state; a session ends by assigning session{} in one step.
type session struct {
	id    string
	phase Phase

	live      *Slot
	preparing *Slot

	index     int  // Index of the live clip
	nextIndex int  // Index assigned to the preparing slot
	hasNext   bool // preparing slot holds the next clip

	lo, hi int
	loop   bool

	clipFinished    bool
	midpointReached bool
	overridePending bool
	stopping        bool
	armed           bool // outgoing transition triggered, or cut armed

	transition *transition.Handle // Outgoing transition of the live clip
	leaving    *transition.Handle // Transition still in its destroy phase after a swap
	hidden     bool               // Visibility mask applied
	swaps      int

	run *run
}

// currentIndex returns the index the session is positioned on.
func (s *session) currentIndex() int {
	if s.live != nil {
		return s.index
	}
	return s.nextIndex
}

// Snapshot is a copy of the session state for observation.
type Snapshot struct {
	SessionID       string
	Phase           Phase
	LiveSlot        int // -1 when nothing is live
	PreparingSlot   int // -1 when nothing is preparing
	Index           int
	NextIndex       int
	HasNext         bool
	Lo, Hi          int
	Loop            bool
	ClipFinished    bool
	MidpointReached bool
	OverridePending bool
	Stopping        bool
	Swaps           int
}

// IsReset reports whether the snapshot is the idle zero state.
func (s Snapshot) IsReset() bool {
	return s == Snapshot{LiveSlot: -1, PreparingSlot: -1}
}

func (s *session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID:       s.id,
		Phase:           s.phase,
		LiveSlot:        -1,
		PreparingSlot:   -1,
		Index:           s.index,
		NextIndex:       s.nextIndex,
		HasNext:         s.hasNext,
		Lo:              s.lo,
		Hi:              s.hi,
		Loop:            s.loop,
		ClipFinished:    s.clipFinished,
		MidpointReached: s.midpointReached,
		OverridePending: s.overridePending,
		Stopping:        s.stopping,
		Swaps:           s.swaps,
	}
	if s.live != nil {
		snap.LiveSlot = s.live.id
	}
	if s.preparing != nil {
		snap.PreparingSlot = s.preparing.id
	}
	return snap
}
