package playlist

import "time"

// Phase is the lifecycle position of the cast pipeline.
type Phase int

// Cast phases.
const (
	Idle Phase = iota
	Preparing
	Playing
	Paused
	Ended
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Preparing:
		return "Preparing"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Ended:
		return "Ended"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

// CastState is the synchronizer-owned record of what the renderer is
// doing. Only the synchronizer loop mutates it.
type CastState struct {
	Phase        Phase
	Track        Track
	StartedAt    time.Time
	LastPosition time.Duration
	LastDuration time.Duration
}

// active reports whether a track currently occupies the renderer.
func (s CastState) active() bool {
	switch s.Phase {
	case Preparing, Playing, Paused:
		return true
	}
	return false
}
