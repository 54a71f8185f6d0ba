package queue

// State is the queue's playback state, cached at each transition.
type State int

const (
	// StateEmpty has no tracks.
	StateEmpty State = iota
	// StateCued has a current track that is not (yet) being played.
	StateCued
	StatePlaying
	StatePaused
	// StateExhausted has its cursor past the last track; teardown follows.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateCued:
		return "cued"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}
