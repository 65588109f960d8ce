package gifbolt

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// State is the playback state of a Player.
type State int

const (
	// StateStopped is the initial state; the current frame is 0.
	StateStopped State = iota
	// StatePlaying advances on every AdvanceAndUpdateSurface tick.
	StatePlaying
	// StatePaused holds the current frame until Play or Stop.
	StatePaused
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// AdvanceFrame computes the frame that follows current in a sequence of
// frameCount frames with repeat wraps remaining. A repeat of -1 wraps
// forever; a positive repeat wraps that many more times; at zero the
// playback completes and stays on the last frame. An empty sequence
// completes immediately without touching the repeat budget.
//
// The function is pure so a caller can probe the progression without a
// Player.
func AdvanceFrame(current, frameCount, repeat int) (next int, complete bool, remaining int) {
	if frameCount < 1 {
		return current, true, repeat
	}
	next = current + 1
	if next < frameCount {
		return next, false, repeat
	}
	switch {
	case repeat == -1:
		return 0, false, -1
	case repeat > 0:
		return 0, false, repeat - 1
	default:
		return current, true, 0
	}
}

// EffectiveDelay floors delay at min. Streams commonly carry zero or
// near-zero frame delays that would spin a render loop; the floor keeps
// them sane without slowing intentionally fast animations further.
func EffectiveDelay(delay, min time.Duration) time.Duration {
	if delay < min {
		return min
	}
	return delay
}

// ParseRepeatPolicy converts a human-readable repeat policy into the
// repeat count AdvanceFrame consumes: -1 for infinite, otherwise the
// number of wraps before playback completes.
//
// "Forever" (any case) means infinite. "Nx" with N a positive integer
// means N wraps. An empty policy or "0x" defers to the stream's own
// loop metadata: -1 when looping reports infinite, 1 otherwise.
// Anything unrecognized falls back to metadata the same way.
func ParseRepeatPolicy(policy string, looping bool) int {
	metadata := 1
	if looping {
		metadata = -1
	}
	if policy == "" || policy == "0x" {
		return metadata
	}
	if strings.EqualFold(policy, "Forever") {
		return -1
	}
	if n := len(policy); n >= 2 && (policy[n-1] == 'x' || policy[n-1] == 'X') {
		digits := policy[:n-1]
		if allDigits(digits) {
			if count, err := strconv.Atoi(digits); err == nil && count > 0 {
				return count
			}
		}
	}
	return metadata
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Player is the animation state machine. It tracks the playback state,
// the current frame index, and the remaining repeat budget; it holds no
// pixels. A Renderer pairs one with a Decoder, but a Player is usable
// on its own for callers that drive their own surfaces.
//
// Player is safe for concurrent use.
type Player struct {
	mu            sync.Mutex
	state         State
	current       int
	frameCount    int
	repeat        int
	initialRepeat int
}

// NewPlayer returns a stopped player over an empty sequence.
// Configure binds it to a loaded animation.
func NewPlayer() *Player {
	return &Player{}
}

// Configure rebinds the player to a sequence of frameCount frames with
// the given repeat count (-1 for infinite). The player rewinds to frame
// 0 and stops; Stop later restores the repeat count given here.
func (p *Player) Configure(frameCount, repeat int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frameCount = frameCount
	p.repeat = repeat
	p.initialRepeat = repeat
	p.current = 0
	p.state = StateStopped
}

// Play starts or resumes playback from the current frame. It never
// rewinds; use Stop first to restart from the beginning.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StatePlaying
}

// Pause suspends playback, retaining the current frame. Pausing a
// player that is not playing has no effect.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StatePlaying {
		p.state = StatePaused
	}
}

// Stop halts playback, rewinds to frame 0, and restores the repeat
// count set by Configure.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateStopped
	p.current = 0
	p.repeat = p.initialRepeat
}

// State returns the current playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current returns the current frame index.
func (p *Player) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// SetCurrent seeks to index, clamped to the valid range. Seeking does
// not change the playback state or the repeat budget.
func (p *Player) SetCurrent(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || p.frameCount == 0 {
		index = 0
	} else if index >= p.frameCount {
		index = p.frameCount - 1
	}
	p.current = index
}

// Repeat returns the remaining repeat budget: -1 for infinite,
// otherwise the number of wraps left before playback completes.
func (p *Player) Repeat() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repeat
}

// FrameCount returns the length of the configured sequence.
func (p *Player) FrameCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameCount
}

// Advance steps to the next frame, wrapping or completing per
// AdvanceFrame. On completion the player transitions to Stopped and
// stays on the last frame. Advance itself does not consult the
// playback state; callers driving a render loop gate on State.
func (p *Player) Advance() (next int, complete bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, complete, remaining := AdvanceFrame(p.current, p.frameCount, p.repeat)
	p.current = next
	p.repeat = remaining
	if complete {
		p.state = StateStopped
	}
	return next, complete
}
