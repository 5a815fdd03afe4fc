package replay

import (
	"time"
)

// ParticipantFrame is everything the rendering sink needs for one
// participant in one frame.
type ParticipantFrame struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  Position  `json:"position"`
	GameState GameState `json:"gameState"`
	Role      Role      `json:"role"`
	Visible   bool      `json:"visible"`
	Size      float64   `json:"size"`

	// PingProgress is set while the participant's latest broadcast is
	// younger than one ping interval: 0 at the broadcast, 1 at the next tick.
	PingProgress *float64  `json:"pingProgress"`
	PingPosition *Position `json:"pingPosition,omitempty"`

	Tail []TailPoint `json:"tail"`
}

// Frame is the full engine output at one instant
type Frame struct {
	Sequence  uint64         `json:"sequence"`
	SessionID string         `json:"sessionId"`
	Time      int64          `json:"time"`
	Progress  float64        `json:"progress"`
	Status    PlaybackStatus `json:"status"`
	SlowMo    bool           `json:"slowMo"`
	Speed     float64        `json:"speed"`
	CreatedAt time.Time      `json:"createdAt"`

	// BuildDuration is how long the engine spent computing the frame
	BuildDuration time.Duration `json:"buildDuration"`

	Participants []ParticipantFrame `json:"participants"`

	RunnerCount int `json:"runnerCount"`
	ChaserCount int `json:"chaserCount"`
}

// Frame computes the output for time t into a fresh Frame
func (s *Session) Frame(t int64) Frame {
	var f Frame
	s.FrameInto(&f, t)
	return f
}

// FrameInto computes the output for time t, reusing the slices of dst.
// Participants appear in id order.
func (s *Session) FrameInto(dst *Frame, t int64) {
	dst.SessionID = s.ID
	dst.Time = t
	dst.RunnerCount = 0
	dst.ChaserCount = 0

	latest, hasPing := LatestPing(s.Pings, t)
	interval := s.Options.PingInterval.Milliseconds()

	if cap(dst.Participants) < len(s.IDs) {
		dst.Participants = make([]ParticipantFrame, len(s.IDs))
	}
	dst.Participants = dst.Participants[:len(s.IDs)]

	for i, id := range s.IDs {
		track := s.Tracks[id]
		sample := LocationAt(track, t)
		role := RoleAt(id, sample.GameState, t, s.Timeline)

		p := &dst.Participants[i]
		tail := p.Tail[:0]
		*p = ParticipantFrame{
			ID:        id,
			Name:      s.Name(id),
			Position:  sample.Position(),
			GameState: sample.GameState,
			Role:      role,
			Visible:   sample.IsConnectionActive,
			Size:      s.Options.MarkerSize,
		}
		if s.Options.TailCount > 0 {
			p.Tail = appendTail(tail, track, t, s.Options.TailStep, s.Options.TailCount)
		} else {
			p.Tail = tail
		}

		if hasPing && interval > 0 {
			if loc, ok := latest.Locations[id]; ok && t-latest.Time < interval {
				progress := float64(t-latest.Time) / float64(interval)
				pos := loc.Position()
				p.PingProgress = &progress
				p.PingPosition = &pos
			}
		}

		switch role {
		case RoleRunner:
			dst.RunnerCount++
		case RoleChaser:
			dst.ChaserCount++
		}
	}
}

// FramePool recycles frame buffers between ticks: one being written, one
// published, one spare. It is not safe for concurrent use. The engine writes
// under its mutex and readers clone the published frame under the read lock.
type FramePool struct {
	frames   [3]Frame
	writeIdx uint32
	readIdx  uint32
	sequence uint64
	ready    bool // set by the first publish
}

// NewFramePool preallocates participant slices for n participants
func NewFramePool(n int) *FramePool {
	pool := &FramePool{}
	for i := range pool.frames {
		pool.frames[i].Participants = make([]ParticipantFrame, 0, n)
	}
	return pool
}

// AcquireWrite returns the next buffer to fill (producer only)
func (p *FramePool) AcquireWrite() *Frame {
	p.writeIdx = (p.writeIdx + 1) % 3
	p.sequence++

	f := &p.frames[p.writeIdx]
	f.Sequence = p.sequence
	f.CreatedAt = time.Now()
	return f
}

// PublishWrite makes the last acquired buffer the one readers see
func (p *FramePool) PublishWrite() {
	p.readIdx = p.writeIdx
	p.ready = true
}

// AcquireRead returns the latest published frame, nil before the first publish
func (p *FramePool) AcquireRead() *Frame {
	if !p.ready {
		return nil
	}
	return &p.frames[p.readIdx]
}

// Clone deep-copies the frame so it survives buffer reuse
func (f *Frame) Clone() Frame {
	out := *f
	out.Participants = make([]ParticipantFrame, len(f.Participants))
	for i, p := range f.Participants {
		cp := p
		cp.Tail = append([]TailPoint(nil), p.Tail...)
		if p.PingProgress != nil {
			v := *p.PingProgress
			cp.PingProgress = &v
		}
		if p.PingPosition != nil {
			v := *p.PingPosition
			cp.PingPosition = &v
		}
		out.Participants[i] = cp
	}
	return out
}
