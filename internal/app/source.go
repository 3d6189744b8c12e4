package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// FrameSource produces one landmark frame per tick. Next returns io.EOF when
// the source is exhausted.
type FrameSource interface {
	Next() (gesture.Frame, error)
	Close() error
}

// ReplaySource plays back a fixed list of frames with their original
// timestamps.
type ReplaySource struct {
	frames []gesture.Frame
	next   int
}

// NewReplaySource returns a source over frames.
func NewReplaySource(frames []gesture.Frame) *ReplaySource {
	return &ReplaySource{frames: frames}
}

// LoadReplaySource reads the frames of a recorded session.
func LoadReplaySource(s *store.Store, sessionID string) (*ReplaySource, error) {
	if _, err := s.Sessions().GetByID(sessionID); err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	recorded, err := s.Frames().List(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load frames of %s: %w", sessionID, err)
	}

	frames := make([]gesture.Frame, len(recorded))
	for i, rf := range recorded {
		var hands []detector.HandLandmarks
		if err := json.Unmarshal(rf.Hands, &hands); err != nil {
			return nil, fmt.Errorf("decode frame %d of %s: %w", rf.Seq, sessionID, err)
		}
		frames[i] = gesture.Frame{Hands: hands, TimestampMs: rf.TimestampMs}
	}

	return NewReplaySource(frames), nil
}

func (r *ReplaySource) Next() (gesture.Frame, error) {
	if r.next >= len(r.frames) {
		return gesture.Frame{}, io.EOF
	}
	f := r.frames[r.next]
	r.next++
	return f, nil
}

// Len returns the number of frames in the source.
func (r *ReplaySource) Len() int {
	return len(r.frames)
}

func (r *ReplaySource) Close() error {
	r.next = len(r.frames)
	return nil
}

// Pose names a preset hand shape used by scripts.
type Pose string

const (
	PoseOpen      Pose = "open"
	PosePinch     Pose = "pinch"
	PoseHoldPinch Pose = "hold_pinch"
	PoseFist      Pose = "fist"
)

var poses = map[Pose]func() detector.HandLandmarks{
	PoseOpen:      detector.OpenPalmLandmarks,
	PosePinch:     detector.PinchLandmarks,
	PoseHoldPinch: detector.HoldPinchLandmarks,
	PoseFist:      detector.FistLandmarks,
}

// ScriptHand places one preset hand in a script step.
type ScriptHand struct {
	Pose Pose                `json:"pose"`
	Hand detector.Handedness `json:"hand"`
	DX   float64             `json:"dx"`
	DY   float64             `json:"dy"`
}

// ScriptStep holds the same hands for a number of frames.
type ScriptStep struct {
	Frames int          `json:"frames"`
	Hands  []ScriptHand `json:"hands"`
}

// Script is a compact description of a landmark sequence.
type Script struct {
	Name       string       `json:"name"`
	IntervalMs int64        `json:"interval_ms"`
	Loop       bool         `json:"loop"`
	Steps      []ScriptStep `json:"steps"`
}

// ParseScript decodes and validates a JSON script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if s.IntervalMs <= 0 {
		s.IntervalMs = 16
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script %q has no steps", s.Name)
	}
	for i, step := range s.Steps {
		if step.Frames <= 0 {
			return nil, fmt.Errorf("script %q step %d: frames must be positive", s.Name, i)
		}
		for _, h := range step.Hands {
			if _, ok := poses[h.Pose]; !ok {
				return nil, fmt.Errorf("script %q step %d: unknown pose %q", s.Name, i, h.Pose)
			}
		}
	}
	return &s, nil
}

// Len returns the number of frames in one pass of the script.
func (s *Script) Len() int {
	n := 0
	for _, step := range s.Steps {
		n += step.Frames
	}
	return n
}

// Frames expands one pass of the script, starting at timestamp 0.
func (s *Script) Frames() []gesture.Frame {
	frames := make([]gesture.Frame, 0, s.Len())
	var ts int64
	for _, step := range s.Steps {
		hands := step.build()
		for i := 0; i < step.Frames; i++ {
			frames = append(frames, gesture.Frame{Hands: hands, TimestampMs: ts})
			ts += s.IntervalMs
		}
	}
	return frames
}

func (st ScriptStep) build() []detector.HandLandmarks {
	if len(st.Hands) == 0 {
		return nil
	}
	out := make([]detector.HandLandmarks, 0, len(st.Hands))
	for _, h := range st.Hands {
		hand := h.Hand
		if hand == "" {
			hand = detector.HandRight
		}
		lm := detector.Translate(poses[h.Pose](), h.DX, h.DY)
		out = append(out, detector.WithHandedness(lm, hand))
	}
	return out
}

// ScriptSource plays a script. Looping scripts keep advancing timestamps
// across passes.
type ScriptSource struct {
	script *Script
	frames []gesture.Frame
	next   int
	offset int64
	closed bool
}

// NewScriptSource returns a source that plays s.
func NewScriptSource(s *Script) *ScriptSource {
	return &ScriptSource{script: s, frames: s.Frames()}
}

func (s *ScriptSource) Next() (gesture.Frame, error) {
	if s.closed {
		return gesture.Frame{}, io.EOF
	}
	if s.next >= len(s.frames) {
		if !s.script.Loop || len(s.frames) == 0 {
			return gesture.Frame{}, io.EOF
		}
		s.offset += int64(len(s.frames)) * s.script.IntervalMs
		s.next = 0
	}
	f := s.frames[s.next]
	f.TimestampMs += s.offset
	s.next++
	return f, nil
}

func (s *ScriptSource) Close() error {
	s.closed = true
	return nil
}
