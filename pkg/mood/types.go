// Package mood implements the pet's emotional state machine.
//
// A Machine consumes one (score, face present) sample per pipeline tick and
// discrete gesture events. It smooths the score with an EMA, derives a
// hysteretic focus level and maps that level to a mood, with timers for
// absence, gesture interaction and long-focus excitement.
package mood

import (
	"fmt"
	"strings"
)

// Mood is the externally visible emotional state.
type Mood int

const (
	Idle Mood = iota
	Happy
	Excited
	Sad
	Sleepy
	Interact
)

var moodNames = [...]string{
	Idle:     "idle",
	Happy:    "happy",
	Excited:  "excited",
	Sad:      "sad",
	Sleepy:   "sleepy",
	Interact: "interact",
}

func (m Mood) String() string {
	if m < 0 || int(m) >= len(moodNames) {
		return fmt.Sprintf("mood(%d)", int(m))
	}
	return moodNames[m]
}

// MarshalText encodes the mood as its lowercase name.
func (m Mood) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(moodNames) {
		return nil, fmt.Errorf("invalid mood %d", int(m))
	}
	return []byte(moodNames[m]), nil
}

// UnmarshalText decodes a lowercase mood name.
func (m *Mood) UnmarshalText(text []byte) error {
	v, err := ParseMood(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMood parses a mood name, case-insensitively.
func ParseMood(s string) (Mood, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range moodNames {
		if n == name {
			return Mood(i), nil
		}
	}
	return Idle, fmt.Errorf("unknown mood %q", s)
}

// Level is the hysteretic attentiveness level.
type Level int

const (
	Away Level = iota
	Distracted
	Focused
)

var levelNames = [...]string{
	Away:       "away",
	Distracted: "distracted",
	Focused:    "focused",
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// MarshalText encodes the level as its lowercase name.
func (l Level) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= len(levelNames) {
		return nil, fmt.Errorf("invalid level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText decodes a lowercase level name.
func (l *Level) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range levelNames {
		if n == name {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("unknown level %q", text)
}

// Gesture is a discrete user interaction.
type Gesture int

const (
	Wave Gesture = iota
	Heart
	Ok
	ThumbsUp
)

var gestureNames = [...]string{
	Wave:     "wave",
	Heart:    "heart",
	Ok:       "ok",
	ThumbsUp: "thumbsup",
}

func (g Gesture) String() string {
	if g < 0 || int(g) >= len(gestureNames) {
		return fmt.Sprintf("gesture(%d)", int(g))
	}
	return gestureNames[g]
}

// MarshalText encodes the gesture as its lowercase name.
func (g Gesture) MarshalText() ([]byte, error) {
	if g < 0 || int(g) >= len(gestureNames) {
		return nil, fmt.Errorf("invalid gesture %d", int(g))
	}
	return []byte(gestureNames[g]), nil
}

// UnmarshalText decodes a gesture name.
func (g *Gesture) UnmarshalText(text []byte) error {
	v, err := ParseGesture(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// ParseGesture parses a gesture name. "thumbs_up" and "thumbs-up" are
// accepted as aliases of "thumbsup".
func ParseGesture(s string) (Gesture, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.NewReplacer("_", "", "-", "").Replace(name)
	for i, n := range gestureNames {
		if n == name {
			return Gesture(i), nil
		}
	}
	return Wave, fmt.Errorf("unknown gesture %q", s)
}
