package command

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnsupported = errors.New("speech recognition is not supported")
	ErrNoSpeech    = errors.New("no speech detected")
)

// Recognizer turns one utterance into text.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// Voice feeds recognized speech through the same grammar as typed input.
// Recognition failures come back as errors, never as Error commands.
type Voice struct {
	rec      Recognizer
	disabled bool
	noticed  bool
}

// NewVoice wraps rec. A nil rec behaves as an unsupported recognizer.
func NewVoice(rec Recognizer) *Voice {
	return &Voice{rec: rec, disabled: rec == nil}
}

func (v *Voice) Listen(ctx context.Context) (Command, string, error) {
	if v.disabled {
		return nil, "", ErrUnsupported
	}

	transcript, err := v.rec.Listen(ctx)
	if errors.Is(err, ErrUnsupported) {
		v.disabled = true
		return nil, "", err
	}

	if err != nil {
		return nil, "", fmt.Errorf("voice: %w", err)
	}

	return Parse(transcript), transcript, nil
}

// Notice returns the unsupported message the first time it is asked for after
// voice got disabled, and false every other time.
func (v *Voice) Notice() (string, bool) {
	if !v.disabled || v.noticed {
		return "", false
	}

	v.noticed = true
	return "Speech recognition is not supported on this device.", true
}
