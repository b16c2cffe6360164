package events

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an event to its client-visible JSON shape.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Meta().EventType, err)
	}
	return data, nil
}

// Decode restores the concrete event type from its JSON form.
func Decode(data []byte) (Event, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	var e Event
	switch h.EventType {
	case TypePlayerJoined:
		e = &PlayerJoined{}
	case TypePlayerLeft:
		e = &PlayerLeft{}
	case TypeHostChanged:
		e = &HostChanged{}
	case TypeAnswerSubmitted:
		e = &AnswerSubmitted{}
	case TypeGameStarting:
		e = &GameStarting{}
	case TypeQuestionStart:
		e = &QuestionStart{}
	case TypeQuestionEnd:
		e = &QuestionEnd{}
	case TypeGameFinished:
		e = &GameFinished{}
	case TypeScoreUpdate:
		e = &ScoreUpdate{}
	case TypeLeaderboardUpdate:
		e = &LeaderboardUpdate{}
	default:
		return nil, fmt.Errorf("unknown event type %q", h.EventType)
	}

	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.EventType, err)
	}
	return e, nil
}
