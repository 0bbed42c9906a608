package services

import "time"

// EventKind enumerates the gamification events the dispatcher understands.
// The dispatcher switches exhaustively over these; adding a kind means
// adding a case.
type EventKind string

const (
	EventPointsGained    EventKind = "points_gained"
	EventLevelUp         EventKind = "level_up"
	EventMissionComplete EventKind = "mission_completed"
	EventReaction        EventKind = "reaction"
	EventPollAnswered    EventKind = "poll_answered"
)

// GameEvent is the transient envelope handed to Dispatcher.Process. Payload
// fields are kind-specific; unused fields stay zero.
type GameEvent struct {
	UserID    string
	Kind      EventKind
	Timestamp time.Time

	// EventPointsGained
	PointsEarned     int64
	TotalPointsAfter int64

	// EventLevelUp
	OldLevel int
	NewLevel int

	// EventMissionComplete
	MissionID string

	// EventReaction
	Emoji string

	// EventPollAnswered
	PollID   string
	OptionID string
}

func NewPointsEvent(userID string, earned, totalAfter int64) GameEvent {
	return GameEvent{
		UserID:           userID,
		Kind:             EventPointsGained,
		Timestamp:        time.Now(),
		PointsEarned:     earned,
		TotalPointsAfter: totalAfter,
	}
}

func NewLevelUpEvent(userID string, oldLevel, newLevel int) GameEvent {
	return GameEvent{
		UserID:    userID,
		Kind:      EventLevelUp,
		Timestamp: time.Now(),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

func NewMissionCompletedEvent(userID, missionID string) GameEvent {
	return GameEvent{
		UserID:    userID,
		Kind:      EventMissionComplete,
		Timestamp: time.Now(),
		MissionID: missionID,
	}
}

func NewReactionEvent(userID, emoji string) GameEvent {
	return GameEvent{
		UserID:    userID,
		Kind:      EventReaction,
		Timestamp: time.Now(),
		Emoji:     emoji,
	}
}

func NewPollAnsweredEvent(userID, pollID, optionID string) GameEvent {
	return GameEvent{
		UserID:    userID,
		Kind:      EventPollAnswered,
		Timestamp: time.Now(),
		PollID:    pollID,
		OptionID:  optionID,
	}
}
