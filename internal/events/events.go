// internal/events/events.go
package events

import "github.com/starplay/starplay/internal/models"

// EventType is an enum-like type for outbound broadcast events.
type EventType string

const (
	EventPong               EventType = "pong"
	EventPlayerJoined       EventType = "player_joined"
	EventPlayerReady        EventType = "player_ready"
	EventGameStarted        EventType = "game_started"
	EventGameStart          EventType = "game_start"
	EventRPSStarted         EventType = "rps_started"
	EventRPSChoiceMade      EventType = "rps_choice_made"
	EventDiceRollResult     EventType = "dice_roll_result" // direct to the acting player
	EventTieDetected        EventType = "tie_detected"
	EventGameResults        EventType = "game_results"
	EventGameFinished       EventType = "game_finished"
	EventRoomCancelled      EventType = "room_cancelled"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventError              EventType = "error" // direct, human-readable reason
)

// Event is the outbound envelope. The vocabulary is closed: every broadcast the
// core emits uses one of the EventType constants above, and the optional fields
// below cover their payloads. Room carries a snapshot on room-scoped events.
type Event struct {
	Type   EventType            `json:"type"`
	RoomID string               `json:"room_id,omitempty"`
	Room   *models.RoomSnapshot `json:"room,omitempty"`

	// Player-scoped fields.
	Player   *models.Player `json:"player,omitempty"`
	PlayerID string         `json:"player_id,omitempty"`

	// Counters used by lobby progress events.
	PlayersCount int `json:"players_count,omitempty"`
	ReadyCount   int `json:"ready_count,omitempty"`
	ChoicesCount int `json:"choices_count,omitempty"`
	TotalPlayers int `json:"total_players,omitempty"`

	// Dice fields.
	Roll      *DiceRoll                    `json:"roll,omitempty"`
	Results   map[string]models.DiceResult `json:"results,omitempty"`
	GameState map[string]interface{}       `json:"game_state,omitempty"`

	// Settlement fields.
	Result         string            `json:"result,omitempty"` // win | tie | complex_tie
	Winners        []string          `json:"winners,omitempty"`
	PrizePerWinner int64             `json:"prize_per_winner,omitempty"`
	TotalPrize     int64             `json:"total_prize,omitempty"`
	Choices        map[string]string `json:"choices,omitempty"`

	// Fairness disclosure, set only once a round is decisive.
	Seed  string `json:"seed,omitempty"`
	Nonce string `json:"nonce,omitempty"`

	// Timers, seconds.
	Countdown int `json:"countdown,omitempty"`
	Timer     int `json:"timer,omitempty"`

	Message string `json:"message,omitempty"`
}

// DiceRoll is the acting player's private roll outcome.
type DiceRoll struct {
	Die1             int  `json:"die1"`
	Die2             int  `json:"die2"`
	Total            int  `json:"total"`
	AllPlayersRolled bool `json:"all_players_rolled"`
}

// ErrorEvent builds a direct error event with a human-readable reason.
func ErrorEvent(reason string) Event {
	return Event{Type: EventError, Message: reason}
}
