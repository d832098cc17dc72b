package models

// ClientMessage is the inbound websocket envelope. Action selects the branch;
// the optional fields belong to specific actions.
type ClientMessage struct {
	Action     string `json:"action"`
	DiceAction string `json:"dice_action,omitempty"` // "roll"
	Choice     string `json:"choice,omitempty"`      // rock | paper | scissors
}

// Inbound action names the server honors.
const (
	ActionPing       = "ping"
	ActionReady      = "ready"
	ActionDiceAction = "dice_action"
	ActionRPSChoice  = "rps_choice"
)
