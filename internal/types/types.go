// Package types defines the wire protocol: one envelope per direction,
// one fixed payload schema per event name. Malformed payloads are
// rejected at the boundary instead of shape-guessed downstream.
package types

import "encoding/json"

// ClientMessage is the client-to-server envelope.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the server-to-client envelope.
type ServerMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> server event names.
const (
	EventName      = "name"
	EventMove      = "move"
	EventMessage   = "message"
	EventKill      = "kill"
	EventVote      = "playerVotedFor"
	EventChangeMap = "changeMap"
	EventOp        = "op"
)

// Server -> client event names.
const (
	EventNewPlayer       = "newPlayer"
	EventGameState       = "gameState"
	EventFlagCaptured    = "flagCaptured"
	EventFlagDropped     = "flagDropped"
	EventFlagMoved       = "flagMoved"
	EventFlagReturned    = "flagReturned"
	EventScoreUp         = "scoreUp"
	EventTimerUpdate     = "timerUpdate"
	EventOvertimeStarted = "overtimeStarted"
	EventGameOver        = "gameOver"
	EventMapChange       = "mapChange"
	EventSkinChange      = "skinChange"
	EventAnnounce        = "announce"
)

// Client -> server payloads.

type NamePayload struct {
	Name string `json:"name"`
}

type MovePayload struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Dash bool    `json:"dash,omitempty"`
}

type MessagePayload struct {
	Text string `json:"text"`
}

type KillPayload struct {
	Name   string `json:"name"`
	Killer string `json:"killer"`
}

type VotePayload struct {
	Player string `json:"player"`
	Map    string `json:"map"`
}

type ChangeMapPayload struct {
	MapName string `json:"mapName"`
}

// OpPayload is the typed operator command channel; the server checks
// the sender against the lobby's operator set before acting.
type OpPayload struct {
	Action string   `json:"action"`
	Args   []string `json:"args,omitempty"`
}

// Server -> client payloads.

type KillEvent struct {
	Player string `json:"player"`
	Killer string `json:"killer"`
}

type MoveEvent struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type FlagEvent struct {
	Player string `json:"player"`
	Flag   string `json:"flag"`
}

type FlagMovedEvent struct {
	Player string  `json:"player"`
	Flag   string  `json:"flag"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type FlagReturnedEvent struct {
	Player   string `json:"player"`
	Flag     string `json:"flag"`
	ScoredBy string `json:"scoredBy,omitempty"`
}

type ScoreUpEvent struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
}

type GameOverEvent struct {
	Winner     string   `json:"winner"`
	TeamWinner string   `json:"teamwinner"`
	Maps       []string `json:"maps"`
}

type MapChangeEvent struct {
	CurrentMap string `json:"currentMap"`
}

type SkinChangeEvent struct {
	Player string `json:"player"`
	Skin   int    `json:"skin"`
}

// Encode marshals a payload into a ready-to-send server frame.
func Encode(event string, payload any) ([]byte, error) {
	msg := ServerMessage{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	return json.Marshal(msg)
}

// EncodeString is Encode for the bare-string payloads (timer updates,
// announcements, chat lines).
func EncodeString(event, s string) ([]byte, error) {
	return Encode(event, s)
}
