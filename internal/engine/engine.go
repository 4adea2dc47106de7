// Package engine holds the authoritative per-lobby game state: players,
// team counters, flags, and the transitions between them. It is pure
// state machine; transport and timing live in the lobby.
package engine

import (
	"errors"
	"fmt"
	stdmaps "maps"
	"math"
	"math/rand"
	"slices"
	"time"
)

var (
	ErrNameTaken     = errors.New("name already in use")
	ErrNameInvalid   = errors.New("invalid name")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrUnknownMap    = errors.New("unknown map")
)

type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

func (t Team) Opposing() Team {
	if t == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

// SystemKiller attributes an elimination to the server itself:
// anti-cheat, kicks, disconnects.
const SystemKiller = "system"

const (
	FieldWidth  = 1000
	FieldHeight = 500

	PlayerWidth  = 25
	PlayerHeight = 25
	FlagWidth    = 25
	FlagHeight   = 100

	MoveSpeed = 75

	// Square half-width for both proximity kills and flag touches.
	ProximityRange = 20
	CaptureRange   = 20

	spawnSpread = 50

	maxMessages = 10
)

type Player struct {
	Name     string    `json:"name"`
	ConnID   string    `json:"id"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Team     Team      `json:"team"`
	Color    string    `json:"color"`
	Score    int       `json:"score"`
	Carrying bool      `json:"capture"`
	Operator bool      `json:"isOp"`
	Skin     int       `json:"skin"`
	LastMove time.Time `json:"-"`
}

type Flag struct {
	Team    Team    `json:"team"`
	Color   string  `json:"color"`
	HomeX   float64 `json:"homeX"`
	HomeY   float64 `json:"homeY"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Carrier string  `json:"capturedBy"`
}

func newFlag(team Team) *Flag {
	x, y := flagHome(team)
	return &Flag{Team: team, Color: string(team), HomeX: x, HomeY: y, X: x, Y: y}
}

func flagHome(team Team) (float64, float64) {
	if team == TeamRed {
		return 100, 250
	}
	return 900, 250
}

// AtHome reports whether the flag sits untouched at its base.
func (f *Flag) AtHome() bool {
	return f.Carrier == "" && f.X == f.HomeX && f.Y == f.HomeY
}

func (f *Flag) resetHome() {
	f.X, f.Y = f.HomeX, f.HomeY
	f.Carrier = ""
}

// State is one lobby's authoritative game state. RedCount and BlueCount
// are the single source of truth for team populations, updated at every
// join and elimination; TeamWinner recomputes only as a tie-break.
type State struct {
	Players    map[string]*Player `json:"players"`
	Flags      map[Team]*Flag     `json:"flags"`
	Messages   []string           `json:"messages"`
	CurrentMap string             `json:"currentMap"`

	RedCount  int             `json:"-"`
	BlueCount int             `json:"-"`
	HighScore int             `json:"-"`
	Ops       map[string]bool `json:"-"`
}

func NewState(currentMap string) *State {
	return &State{
		Players: map[string]*Player{},
		Flags: map[Team]*Flag{
			TeamRed:  newFlag(TeamRed),
			TeamBlue: newFlag(TeamBlue),
		},
		Messages:   []string{},
		CurrentMap: currentMap,
		Ops:        map[string]bool{},
	}
}

func (s *State) LiveCount() int { return len(s.Players) }

// Join adds a player to the smaller team (ties go blue) and spawns them
// near that team's flag. Operators get the trusted color up front.
func (s *State) Join(name, connID string, operator bool, now time.Time) (*Player, []Event, error) {
	if name == "" {
		return nil, nil, ErrNameInvalid
	}
	if _, taken := s.Players[name]; taken {
		return nil, nil, ErrNameTaken
	}

	team := TeamBlue
	if s.RedCount < s.BlueCount {
		team = TeamRed
	}
	if team == TeamRed {
		s.RedCount++
	} else {
		s.BlueCount++
	}

	flag := s.Flags[team]
	p := &Player{
		Name:     name,
		ConnID:   connID,
		X:        flag.HomeX - spawnSpread/2 + rand.Float64()*spawnSpread,
		Y:        flag.HomeY - spawnSpread/2 + rand.Float64()*spawnSpread,
		Team:     team,
		Color:    string(team),
		LastMove: now,
	}
	if operator {
		s.Ops[name] = true
		p.Operator = true
		p.Color = "yellow"
	}
	s.Players[name] = p

	return p, []Event{NewPlayer{Player: *p}}, nil
}

// Remove eliminates a player, attributing the kill to killer. Safe to
// call for a name that already left; it does nothing.
func (s *State) Remove(name, killer string) []Event {
	p, ok := s.Players[name]
	if !ok {
		return nil
	}
	return s.eliminate(p, killer)
}

func (s *State) eliminate(p *Player, killer string) []Event {
	if p.Team == TeamRed {
		s.RedCount--
	} else {
		s.BlueCount--
	}
	delete(s.Players, p.Name)
	delete(s.Ops, p.Name)

	events := []Event{Kill{Player: p.Name, Killer: killer}}
	for _, f := range s.Flags {
		if f.Carrier == p.Name {
			// Drop where the carrier last stood.
			f.Carrier = ""
			f.X, f.Y = p.X, p.Y
			events = append(events, FlagDropped{Player: p.Name, Flag: f.Team})
		}
	}
	if p.Score > s.HighScore {
		s.HighScore = p.Score
		events = append(events, s.PushMessage(fmt.Sprintf(
			"[System.Log] says New Highscore: %d from %s", p.Score, p.Name))...)
	}
	return events
}

// ApplyMove validates and applies a claimed position, then runs the
// move-driven cascades: proximity kills, flag capture, return, carried
// flag tracking, and scoring. A rejected move never mutates position.
func (s *State) ApplyMove(name string, x, y float64, dash bool, now time.Time) ([]Event, error) {
	p, ok := s.Players[name]
	if !ok {
		return nil, ErrUnknownPlayer
	}

	if Implausible(p.X, p.Y, x, y, now.Sub(p.LastMove), dash) {
		if p.Operator {
			// Trusted role: no kill, but the move is still discarded.
			return nil, nil
		}
		return s.eliminate(p, SystemKiller), nil
	}

	if canMove(x, y) {
		p.X, p.Y = x, y
		p.LastMove = now
	}
	events := []Event{Moved{Name: p.Name, X: p.X, Y: p.Y}}

	// Proximity kills. Victims are collected first so elimination does
	// not mutate the map mid-iteration.
	var victims []*Player
	for _, other := range s.Players {
		if other.Name == p.Name || other.Operator {
			continue
		}
		if within(p.X, p.Y, other.X, other.Y, ProximityRange) {
			victims = append(victims, other)
		}
	}
	for _, victim := range victims {
		p.Score += max(victim.Score, 1)
		events = append(events, ScoreUp{Player: p.Name, Score: p.Score})
		events = append(events, s.eliminate(victim, p.Name)...)
	}

	enemy := s.Flags[p.Team.Opposing()]
	if !p.Carrying && enemy.Carrier == "" && within(p.X, p.Y, enemy.X, enemy.Y, CaptureRange) {
		p.Carrying = true
		enemy.Carrier = p.Name
		events = append(events, FlagCaptured{Player: p.Name, Flag: enemy.Team})
	}

	own := s.Flags[p.Team]
	if own.Carrier == "" && !own.AtHome() && within(p.X, p.Y, own.X, own.Y, CaptureRange) {
		own.resetHome()
		events = append(events, FlagReturned{Player: p.Name, Flag: own.Team})
	}

	if p.Carrying {
		enemy.X, enemy.Y = p.X, p.Y-FlagHeight/2
		events = append(events, FlagMoved{Player: p.Name, Flag: enemy.Team, X: enemy.X, Y: enemy.Y})

		// Scoring: the carrier reaches their own base zone.
		if boxesOverlap(p.X, p.Y, PlayerWidth, PlayerHeight,
			own.HomeX, own.HomeY, FlagWidth, FlagHeight) {
			p.Score++
			p.Carrying = false
			enemy.resetHome()
			events = append(events,
				ScoreUp{Player: p.Name, Score: p.Score},
				FlagReturned{Player: p.Name, Flag: enemy.Team, ScoredBy: p.Name})
		}
	}

	return events, nil
}

// AdminKill eliminates a player on behalf of killer, who must be an
// operator. Unauthorized or unknown requests do nothing.
func (s *State) AdminKill(name, killer string) []Event {
	p, ok := s.Players[name]
	if !ok || !s.Ops[killer] {
		return nil
	}
	var events []Event
	if killer != SystemKiller {
		if k, present := s.Players[killer]; present {
			k.Score += max(p.Score, 1)
			events = append(events, ScoreUp{Player: k.Name, Score: k.Score})
		}
	}
	return append(events, s.eliminate(p, killer)...)
}

// Promote grants operator status to a live player.
func (s *State) Promote(name string) ([]Event, bool) {
	p, ok := s.Players[name]
	if !ok {
		return nil, false
	}
	s.Ops[name] = true
	p.Operator = true
	p.Color = "yellow"
	return []Event{NewPlayer{Player: *p}}, true
}

func (s *State) SetSkin(name string, skin int) ([]Event, bool) {
	p, ok := s.Players[name]
	if !ok || skin < 0 {
		return nil, false
	}
	p.Skin = skin
	return []Event{SkinChange{Player: name, Skin: skin}}, true
}

// PushMessage appends to the bounded chat history and returns the
// broadcast event.
func (s *State) PushMessage(text string) []Event {
	s.Messages = append(s.Messages, text)
	if len(s.Messages) > maxMessages {
		s.Messages = s.Messages[len(s.Messages)-maxMessages:]
	}
	return []Event{Chat{Text: text}}
}

// TeamScores aggregates per-player scores. Hot paths keep counters
// instead; this exists for overtime checks and winner declaration.
func (s *State) TeamScores() (red, blue int) {
	for _, p := range s.Players {
		if p.Team == TeamRed {
			red += p.Score
		} else {
			blue += p.Score
		}
	}
	return red, blue
}

// TopScorer names the highest-scoring individual, empty when nobody
// has scored.
func (s *State) TopScorer() string {
	name, best := "", 0
	for _, p := range s.Players {
		if p.Score > best {
			best = p.Score
			name = p.Name
		}
	}
	return name
}

// TeamWinner declares the round's team winner by aggregate score,
// falling back to team population on a tie.
func (s *State) TeamWinner() Team {
	red, blue := s.TeamScores()
	if red == blue {
		if s.RedCount > s.BlueCount {
			return TeamRed
		}
		return TeamBlue
	}
	if red > blue {
		return TeamRed
	}
	return TeamBlue
}

// Clone deep-copies the state for race-free inspection outside the
// owning loop.
func (s *State) Clone() State {
	out := *s
	out.Players = make(map[string]*Player, len(s.Players))
	for name, p := range s.Players {
		cp := *p
		out.Players[name] = &cp
	}
	out.Flags = make(map[Team]*Flag, len(s.Flags))
	for team, f := range s.Flags {
		cf := *f
		out.Flags[team] = &cf
	}
	out.Messages = slices.Clone(s.Messages)
	out.Ops = stdmaps.Clone(s.Ops)
	return out
}

func canMove(x, y float64) bool {
	return x >= 0 && x <= FieldWidth-PlayerWidth &&
		y >= 0 && y <= FieldHeight-PlayerHeight
}

func within(ax, ay, bx, by, r float64) bool {
	return math.Abs(ax-bx) < r && math.Abs(ay-by) < r
}

func boxesOverlap(x1, y1, w1, h1, x2, y2, w2, h2 float64) bool {
	return x1 < x2+w2 && x1+w1 > x2 && y1 < y2+h2 && y1+h1 > y2
}
