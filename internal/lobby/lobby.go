// Package lobby runs one authoritative game session per lobby: a single
// goroutine owning the state, fed by client commands and a once-a-second
// tick. Commands and ticks are never applied concurrently, so no command
// ever observes a half-updated session.
package lobby

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/OrtheSnowJames/capture-flag-io/internal/clock"
	"github.com/OrtheSnowJames/capture-flag-io/internal/engine"
	"github.com/OrtheSnowJames/capture-flag-io/internal/maps"
	"github.com/OrtheSnowJames/capture-flag-io/internal/names"
	"github.com/OrtheSnowJames/capture-flag-io/internal/types"
)

// Phase is the round lifecycle state.
type Phase string

const (
	PhaseRunning       Phase = "running"
	PhaseOvertime      Phase = "overtime"
	PhaseIntermission  Phase = "intermission"
	PhaseMapTransition Phase = "mapTransition"
)

type Msg interface{ isLobbyMsg() }

// Subscribe registers a connection's outbox for broadcast frames.
type Subscribe struct {
	ConnID string
	Outbox chan []byte
}

// Unsubscribe drops a connection and eliminates its player, if any.
type Unsubscribe struct{ ConnID string }

// SetName joins the connection's player into the game.
type SetName struct {
	ConnID string
	Name   string
}

type Move struct {
	Name string
	X, Y float64
	Dash bool
}

type ChatMessage struct {
	ConnID string
	Text   string
}

// AdminKill is the client-originated kill command; honored only when
// Killer names an operator.
type AdminKill struct{ Name, Killer string }

type CastVote struct{ Player, Map string }

// ChangeMap is honored only when From names an operator.
type ChangeMap struct{ MapName, From string }

// OpCommand is the typed operator channel: kick, maintenance, map,
// announce, skin, op, skip, highscore.
type OpCommand struct {
	ConnID string
	Action string
	Args   []string
}

// Promote grants operator status; used by admin tooling and tests.
type Promote struct{ Name string }

// Tick drives the session clock by one second. The internal ticker
// sends these implicitly; tests send them explicitly.
type Tick struct{}

// CheckName replies nil when the name is free in this session.
type CheckName struct {
	Name  string
	Reply chan error
}

type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Subscribe) isLobbyMsg()   {}
func (Unsubscribe) isLobbyMsg() {}
func (SetName) isLobbyMsg()     {}
func (Move) isLobbyMsg()        {}
func (ChatMessage) isLobbyMsg() {}
func (AdminKill) isLobbyMsg()   {}
func (CastVote) isLobbyMsg()    {}
func (ChangeMap) isLobbyMsg()   {}
func (OpCommand) isLobbyMsg()   {}
func (Promote) isLobbyMsg()     {}
func (Tick) isLobbyMsg()        {}
func (CheckName) isLobbyMsg()   {}
func (GetView) isLobbyMsg()     {}
func (Shutdown) isLobbyMsg()    {}

// View is a race-free snapshot for tests and admin inspection.
type View struct {
	Phase         Phase
	NumClients    int
	Players       int
	RedCount      int
	BlueCount     int
	RedScore      int
	BlueScore     int
	ClockSeconds  int
	VoteSeconds   int
	Candidates    []string
	Maintenance   bool
	PendingDelete bool
	CurrentMap    string
	HighScore     int
	State         engine.State
}

// Status is pushed to the pool whenever routing-relevant facts change.
type Status struct {
	Players       int
	Maintenance   bool
	PendingDelete bool
}

type Options struct {
	Path         string
	Private      bool
	RoundSeconds int
	VoteSeconds  int
	Capacity     int
	Operators    []string // names promoted on join
	Catalog      *maps.Catalog
	Logger       *zap.Logger
	OnStatus     func(Status)

	// TickInterval is the internal tick period; zero means one second.
	// A negative value disables the internal ticker entirely, and ticks
	// arrive only as Tick messages over the inbox.
	TickInterval time.Duration
}

type client struct {
	outbox chan []byte
	player string
}

type Lobby struct {
	inbox   chan Msg
	opts    Options
	state   *engine.State
	clients map[string]*client

	phase         Phase
	clock         *clock.Clock
	voting        *engine.Voting
	maintenance   bool
	pendingDelete bool

	ticker *time.Ticker
	tickC  <-chan time.Time

	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewLobby(parent context.Context, opts Options) *Lobby {
	if opts.RoundSeconds <= 0 {
		opts.RoundSeconds = 5 * 60
	}
	if opts.VoteSeconds <= 0 {
		opts.VoteSeconds = 10
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = time.Second
	}

	initialMap := "map1"
	if opts.Catalog != nil {
		if ns := opts.Catalog.Names(); len(ns) > 0 {
			initialMap = ns[0]
		}
	}

	ctx, cancel := context.WithCancel(parent)
	l := &Lobby{
		inbox:   make(chan Msg, 64),
		opts:    opts,
		state:   engine.NewState(initialMap),
		clients: make(map[string]*client),
		phase:   PhaseRunning,
		clock:   clock.New(opts.RoundSeconds),
		log:     opts.Logger.With(zap.String("lobby", opts.Path)),
		ctx:     ctx,
		cancel:  cancel,
	}
	go l.loop()
	return l
}

// Inbox exposes the message channel to the transport layer and tests.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Path() string { return l.opts.Path }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-l.tickC:
			l.handleTick()

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Subscribe:
				l.clients[msg.ConnID] = &client{outbox: msg.Outbox}

			case Unsubscribe:
				l.handleUnsubscribe(msg)

			case SetName:
				l.handleSetName(msg)

			case Move:
				l.handleMove(msg)

			case ChatMessage:
				l.handleChat(msg)

			case AdminKill:
				events := l.state.AdminKill(msg.Name, msg.Killer)
				if events == nil {
					l.log.Debug("kill command dropped",
						zap.String("name", msg.Name), zap.String("killer", msg.Killer))
					break
				}
				l.emit(events)
				l.afterDepartures()

			case CastVote:
				l.handleVote(msg)

			case ChangeMap:
				if !l.state.Ops[msg.From] {
					l.log.Debug("changeMap from non-operator dropped", zap.String("from", msg.From))
					break
				}
				l.changeMap(msg.MapName)

			case OpCommand:
				l.handleOpCommand(msg)

			case Promote:
				if events, ok := l.state.Promote(msg.Name); ok {
					l.log.Info("player promoted to operator", zap.String("name", msg.Name))
					l.emit(events)
				}

			case Tick:
				l.handleTick()

			case CheckName:
				if _, taken := l.state.Players[msg.Name]; taken {
					msg.Reply <- engine.ErrNameTaken
				} else {
					msg.Reply <- nil
				}

			case GetView:
				msg.Reply <- l.view()

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) handleSetName(msg SetName) {
	c, ok := l.clients[msg.ConnID]
	if !ok {
		l.log.Debug("name from unknown connection dropped", zap.String("conn", msg.ConnID))
		return
	}
	if l.maintenance {
		l.log.Info("join rejected: maintenance", zap.String("name", msg.Name))
		return
	}
	if l.state.LiveCount() >= l.opts.Capacity {
		l.log.Info("join rejected: lobby full", zap.String("name", msg.Name))
		return
	}
	if err := names.Validate(msg.Name); err != nil {
		l.log.Info("join rejected", zap.String("name", msg.Name), zap.Error(err))
		return
	}

	operator := slices.Contains(l.opts.Operators, msg.Name)
	_, events, err := l.state.Join(msg.Name, msg.ConnID, operator, time.Now())
	if err != nil {
		l.log.Info("join rejected", zap.String("name", msg.Name), zap.Error(err))
		return
	}
	c.player = msg.Name

	if l.state.LiveCount() == 1 {
		// First player into an empty session starts the round clock.
		l.clock.Reset(l.opts.RoundSeconds)
		l.startTick()
	}

	l.emit(events)
	l.sendGameState(c)
	l.notifyStatus()
	l.log.Info("player joined", zap.String("name", msg.Name), zap.Bool("operator", operator))
}

func (l *Lobby) handleUnsubscribe(msg Unsubscribe) {
	if c, ok := l.clients[msg.ConnID]; ok {
		delete(l.clients, msg.ConnID)
		close(c.outbox)
	}

	// The client entry may already be gone (slow-client drop), so the
	// player is found by connection id, not by the mapping.
	name := ""
	for _, p := range l.state.Players {
		if p.ConnID == msg.ConnID {
			name = p.Name
			break
		}
	}
	if name == "" {
		return
	}
	events := l.state.Remove(name, engine.SystemKiller)
	l.emit(events)
	l.afterDepartures()
	l.log.Info("player disconnected", zap.String("name", name))
}

func (l *Lobby) handleMove(msg Move) {
	events, err := l.state.ApplyMove(msg.Name, msg.X, msg.Y, msg.Dash, time.Now())
	if err != nil {
		l.log.Debug("move dropped", zap.String("name", msg.Name), zap.Error(err))
		return
	}
	l.emit(events)
	l.afterDepartures()
}

func (l *Lobby) handleChat(msg ChatMessage) {
	c, ok := l.clients[msg.ConnID]
	if !ok || c.player == "" {
		l.log.Debug("chat from unjoined connection dropped", zap.String("conn", msg.ConnID))
		return
	}
	line := fmt.Sprintf("%s said %s", c.player, names.Censor(msg.Text))
	l.emit(l.state.PushMessage(line))
}

func (l *Lobby) handleVote(msg CastVote) {
	if l.phase != PhaseIntermission || l.voting == nil {
		l.log.Debug("vote outside intermission dropped", zap.String("player", msg.Player))
		return
	}
	if _, live := l.state.Players[msg.Player]; !live {
		l.log.Debug("vote from unknown player dropped", zap.String("player", msg.Player))
		return
	}
	if err := l.voting.Cast(msg.Player, msg.Map); err != nil {
		l.log.Debug("vote dropped", zap.String("player", msg.Player),
			zap.String("map", msg.Map), zap.Error(err))
	}
}

func (l *Lobby) handleOpCommand(msg OpCommand) {
	c, ok := l.clients[msg.ConnID]
	if !ok || c.player == "" || !l.state.Ops[c.player] {
		l.log.Info("operator command from non-operator dropped",
			zap.String("conn", msg.ConnID), zap.String("action", msg.Action))
		return
	}

	arg := func(i int) string {
		if i < len(msg.Args) {
			return msg.Args[i]
		}
		return ""
	}

	switch msg.Action {
	case "kick":
		events := l.state.Remove(arg(0), engine.SystemKiller)
		if events == nil {
			break
		}
		l.emit(events)
		l.afterDepartures()
		l.log.Info("player kicked", zap.String("name", arg(0)), zap.String("by", c.player))

	case "maintenance":
		l.maintenance = arg(0) != "off"
		l.notifyStatus()

	case "map":
		l.changeMap(arg(0))

	case "announce":
		l.broadcastString(types.EventAnnounce, strings.Join(msg.Args, " "))

	case "skin":
		skin, err := strconv.Atoi(arg(1))
		if err != nil {
			l.log.Debug("bad skin id", zap.String("arg", arg(1)))
			break
		}
		if events, changed := l.state.SetSkin(arg(0), skin); changed {
			l.emit(events)
		}

	case "op":
		if events, promoted := l.state.Promote(arg(0)); promoted {
			l.emit(events)
		}

	case "skip":
		l.gameOver()

	case "highscore":
		l.emit(l.state.PushMessage(fmt.Sprintf("[System.Log] says Highscore: %d", l.state.HighScore)))

	default:
		l.log.Debug("unknown operator command", zap.String("action", msg.Action))
	}
}

func (l *Lobby) handleTick() {
	switch l.phase {
	case PhaseRunning:
		if l.state.LiveCount() == 0 {
			return
		}
		l.clock.Countdown(1)
		l.broadcastString(types.EventTimerUpdate, l.clock.String())
		if l.clock.Seconds() == 0 {
			red, blue := l.state.TeamScores()
			if red == blue && red > 0 {
				l.phase = PhaseOvertime
				l.broadcastString(types.EventOvertimeStarted,
					"Teams are tied! Game continues until one team scores.")
				l.broadcastString(types.EventTimerUpdate, "OVERTIME")
				l.log.Info("overtime started")
			} else {
				l.gameOver()
			}
		}

	case PhaseOvertime:
		red, blue := l.state.TeamScores()
		if red != blue {
			l.gameOver()
		} else {
			l.broadcastString(types.EventTimerUpdate, "OVERTIME")
		}

	case PhaseIntermission:
		l.voting.Countdown()
		if l.voting.Expired() {
			winner := l.voting.Winner()
			if winner == "" {
				// No candidates to choose from; keep the current map.
				winner = l.state.CurrentMap
			}
			l.changeMap(winner)
		}
	}
}

// gameOver closes the round: maintenance on, candidates drawn, winner
// announced, voting window opened.
func (l *Lobby) gameOver() {
	l.maintenance = true

	var candidates []string
	if l.opts.Catalog != nil {
		candidates = l.opts.Catalog.Candidates(3, l.state.CurrentMap)
	} else {
		l.log.Error("no map catalog; voting degrades to no choice")
	}

	l.broadcast(types.EventGameOver, types.GameOverEvent{
		Winner:     l.state.TopScorer(),
		TeamWinner: string(l.state.TeamWinner()),
		Maps:       candidates,
	})

	l.phase = PhaseIntermission
	l.voting = engine.NewVoting(candidates, l.opts.VoteSeconds)
	l.clock.Reset(l.opts.RoundSeconds)
	l.notifyStatus()
	l.log.Info("round over", zap.Strings("candidates", candidates))
}

// changeMap performs the map transition: voting cleared, maintenance
// lifted, clock back to full.
func (l *Lobby) changeMap(name string) {
	if l.opts.Catalog != nil && !l.opts.Catalog.Has(name) {
		l.log.Warn("unknown map; keeping current",
			zap.String("requested", name), zap.String("current", l.state.CurrentMap))
		return
	}
	l.phase = PhaseMapTransition
	l.voting = nil
	l.maintenance = false
	l.state.CurrentMap = name
	l.clock.Reset(l.opts.RoundSeconds)
	l.broadcast(types.EventMapChange, types.MapChangeEvent{CurrentMap: name})
	l.phase = PhaseRunning
	l.notifyStatus()
	l.log.Info("map changed", zap.String("map", name))
}

// afterDepartures runs the empty-session bookkeeping shared by every
// path that can eliminate players.
func (l *Lobby) afterDepartures() {
	if l.state.LiveCount() > 0 {
		// A departed player's mapping and vote must not linger.
		for _, c := range l.clients {
			if c.player != "" {
				if _, live := l.state.Players[c.player]; !live {
					if l.voting != nil {
						l.voting.Withdraw(c.player)
					}
					c.player = ""
				}
			}
		}
		l.notifyStatus()
		return
	}

	l.stopTick()
	l.clock.Reset(l.opts.RoundSeconds)
	l.voting = nil
	if l.opts.Private {
		l.maintenance = true
		l.pendingDelete = true
	} else {
		l.maintenance = false
		l.phase = PhaseRunning
	}
	for _, c := range l.clients {
		c.player = ""
	}
	l.notifyStatus()
}

func (l *Lobby) startTick() {
	if l.opts.TickInterval < 0 {
		return
	}
	if l.ticker == nil {
		l.ticker = time.NewTicker(l.opts.TickInterval)
		l.tickC = l.ticker.C
	}
}

func (l *Lobby) stopTick() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
		l.tickC = nil
	}
}

func (l *Lobby) emit(events []engine.Event) {
	for _, ev := range events {
		frame, err := encodeEvent(ev)
		if err != nil {
			l.log.Error("event encode failed", zap.Error(err))
			continue
		}
		l.send(frame)
	}
}

func (l *Lobby) broadcast(event string, payload any) {
	frame, err := types.Encode(event, payload)
	if err != nil {
		l.log.Error("broadcast encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	l.send(frame)
}

func (l *Lobby) broadcastString(event, s string) {
	frame, err := types.EncodeString(event, s)
	if err != nil {
		l.log.Error("broadcast encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	l.send(frame)
}

func (l *Lobby) send(frame []byte) {
	for id, c := range l.clients {
		select {
		case c.outbox <- frame:
		default:
			// Slow or stuck client: drop the connection. Its player is
			// removed when the transport notices and unsubscribes.
			close(c.outbox)
			delete(l.clients, id)
		}
	}
}

// sendGameState delivers the full snapshot to one freshly joined client.
func (l *Lobby) sendGameState(c *client) {
	frame, err := types.Encode(types.EventGameState, l.state)
	if err != nil {
		l.log.Error("game state encode failed", zap.Error(err))
		return
	}
	select {
	case c.outbox <- frame:
	default:
	}
}

func (l *Lobby) notifyStatus() {
	if l.opts.OnStatus != nil {
		l.opts.OnStatus(Status{
			Players:       l.state.LiveCount(),
			Maintenance:   l.maintenance,
			PendingDelete: l.pendingDelete,
		})
	}
}

func (l *Lobby) view() View {
	red, blue := l.state.TeamScores()
	v := View{
		Phase:         l.phase,
		NumClients:    len(l.clients),
		Players:       l.state.LiveCount(),
		RedCount:      l.state.RedCount,
		BlueCount:     l.state.BlueCount,
		RedScore:      red,
		BlueScore:     blue,
		ClockSeconds:  l.clock.Seconds(),
		Maintenance:   l.maintenance,
		PendingDelete: l.pendingDelete,
		CurrentMap:    l.state.CurrentMap,
		HighScore:     l.state.HighScore,
		State:         l.state.Clone(),
	}
	if l.voting != nil {
		v.VoteSeconds = l.voting.Clock.Seconds()
		v.Candidates = slices.Clone(l.voting.Candidates)
	}
	return v
}

func (l *Lobby) shutdown() {
	l.stopTick()
	for id, c := range l.clients {
		close(c.outbox)
		delete(l.clients, id)
	}
	l.cancel()
}
