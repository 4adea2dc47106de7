package lobby

import (
	"context"
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrtheSnowJames/capture-flag-io/internal/engine"
	"github.com/OrtheSnowJames/capture-flag-io/internal/maps"
	"github.com/OrtheSnowJames/capture-flag-io/internal/types"
)

const recvTimeout = 2 * time.Second

func testCatalog(t *testing.T) *maps.Catalog {
	t.Helper()
	c, err := maps.Load("testdata/maps.jsonc")
	require.NoError(t, err)
	return c
}

func newTestLobby(t *testing.T, opts Options) *Lobby {
	t.Helper()
	if opts.Path == "" {
		opts.Path = "/lobby1"
	}
	if opts.Catalog == nil {
		opts.Catalog = testCatalog(t)
	}
	lb := NewLobby(context.Background(), opts)
	t.Cleanup(func() { lb.Inbox() <- Shutdown{} })
	return lb
}

// join subscribes a connection and names its player in one go.
func join(lb *Lobby, connID, name string) chan []byte {
	out := make(chan []byte, 64)
	lb.Inbox() <- Subscribe{ConnID: connID, Outbox: out}
	lb.Inbox() <- SetName{ConnID: connID, Name: name}
	return out
}

func viewOf(t *testing.T, lb *Lobby) View {
	t.Helper()
	reply := make(chan View, 1)
	lb.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(recvTimeout):
		t.Fatal("timed out waiting for lobby view")
		return View{}
	}
}

// waitFor reads frames until one matches the wanted event, returning
// its payload. Unrelated frames in between are skipped.
func waitFor(t *testing.T, out chan []byte, event string) json.RawMessage {
	t.Helper()
	deadline := time.After(recvTimeout)
	for {
		select {
		case frame, ok := <-out:
			if !ok {
				t.Fatalf("outbox closed while waiting for %q", event)
			}
			var m types.ServerMessage
			require.NoError(t, json.Unmarshal(frame, &m))
			if m.Event == event {
				return m.Data
			}
		case <-deadline:
			t.Fatalf("no %q frame within %v", event, recvTimeout)
		}
	}
}

func decodeInto(t *testing.T, data json.RawMessage, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, dst))
}

func TestJoinBroadcastsNewPlayerAndSendsState(t *testing.T) {
	lb := newTestLobby(t, Options{RoundSeconds: 300})
	out := join(lb, "c1", "ann")

	var p engine.Player
	decodeInto(t, waitFor(t, out, types.EventNewPlayer), &p)
	assert.Equal(t, "ann", p.Name)
	assert.Equal(t, engine.TeamBlue, p.Team)

	var snapshot engine.State
	decodeInto(t, waitFor(t, out, types.EventGameState), &snapshot)
	assert.Contains(t, snapshot.Players, "ann")
	assert.Equal(t, "map1", snapshot.CurrentMap)

	v := viewOf(t, lb)
	assert.Equal(t, PhaseRunning, v.Phase)
	assert.Equal(t, 1, v.Players)
	assert.Equal(t, 300, v.ClockSeconds)
}

func TestDuplicateNameRejected(t *testing.T) {
	lb := newTestLobby(t, Options{})
	join(lb, "c1", "ann")
	join(lb, "c2", "ann")

	v := viewOf(t, lb)
	assert.Equal(t, 1, v.Players)
}

func TestCapacityLimitRejectsJoin(t *testing.T) {
	lb := newTestLobby(t, Options{Capacity: 1})
	join(lb, "c1", "ann")
	join(lb, "c2", "bob")

	v := viewOf(t, lb)
	assert.Equal(t, 1, v.Players)
	assert.NotContains(t, v.State.Players, "bob")
}

func TestMaintenanceRejectsJoin(t *testing.T) {
	lb := newTestLobby(t, Options{Operators: []string{"root"}})
	join(lb, "c1", "root")
	lb.Inbox() <- OpCommand{ConnID: "c1", Action: "maintenance", Args: []string{"on"}}
	join(lb, "c2", "bob")

	v := viewOf(t, lb)
	assert.True(t, v.Maintenance)
	assert.Equal(t, 1, v.Players)
}

func TestChatIsAttributedAndCensored(t *testing.T) {
	lb := newTestLobby(t, Options{})
	out := join(lb, "c1", "ann")
	lb.Inbox() <- ChatMessage{ConnID: "c1", Text: "hello"}

	var line string
	decodeInto(t, waitFor(t, out, types.EventMessage), &line)
	assert.Equal(t, "ann said hello", line)
}

func TestChatFromUnjoinedConnectionDropped(t *testing.T) {
	lb := newTestLobby(t, Options{})
	out := join(lb, "c1", "ann")

	spectator := make(chan []byte, 64)
	lb.Inbox() <- Subscribe{ConnID: "c2", Outbox: spectator}
	lb.Inbox() <- ChatMessage{ConnID: "c2", Text: "sneaky"}
	lb.Inbox() <- ChatMessage{ConnID: "c1", Text: "after"}

	var line string
	decodeInto(t, waitFor(t, out, types.EventMessage), &line)
	assert.Equal(t, "ann said after", line)
}

func TestTickBroadcastsTimer(t *testing.T) {
	lb := newTestLobby(t, Options{RoundSeconds: 120, TickInterval: -1})
	out := join(lb, "c1", "ann")
	lb.Inbox() <- Tick{}

	var timer string
	decodeInto(t, waitFor(t, out, types.EventTimerUpdate), &timer)
	assert.Equal(t, "01:59", timer)
}

func TestTiedRoundEntersOvertimeThenEnds(t *testing.T) {
	lb := newTestLobby(t, Options{RoundSeconds: 1, TickInterval: -1})
	out := join(lb, "c1", "ann")
	join(lb, "c2", "bob")
	viewOf(t, lb) // sync point before touching state directly

	lb.state.Players["ann"].Score = 2
	lb.state.Players["bob"].Score = 2
	lb.Inbox() <- Tick{}

	var notice string
	decodeInto(t, waitFor(t, out, types.EventOvertimeStarted), &notice)
	assert.Contains(t, notice, "tied")
	var timer string
	decodeInto(t, waitFor(t, out, types.EventTimerUpdate), &timer)
	assert.Equal(t, "OVERTIME", timer)
	assert.Equal(t, PhaseOvertime, viewOf(t, lb).Phase)

	lb.state.Players["ann"].Score = 3
	lb.Inbox() <- Tick{}

	var over types.GameOverEvent
	decodeInto(t, waitFor(t, out, types.EventGameOver), &over)
	assert.Equal(t, "ann", over.Winner)
	assert.Equal(t, "blue", over.TeamWinner)
	assert.NotEmpty(t, over.Maps)
	assert.LessOrEqual(t, len(over.Maps), 3)
	assert.NotContains(t, over.Maps, "map1")

	v := viewOf(t, lb)
	assert.Equal(t, PhaseIntermission, v.Phase)
	assert.True(t, v.Maintenance)
}

func TestVotingPicksMajorityMap(t *testing.T) {
	lb := newTestLobby(t, Options{VoteSeconds: 2, Operators: []string{"root"}, TickInterval: -1})
	out := join(lb, "c1", "root")
	lb.Inbox() <- OpCommand{ConnID: "c1", Action: "skip"}

	var over types.GameOverEvent
	decodeInto(t, waitFor(t, out, types.EventGameOver), &over)
	require.NotEmpty(t, over.Maps)
	choice := over.Maps[0]

	lb.Inbox() <- CastVote{Player: "root", Map: choice}
	lb.Inbox() <- Tick{}
	lb.Inbox() <- Tick{}

	var mc types.MapChangeEvent
	decodeInto(t, waitFor(t, out, types.EventMapChange), &mc)
	assert.Equal(t, choice, mc.CurrentMap)

	v := viewOf(t, lb)
	assert.Equal(t, PhaseRunning, v.Phase)
	assert.False(t, v.Maintenance)
	assert.Equal(t, choice, v.CurrentMap)
}

func TestExpiredVoteWithNoBallotsStillRotates(t *testing.T) {
	lb := newTestLobby(t, Options{VoteSeconds: 1, Operators: []string{"root"}, TickInterval: -1})
	out := join(lb, "c1", "root")
	lb.Inbox() <- OpCommand{ConnID: "c1", Action: "skip"}

	var over types.GameOverEvent
	decodeInto(t, waitFor(t, out, types.EventGameOver), &over)
	lb.Inbox() <- Tick{}

	var mc types.MapChangeEvent
	decodeInto(t, waitFor(t, out, types.EventMapChange), &mc)
	assert.True(t, slices.Contains(over.Maps, mc.CurrentMap))
}

func TestChangeMapRequiresOperator(t *testing.T) {
	lb := newTestLobby(t, Options{})
	out := join(lb, "c1", "ann")

	lb.Inbox() <- ChangeMap{MapName: "map2", From: "ann"}
	assert.Equal(t, "map1", viewOf(t, lb).CurrentMap)

	lb.Inbox() <- Promote{Name: "ann"}
	lb.Inbox() <- ChangeMap{MapName: "nowhere", From: "ann"}
	assert.Equal(t, "map1", viewOf(t, lb).CurrentMap)

	lb.Inbox() <- ChangeMap{MapName: "map2", From: "ann"}
	var mc types.MapChangeEvent
	decodeInto(t, waitFor(t, out, types.EventMapChange), &mc)
	assert.Equal(t, "map2", mc.CurrentMap)
	assert.Equal(t, "map2", viewOf(t, lb).CurrentMap)
}

func TestOperatorKickRemovesPlayer(t *testing.T) {
	lb := newTestLobby(t, Options{Operators: []string{"root"}})
	out := join(lb, "c1", "root")
	join(lb, "c2", "bob")
	lb.Inbox() <- OpCommand{ConnID: "c1", Action: "kick", Args: []string{"bob"}}

	var kill types.KillEvent
	decodeInto(t, waitFor(t, out, types.EventKill), &kill)
	assert.Equal(t, "bob", kill.Player)
	assert.Equal(t, "system", kill.Killer)
	assert.Equal(t, 1, viewOf(t, lb).Players)
}

func TestOpCommandFromNonOperatorDropped(t *testing.T) {
	lb := newTestLobby(t, Options{})
	join(lb, "c1", "ann")
	join(lb, "c2", "bob")
	lb.Inbox() <- OpCommand{ConnID: "c1", Action: "kick", Args: []string{"bob"}}

	assert.Equal(t, 2, viewOf(t, lb).Players)
}

func TestOperatorAnnounce(t *testing.T) {
	lb := newTestLobby(t, Options{Operators: []string{"root"}})
	out := join(lb, "c1", "root")
	lb.Inbox() <- OpCommand{ConnID: "c1", Action: "announce", Args: []string{"server", "restarting"}}

	var text string
	decodeInto(t, waitFor(t, out, types.EventAnnounce), &text)
	assert.Equal(t, "server restarting", text)
}

func TestEmptyPublicLobbyResets(t *testing.T) {
	lb := newTestLobby(t, Options{RoundSeconds: 300, TickInterval: -1})
	out := join(lb, "c1", "ann")
	waitFor(t, out, types.EventNewPlayer)
	lb.Inbox() <- Tick{}
	lb.Inbox() <- Unsubscribe{ConnID: "c1"}

	v := viewOf(t, lb)
	assert.Equal(t, 0, v.Players)
	assert.Equal(t, PhaseRunning, v.Phase)
	assert.Equal(t, 300, v.ClockSeconds)
	assert.False(t, v.Maintenance)
	assert.False(t, v.PendingDelete)
}

func TestEmptyPrivateLobbyFlagsPendingDelete(t *testing.T) {
	statuses := make(chan Status, 16)
	lb := newTestLobby(t, Options{
		Private:  true,
		OnStatus: func(st Status) { statuses <- st },
	})
	join(lb, "c1", "ann")
	lb.Inbox() <- Unsubscribe{ConnID: "c1"}

	deadline := time.After(recvTimeout)
	for {
		select {
		case st := <-statuses:
			if st.PendingDelete {
				assert.Equal(t, 0, st.Players)
				assert.True(t, st.Maintenance)
				return
			}
		case <-deadline:
			t.Fatal("lobby never reported pending delete")
		}
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	lb := newTestLobby(t, Options{})
	slow := make(chan []byte) // nobody ever reads this
	lb.Inbox() <- Subscribe{ConnID: "c1", Outbox: slow}
	join(lb, "c2", "ann")
	viewOf(t, lb)

	select {
	case _, ok := <-slow:
		assert.False(t, ok, "slow outbox should be closed, not written")
	case <-time.After(recvTimeout):
		t.Fatal("slow client outbox never closed")
	}
}

// Full capture-and-kill round trip: the second joiner kills the enemy
// carrier at the flag stand, steals a point, and the dropped flag is
// back home in the same breath.
func TestCaptureKillDropScenario(t *testing.T) {
	lb := newTestLobby(t, Options{RoundSeconds: 300})
	annOut := join(lb, "c1", "ann")
	waitFor(t, annOut, types.EventGameState)

	// ann spawns near the blue stand; walk to the red flag in capped steps.
	for _, p := range [][2]float64{{600, 250}, {300, 250}, {100, 250}} {
		lb.Inbox() <- Move{Name: "ann", X: p[0], Y: p[1]}
	}
	var captured types.FlagEvent
	decodeInto(t, waitFor(t, annOut, types.EventFlagCaptured), &captured)
	assert.Equal(t, "ann", captured.Player)
	assert.Equal(t, "red", captured.Flag)

	bobOut := join(lb, "c2", "bob")
	waitFor(t, bobOut, types.EventGameState)
	lb.Inbox() <- Move{Name: "bob", X: 100, Y: 251}

	var score types.ScoreUpEvent
	decodeInto(t, waitFor(t, bobOut, types.EventScoreUp), &score)
	assert.Equal(t, "bob", score.Player)
	assert.Equal(t, 1, score.Score)

	var kill types.KillEvent
	decodeInto(t, waitFor(t, bobOut, types.EventKill), &kill)
	assert.Equal(t, "ann", kill.Player)
	assert.Equal(t, "bob", kill.Killer)

	var dropped types.FlagEvent
	decodeInto(t, waitFor(t, bobOut, types.EventFlagDropped), &dropped)
	assert.Equal(t, "ann", dropped.Player)
	assert.Equal(t, "red", dropped.Flag)

	// ann fell at the red stand itself, so the dropped flag lands home.
	v := viewOf(t, lb)
	assert.Equal(t, 1, v.Players)
	assert.Equal(t, 1, v.State.Players["bob"].Score)
	assert.True(t, v.State.Flags[engine.TeamRed].AtHome())
}
