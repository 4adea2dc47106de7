package engine

import (
	"math/rand"
	"slices"

	"github.com/OrtheSnowJames/capture-flag-io/internal/clock"
)

// Voting is the intermission ballot: up to three candidate maps, one
// vote per player with re-votes replacing the previous choice, and a
// window counted down by the session tick.
type Voting struct {
	Candidates []string
	Clock      *clock.Clock

	votes map[string]string // voter name -> candidate
}

func NewVoting(candidates []string, windowSeconds int) *Voting {
	return &Voting{
		Candidates: candidates,
		Clock:      clock.New(windowSeconds),
		votes:      map[string]string{},
	}
}

// Cast records player's vote. Voting for a non-candidate map fails.
func (v *Voting) Cast(player, mapName string) error {
	if !slices.Contains(v.Candidates, mapName) {
		return ErrUnknownMap
	}
	v.votes[player] = mapName
	return nil
}

// Withdraw discards a departed player's vote.
func (v *Voting) Withdraw(player string) { delete(v.votes, player) }

func (v *Voting) Countdown() { v.Clock.Countdown(1) }

func (v *Voting) Expired() bool { return v.Clock.Seconds() == 0 }

// Tally counts votes per candidate map.
func (v *Voting) Tally() map[string]int {
	counts := make(map[string]int, len(v.Candidates))
	for _, m := range v.votes {
		counts[m]++
	}
	return counts
}

// Winner picks the most-voted candidate. Ties resolve uniformly at
// random among the tied maps; with no votes at all, among every
// candidate. No candidates means no winner.
func (v *Voting) Winner() string {
	if len(v.Candidates) == 0 {
		return ""
	}
	counts := v.Tally()
	best := 0
	for _, c := range v.Candidates {
		if counts[c] > best {
			best = counts[c]
		}
	}
	var leaders []string
	for _, c := range v.Candidates {
		if counts[c] == best {
			leaders = append(leaders, c)
		}
	}
	return leaders[rand.Intn(len(leaders))]
}
