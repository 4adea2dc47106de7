package engine

// Event is the discriminated union of state-change notifications a
// session broadcasts. One struct per wire event, fixed schema each.
type Event interface{ isEvent() }

type NewPlayer struct{ Player Player }

type Moved struct {
	Name string
	X, Y float64
}

type Kill struct{ Player, Killer string }

type FlagCaptured struct {
	Player string
	Flag   Team
}

type FlagDropped struct {
	Player string
	Flag   Team
}

type FlagMoved struct {
	Player string
	Flag   Team
	X, Y   float64
}

// FlagReturned covers both own-team returns and scoring returns;
// ScoredBy is set only on the latter.
type FlagReturned struct {
	Player   string
	Flag     Team
	ScoredBy string
}

type ScoreUp struct {
	Player string
	Score  int
}

type SkinChange struct {
	Player string
	Skin   int
}

type Chat struct{ Text string }

func (NewPlayer) isEvent()    {}
func (Moved) isEvent()        {}
func (Kill) isEvent()         {}
func (FlagCaptured) isEvent() {}
func (FlagDropped) isEvent()  {}
func (FlagMoved) isEvent()    {}
func (FlagReturned) isEvent() {}
func (ScoreUp) isEvent()      {}
func (SkinChange) isEvent()   {}
func (Chat) isEvent()         {}
