package lobby

import (
	"fmt"

	"github.com/OrtheSnowJames/capture-flag-io/internal/engine"
	"github.com/OrtheSnowJames/capture-flag-io/internal/types"
)

// encodeEvent maps an engine event onto its wire frame.
func encodeEvent(ev engine.Event) ([]byte, error) {
	switch e := ev.(type) {
	case engine.NewPlayer:
		return types.Encode(types.EventNewPlayer, e.Player)
	case engine.Moved:
		return types.Encode(types.EventMove, types.MoveEvent{Name: e.Name, X: e.X, Y: e.Y})
	case engine.Kill:
		return types.Encode(types.EventKill, types.KillEvent{Player: e.Player, Killer: e.Killer})
	case engine.FlagCaptured:
		return types.Encode(types.EventFlagCaptured, types.FlagEvent{Player: e.Player, Flag: string(e.Flag)})
	case engine.FlagDropped:
		return types.Encode(types.EventFlagDropped, types.FlagEvent{Player: e.Player, Flag: string(e.Flag)})
	case engine.FlagMoved:
		return types.Encode(types.EventFlagMoved, types.FlagMovedEvent{
			Player: e.Player, Flag: string(e.Flag), X: e.X, Y: e.Y,
		})
	case engine.FlagReturned:
		return types.Encode(types.EventFlagReturned, types.FlagReturnedEvent{
			Player: e.Player, Flag: string(e.Flag), ScoredBy: e.ScoredBy,
		})
	case engine.ScoreUp:
		return types.Encode(types.EventScoreUp, types.ScoreUpEvent{Player: e.Player, Score: e.Score})
	case engine.SkinChange:
		return types.Encode(types.EventSkinChange, types.SkinChangeEvent{Player: e.Player, Skin: e.Skin})
	case engine.Chat:
		return types.EncodeString(types.EventMessage, e.Text)
	default:
		return nil, fmt.Errorf("unmapped engine event %T", ev)
	}
}
