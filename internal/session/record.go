package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/emitter"
	"github.com/ayusman/gestureboard/internal/game"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/store"
)

// Publisher publishes actions and moves to an external broker.
type Publisher interface {
	PublishAction(session string, rec action.Record) error
	PublishMove(msg emitter.MoveMessage) error
}

// Dispatcher hands actions to plugins.
type Dispatcher interface {
	Dispatch(session string, rec action.Record)
}

// recorder persists a session's games, moves and actions and forwards
// them to the configured sinks. Sink failures are logged, never returned.
type recorder struct {
	session  string
	store    *store.Store
	pub      Publisher
	hooks    Dispatcher
	onAction func(session string, rec action.Record)

	mu        sync.Mutex
	gameID    string
	finished  bool
	moveSeq   int
	actionSeq int
}

func newRecorder(session string, opts *Options) *recorder {
	return &recorder{
		session:  session,
		store:    opts.Store,
		pub:      opts.Publisher,
		hooks:    opts.Hooks,
		onAction: opts.OnAction,
	}
}

func (r *recorder) currentGame() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gameID
}

func (r *recorder) moves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moveSeq
}

// open starts a new game record.
func (r *recorder) open() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gameID = uuid.NewString()
	r.finished = false
	r.moveSeq = 0

	if r.store == nil {
		return
	}
	if err := r.store.Games().Create(&store.Game{ID: r.gameID, SessionID: r.session}); err != nil {
		log.Warn("failed to record game", "session", r.session, "game", r.gameID, "error", err)
	}
}

func (r *recorder) reset() {
	r.abandon()
	r.open()
}

func (r *recorder) close() {
	r.abandon()
}

func (r *recorder) abandon() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished || r.store == nil {
		return
	}
	r.finished = true
	if err := r.store.Games().Finish(r.gameID, store.GameAbandoned, ""); err != nil {
		log.Warn("failed to finish game", "session", r.session, "game", r.gameID, "error", err)
	}
}

func (r *recorder) action(a action.Action, conf float64) {
	rec := action.ToRecord(a, conf)

	r.mu.Lock()
	r.actionSeq++
	seq := r.actionSeq
	r.mu.Unlock()

	if r.store != nil {
		err := r.store.Actions().Create(&store.GestureAction{
			SessionID:  r.session,
			Seq:        seq,
			Type:       string(rec.Type),
			Position:   rec.Position,
			From:       rec.From,
			To:         rec.To,
			Confidence: rec.Confidence,
		})
		if err != nil {
			log.Warn("failed to record action", "session", r.session, "type", rec.Type, "error", err)
		}
	}
	if r.pub != nil {
		if err := r.pub.PublishAction(r.session, rec); err != nil {
			log.Warn("failed to publish action", "session", r.session, "type", rec.Type, "error", err)
		}
	}
	if r.hooks != nil {
		r.hooks.Dispatch(r.session, rec)
	}
	if r.onAction != nil {
		r.onAction(r.session, rec)
	}
}

func (r *recorder) move(res game.MoveResult) {
	r.mu.Lock()
	r.moveSeq++
	seq := r.moveSeq
	gameID := r.gameID
	if res.GameOver {
		r.finished = true
	}
	r.mu.Unlock()

	var winner string
	if res.GameOver {
		winner = res.Winner.String()
	}

	if r.store != nil {
		err := r.store.Games().AddMove(&store.MoveRecord{
			GameID:   gameID,
			Seq:      seq,
			Player:   res.Move.Player.String(),
			From:     res.Move.From,
			To:       res.Move.To,
			Captured: res.Move.Captured,
			Promoted: res.Move.Promoted,
		})
		if err != nil {
			log.Warn("failed to record move", "session", r.session, "game", gameID, "error", err)
		}
		if res.GameOver {
			if err := r.store.Games().Finish(gameID, store.GameFinished, winner); err != nil {
				log.Warn("failed to finish game", "session", r.session, "game", gameID, "error", err)
			}
		}
	}

	if r.pub != nil {
		msg := emitter.MoveMessage{
			Session:   r.session,
			GameID:    gameID,
			Seq:       seq,
			Timestamp: time.Now().UTC(),
			Move:      res.Move,
			GameOver:  res.GameOver,
		}
		if res.GameOver {
			msg.Winner = res.Winner
		}
		if err := r.pub.PublishMove(msg); err != nil {
			log.Warn("failed to publish move", "session", r.session, "game", gameID, "error", err)
		}
	}

	if res.GameOver {
		log.Info("game over", "session", r.session, "game", gameID, "winner", winner, "moves", seq)
	}
}
