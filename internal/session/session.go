// Package session runs one game per session: a gesture pipeline, a
// checkers engine, an optional camera frame source and the websocket
// clients watching it.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/capture"
	"github.com/ayusman/gestureboard/internal/detector"
	"github.com/ayusman/gestureboard/internal/game"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/pipeline"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrNoCamera is returned by StartCamera when no camera is configured.
	ErrNoCamera = errors.New("no camera configured")
)

// Engine is the game engine a session adjudicates actions against.
type Engine interface {
	ValidMoves(c board.Cell) []board.Cell
	MakeMove(from, to board.Cell) (game.MoveResult, error)
	IsOwnPiece(c board.Cell) bool
	Snapshot() game.Snapshot
	Reset()
}

// Info summarises a session for listings.
type Info struct {
	ID            string               `json:"id"`
	Clients       int                  `json:"clients"`
	CameraActive  bool                 `json:"camera_active"`
	Camera        *capture.SourceStats `json:"camera,omitempty"`
	GameID        string               `json:"game_id,omitempty"`
	CurrentPlayer game.Player          `json:"current_player"`
	Moves         int                  `json:"moves"`
	CreatedAt     time.Time            `json:"created_at"`
	LastActive    time.Time            `json:"last_active"`
}

// Session is one game with its gesture pipeline and clients.
type Session struct {
	id      string
	created time.Time
	opts    *Options
	enabled func() bool

	pipe   *pipeline.Pipeline
	engine Engine
	rec    *recorder

	mu         sync.RWMutex
	clients    map[string]Client
	lastActive time.Time

	// gameMu serializes adjudication, pointer moves and resets.
	gameMu sync.Mutex

	cam camera
}

func newSession(id string, opts *Options, det detector.Detector, enabled func() bool) (*Session, error) {
	pipe, err := pipeline.New(det, opts.Pipeline)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	s := &Session{
		id:         id,
		created:    now,
		opts:       opts,
		enabled:    enabled,
		pipe:       pipe,
		engine:     game.NewEngine(),
		clients:    make(map[string]Client),
		lastActive: now,
	}
	s.rec = newRecorder(id, opts)
	s.rec.open()
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Pipeline returns the session's gesture pipeline.
func (s *Session) Pipeline() *pipeline.Pipeline {
	return s.pipe
}

// Engine returns the session's game engine.
func (s *Session) Engine() Engine {
	return s.engine
}

// GameID returns the id of the game in progress.
func (s *Session) GameID() string {
	return s.rec.currentGame()
}

// Info returns a summary of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	clients := len(s.clients)
	last := s.lastActive
	s.mu.RUnlock()

	info := Info{
		ID:            s.id,
		Clients:       clients,
		CameraActive:  s.CameraActive(),
		GameID:        s.rec.currentGame(),
		CurrentPlayer: s.engine.Snapshot().CurrentPlayer,
		Moves:         s.rec.moves(),
		CreatedAt:     s.created,
		LastActive:    last,
	}
	if stats, ok := s.cam.stats(); ok {
		info.Camera = &stats
	}
	return info
}

// AddClient registers c and sends it the session id and game state.
func (s *Session) AddClient(c Client) {
	s.mu.Lock()
	s.clients[c.ID()] = c
	s.lastActive = time.Now()
	n := len(s.clients)
	s.mu.Unlock()

	log.Info("client connected", "session", s.id, "client", c.ID(), "clients", n)

	s.send(c, Message{Type: TypeSession, Data: Hello{ID: s.id}})
	s.send(c, Message{Type: TypeGameState, Data: NewGameState(s.engine.Snapshot())})
}

// RemoveClient unregisters the client with id.
func (s *Session) RemoveClient(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	s.lastActive = time.Now()
	n := len(s.clients)
	s.mu.Unlock()

	log.Info("client disconnected", "session", s.id, "client", id, "clients", n)
}

// ClientCount returns the number of connected clients.
func (s *Session) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Broadcast sends msg to every client.
func (s *Session) Broadcast(msg Message) {
	s.mu.RLock()
	clients := make([]Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		s.send(c, msg)
	}
}

func (s *Session) send(c Client, msg Message) {
	if err := c.Send(msg); err != nil {
		log.Debug("send failed", "session", s.id, "client", c.ID(), "type", msg.Type, "error", err)
	}
}

// HandleMessage processes one client message and replies or broadcasts.
func (s *Session) HandleMessage(c Client, data []byte) {
	s.touch()

	req, err := ParseRequest(data)
	if err != nil {
		s.send(c, Message{Type: TypeError, Data: ErrorPayload{Message: err.Error()}})
		return
	}
	log.Debug("client message", "session", s.id, "type", req.Type)

	switch req.Type {
	case TypeStartCamera:
		s.send(c, Message{Type: TypeCameraStatus, Data: s.startCamera(req)})

	case TypeStopCamera:
		if err := s.StopCamera(); err != nil {
			log.Warn("stop camera failed", "session", s.id, "error", err)
		}
		s.send(c, Message{Type: TypeCameraStatus, Data: CameraStatus{Active: false}})

	case TypeMove:
		if req.From == nil || req.To == nil {
			s.send(c, Message{Type: TypeMoveError, Data: MoveError{Error: "move needs from and to"}})
			return
		}
		if err := s.Move(*req.From, *req.To); err != nil {
			s.send(c, Message{Type: TypeMoveError, Data: MoveError{
				From:  req.From,
				To:    req.To,
				Error: err.Error(),
			}})
		}

	case TypeReset:
		s.Reset()

	case TypeGetValidMoves:
		s.send(c, Message{Type: TypeValidMoves, Data: s.validMoves(req.Position)})

	default:
		s.send(c, Message{Type: TypeError, Data: ErrorPayload{Message: "unknown message type " + req.Type}})
	}
}

func (s *Session) startCamera(req Request) CameraStatus {
	if d := req.BoardDimensions; d != nil {
		s.pipe.SetViewport(d.Width, d.Height)
	}
	if req.BoardRect != nil {
		s.pipe.SetBounds(*req.BoardRect)
	}
	if err := s.StartCamera(); err != nil {
		log.Warn("start camera failed", "session", s.id, "error", err)
		return CameraStatus{Active: false, Error: err.Error()}
	}
	return CameraStatus{Active: true}
}

// Move executes a pointer move. A valid move clears the gesture selection
// and is broadcast; an invalid one is returned as an error.
func (s *Session) Move(from, to board.Cell) error {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()

	res, err := s.engine.MakeMove(from, to)
	if err != nil {
		return err
	}
	s.pipe.Sync(nil)
	s.moved(res)
	return nil
}

// Reset starts a new game and broadcasts it. The previous game is recorded
// as abandoned unless it already finished.
func (s *Session) Reset() {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()

	s.engine.Reset()
	s.pipe.Sync(nil)
	s.rec.reset()

	log.Info("game reset", "session", s.id, "game", s.rec.currentGame())
	s.Broadcast(Message{Type: TypeGameReset, Data: NewGameState(s.engine.Snapshot())})
}

func (s *Session) validMoves(pos *board.Cell) ValidMoves {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()

	if pos == nil {
		s.pipe.Sync(nil)
		return ValidMoves{Moves: []board.Cell{}}
	}
	moves := s.engine.ValidMoves(*pos)
	if len(moves) > 0 {
		c := *pos
		s.pipe.Sync(&c)
	} else {
		s.pipe.Sync(nil)
		moves = []board.Cell{}
	}
	return ValidMoves{Position: *pos, Moves: moves}
}

// Observe steps the pipeline with an observation from outside the camera
// loop and handles the result.
func (s *Session) Observe(obs *detector.Observation, now time.Time) pipeline.Result {
	res := s.pipe.Step(obs, now)
	s.handleResult(res)
	return res
}

func (s *Session) handleResult(res pipeline.Result) {
	if res.Action != nil {
		s.adjudicate(res.Action, res.Confidence)
	}
	if res.Detected {
		gesture := GestureGrabbing
		if res.Open {
			gesture = GestureOpen
		}
		s.Broadcast(Message{Type: TypeHandPosition, Data: HandPosition{
			Position:   res.Position,
			Gesture:    gesture,
			Confidence: res.Confidence,
			IsOpen:     res.Open,
			Cell:       res.Cell,
		}})
	}
}

// adjudicate resolves a gesture action against the engine and resyncs the
// pipeline's selection with the outcome.
func (s *Session) adjudicate(a action.Action, conf float64) {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()

	s.rec.action(a, conf)

	switch v := a.(type) {
	case action.Select:
		s.selectCell(v.Cell)

	case action.Move:
		res, err := s.engine.MakeMove(v.From, v.To)
		if err == nil {
			s.pipe.Sync(nil)
			s.moved(res)
			return
		}
		log.Info("gesture move rejected", "session", s.id, "from", v.From, "to", v.To, "error", err)
		if s.opts.ReselectOnReject && s.engine.IsOwnPiece(v.To) {
			s.selectCell(v.To)
			return
		}
		s.clearSelection()

	case action.Cancel:
		s.clearSelection()

	case action.Hover:
		s.Broadcast(Message{Type: TypeHoverPosition, Data: HoverPosition{Position: v.Cell}})
	}
}

func (s *Session) selectCell(c board.Cell) {
	if !s.engine.IsOwnPiece(c) {
		s.clearSelection()
		return
	}
	s.pipe.Sync(&c)
	moves := s.engine.ValidMoves(c)
	if moves == nil {
		moves = []board.Cell{}
	}
	log.Info("piece selected", "session", s.id, "cell", c, "moves", len(moves))
	s.Broadcast(Message{Type: TypePieceSelected, Data: Selection{Position: c, ValidMoves: moves}})
}

func (s *Session) clearSelection() {
	s.pipe.Sync(nil)
	s.Broadcast(Message{Type: TypeSelectionCleared, Data: Empty{}})
}

func (s *Session) moved(res game.MoveResult) {
	s.rec.move(res)
	s.Broadcast(Message{Type: TypeMoveResult, Data: MoveResult{
		Valid:     true,
		Move:      res.Move,
		GameState: NewGameState(s.engine.Snapshot()),
	}})
}

// Close stops the camera, records an unfinished game as abandoned and
// releases the detector.
func (s *Session) Close() error {
	if err := s.StopCamera(); err != nil {
		log.Warn("stop camera failed", "session", s.id, "error", err)
	}
	s.rec.close()
	return s.pipe.Close()
}
