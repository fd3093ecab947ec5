// Package game holds the in-memory world model driven by the scheduler:
// players, their behavioral states and the context that wires them to the
// event queue and heartbeat registry. Everything here runs on the scheduler
// goroutine and is unsynchronized.
package game

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/crystal-mush/gotinymud/pkg/events"
	"github.com/crystal-mush/gotinymud/pkg/heartbeat"
)

var (
	ErrNameInvalid = errors.New("names must be 2 to 16 letters")
	ErrNameTaken   = errors.New("that name is already in use")
)

// Sender is the outbound side of a player's connection.
type Sender interface {
	Send(text string)
	Disconnect()
}

// Location is the place a player stands in. The location owns its list of
// present players; players only hold a back-reference.
type Location interface {
	Name() string
	Describe(viewer *Player) string
	Players() []*Player
	Add(p *Player)
	Remove(p *Player)
	// MessagePlayers queues text for every present player not in exclude.
	MessagePlayers(text string, exclude ...*Player)
	Exit(dir string) (Location, bool)
}

// Dispatcher turns a connected player's input line into a command.
type Dispatcher interface {
	Dispatch(p *Player, line string)
}

// Controller starts and cancels the shutdown countdown.
type Controller interface {
	StartShutdown(n int)
	CancelShutdown() bool
	ShutdownRemaining() (int, bool)
}

// Game is the context shared by every component of a running server.
type Game struct {
	Queue    *events.Queue
	Beats    *heartbeat.Registry
	Players  *Registry
	Start    Location
	Commands Dispatcher
	Control  Controller
	Log      *zap.SugaredLogger

	admins map[string]bool
}

// New creates a game context around the given queue and heartbeat registry.
func New(queue *events.Queue, beats *heartbeat.Registry, log *zap.SugaredLogger) *Game {
	return &Game{
		Queue:   queue,
		Beats:   beats,
		Players: NewRegistry(),
		Log:     log,
		admins:  make(map[string]bool),
	}
}

// SetAdmins replaces the admin allow-list. Names are case-insensitive.
func (g *Game) SetAdmins(names []string) {
	g.admins = make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			g.admins[strings.ToLower(n)] = true
		}
	}
}

// IsAdmin reports whether name is on the admin allow-list.
func (g *Game) IsAdmin(name string) bool {
	return g.admins[strings.ToLower(name)]
}

// ValidName reports whether name is acceptable for a new player.
func ValidName(name string) bool {
	if len(name) < 2 || len(name) > 16 {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// CreatePlayer builds a new player with default stats and adds it to the
// registry.
func (g *Game) CreatePlayer(name string) (*Player, error) {
	if !ValidName(name) {
		return nil, ErrNameInvalid
	}
	p := NewPlayer(g, name)
	p.Admin = g.IsAdmin(name)
	if err := g.Players.Add(p); err != nil {
		return nil, err
	}
	g.Log.Infof("Created player %s (admin=%v)", p.Name, p.Admin)
	return p, nil
}

// Send queues text for a connected player.
func (g *Game) Send(p *Player, text string) {
	g.Queue.Push(events.Message(p, text))
}

// Broadcast queues text for every connected player.
func (g *Game) Broadcast(text string) {
	for _, p := range g.Players.Connected() {
		g.Send(p, text)
	}
}

// BroadcastAdmins queues text for every connected admin.
func (g *Game) BroadcastAdmins(text string) {
	for _, p := range g.Players.Connected() {
		if p.Admin {
			g.Send(p, text)
		}
	}
}
