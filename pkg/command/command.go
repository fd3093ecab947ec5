// Package command resolves a connected player's input line to a command and
// runs it behind an ordered chain of guards.
package command

import (
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/crystal-mush/gotinymud/pkg/game"
)

// ErrStop aborts a command quietly. The command has already told the player
// why.
var ErrStop = errors.New("command stopped")

// Denial rejects a command. Reason is shown to the player.
type Denial struct {
	Reason string
}

func (d *Denial) Error() string { return d.Reason }

// Deny builds a Denial.
func Deny(reason string) error {
	return &Denial{Reason: reason}
}

// Handler performs a command's effect.
type Handler func(p *game.Player, args string) error

// Guard checks whether p may run c. A non-nil error rejects the command
// before any guard after it or the effect itself runs.
type Guard interface {
	Allow(p *game.Player, c *Command) error
}

// Charger is implemented by guards that take a cost once the command's
// effect has succeeded.
type Charger interface {
	Charge(p *game.Player)
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(p *game.Player, c *Command) error

func (f GuardFunc) Allow(p *game.Player, c *Command) error { return f(p, c) }

// Command is a registered command.
type Command struct {
	Name     string
	Priority int // breaks ties between prefix matches; higher wins
	Guards   []Guard
	Do       Handler
}

// Registry holds the command table of one game.
type Registry struct {
	Game *game.Game
	Log  *zap.SugaredLogger

	// Fallback handles lines that match no command.
	Fallback func(p *game.Player, line string)
	// Observe is called with the name of every command whose guards pass.
	Observe func(name string)

	cmds map[string]*Command
}

// New creates an empty registry for g.
func New(g *game.Game) *Registry {
	return &Registry{
		Game: g,
		Log:  g.Log,
		Fallback: func(p *game.Player, _ string) {
			p.Message("Unknown command.")
		},
		cmds: make(map[string]*Command),
	}
}

// Register adds c, replacing any command with the same name.
func (r *Registry) Register(c *Command) {
	r.cmds[strings.ToLower(c.Name)] = c
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.cmds))
	for n := range r.cmds {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup resolves a typed word to a command. An exact match wins; otherwise
// the prefix match with the highest Priority, then the shortest name, then
// the first alphabetically.
func (r *Registry) Lookup(word string) (*Command, bool) {
	word = strings.ToLower(word)
	if word == "" {
		return nil, false
	}
	if c, ok := r.cmds[word]; ok {
		return c, true
	}
	var best *Command
	var bestName string
	for name, c := range r.cmds {
		if !strings.HasPrefix(name, word) {
			continue
		}
		if best == nil || better(c, name, best, bestName) {
			best, bestName = c, name
		}
	}
	return best, best != nil
}

func better(c *Command, name string, best *Command, bestName string) bool {
	if c.Priority != best.Priority {
		return c.Priority > best.Priority
	}
	if len(name) != len(bestName) {
		return len(name) < len(bestName)
	}
	return name < bestName
}

// Dispatch implements game.Dispatcher.
func (r *Registry) Dispatch(p *game.Player, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	// ' and " are shorthand for say.
	if line[0] == '"' || line[0] == '\'' {
		line = "say " + line[1:]
	}

	word, args := line, ""
	if i := strings.IndexByte(line, ' '); i >= 0 {
		word = line[:i]
		args = strings.TrimSpace(line[i+1:])
	}

	c, ok := r.Lookup(word)
	if !ok {
		r.Fallback(p, line)
		return
	}
	r.Run(p, c, args)
}

// Run executes c for p: every guard in order, then the effect, then any
// guard charges. A rejection leaves the player unchanged.
func (r *Registry) Run(p *game.Player, c *Command, args string) {
	for _, g := range c.Guards {
		if err := g.Allow(p, c); err != nil {
			r.reject(p, c, err)
			return
		}
	}
	if r.Observe != nil {
		r.Observe(c.Name)
	}
	if err := c.Do(p, args); err != nil {
		r.reject(p, c, err)
		return
	}
	for _, g := range c.Guards {
		if ch, ok := g.(Charger); ok {
			ch.Charge(p)
		}
	}
}

func (r *Registry) reject(p *game.Player, c *Command, err error) {
	var d *Denial
	switch {
	case errors.As(err, &d):
		p.Message(d.Reason)
	case errors.Is(err, ErrStop):
	default:
		r.Log.Errorf("command %s by %s failed: %v", c.Name, p.Name, err)
		p.Message("Something went wrong.")
	}
}
