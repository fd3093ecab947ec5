package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/crystal-mush/gotinymud/pkg/events"
	"github.com/crystal-mush/gotinymud/pkg/game"
)

// DefaultShutdownBeats is the countdown used by "shutdown" with no argument.
const DefaultShutdownBeats = 5

var directions = []string{"north", "south", "east", "west", "up", "down"}

// RegisterBuiltins installs the standard command set.
func (r *Registry) RegisterBuiltins() {
	r.Register(&Command{Name: "look", Priority: 5, Do: r.cmdLook})
	r.Register(&Command{Name: "say", Priority: 5, Guards: []Guard{RequireAlive}, Do: r.cmdSay})
	r.Register(&Command{Name: "who", Do: r.cmdWho})
	r.Register(&Command{Name: "score", Do: r.cmdScore})
	r.Register(&Command{Name: "go", Guards: []Guard{RequireAlive, NotFighting, CostsMoves(1)}, Do: r.cmdGo})
	for _, dir := range directions {
		r.Register(&Command{
			Name:     dir,
			Priority: 10,
			Guards:   []Guard{RequireAlive, NotFighting, CostsMoves(1)},
			Do: func(p *game.Player, _ string) error {
				return r.cmdGo(p, dir)
			},
		})
	}
	r.Register(&Command{Name: "kill", Guards: []Guard{RequireAlive}, Do: r.cmdKill})
	r.Register(&Command{Name: "rest", Guards: []Guard{RequireAlive, NotFighting}, Do: r.cmdRest})
	r.Register(&Command{Name: "revive", Guards: []Guard{RequireAdmin}, Do: r.cmdRevive})
	r.Register(&Command{Name: "shutdown", Guards: []Guard{RequireAdmin}, Do: r.cmdShutdown})
	r.Register(&Command{Name: "quit", Do: r.cmdQuit})
}

func (r *Registry) cmdLook(p *game.Player, _ string) error {
	loc := p.Location()
	if loc == nil {
		p.Message("You are nowhere.")
		return nil
	}
	p.Message(loc.Describe(p))
	return nil
}

func (r *Registry) cmdSay(p *game.Player, args string) error {
	if args == "" {
		return Deny("Say what?")
	}
	p.Message(fmt.Sprintf("You say, \"%s\"", args))
	if loc := p.Location(); loc != nil {
		loc.MessagePlayers(fmt.Sprintf("%s says, \"%s\"", p.Name, args), p)
	}
	return nil
}

func (r *Registry) cmdWho(p *game.Player, _ string) error {
	players := r.Game.Players.Connected()
	var sb strings.Builder
	sb.WriteString("Players online:")
	for _, q := range players {
		sb.WriteString("\n  ")
		sb.WriteString(q.Name)
		if q.Admin {
			sb.WriteString(" (admin)")
		}
	}
	if len(players) == 1 {
		sb.WriteString("\n1 player connected.")
	} else {
		fmt.Fprintf(&sb, "\n%d players connected.", len(players))
	}
	p.Message(sb.String())
	return nil
}

func (r *Registry) cmdScore(p *game.Player, _ string) error {
	p.Message(p.Score())
	return nil
}

func (r *Registry) cmdGo(p *game.Player, dir string) error {
	if dir == "" {
		return Deny("Go where?")
	}
	from := p.Location()
	if from == nil {
		return Deny("You can't go that way.")
	}
	dest, ok := from.Exit(dir)
	if !ok {
		return Deny("You can't go that way.")
	}
	p.RemoveState("resting")
	from.MessagePlayers(fmt.Sprintf("%s leaves.", p.Name), p)
	dest.MessagePlayers(fmt.Sprintf("%s arrives.", p.Name))
	p.MoveTo(dest)
	p.Message(dest.Describe(p))
	return nil
}

// findHere matches a player in p's location by name prefix.
func findHere(p *game.Player, name string) *game.Player {
	loc := p.Location()
	if loc == nil {
		return nil
	}
	name = strings.ToLower(name)
	var prefix *game.Player
	for _, q := range loc.Players() {
		lower := strings.ToLower(q.Name)
		if lower == name {
			return q
		}
		if prefix == nil && strings.HasPrefix(lower, name) {
			prefix = q
		}
	}
	return prefix
}

func (r *Registry) cmdKill(p *game.Player, args string) error {
	if args == "" {
		return Deny("Kill whom?")
	}
	target := findHere(p, args)
	if target == nil {
		return Deny("They aren't here.")
	}
	switch err := p.Attack(target); {
	case err == nil:
		return nil
	case errors.Is(err, game.ErrSelfAttack):
		return Deny("You can't fight yourself.")
	case errors.Is(err, game.ErrTargetIsDead):
		return Deny(fmt.Sprintf("%s is already dead.", target.Name))
	case errors.Is(err, game.ErrNotHere):
		return Deny("They aren't here.")
	case errors.Is(err, game.ErrTargetBusy):
		return Deny(fmt.Sprintf("%s is already fighting someone else.", target.Name))
	default:
		return Deny("You are already fighting!")
	}
}

func (r *Registry) cmdRest(p *game.Player, _ string) error {
	if err := p.AddState(&game.Resting{Turns: game.DefaultRestTurns}); err != nil {
		return Deny("You are already resting.")
	}
	return nil
}

func (r *Registry) cmdRevive(p *game.Player, args string) error {
	target := p
	if args != "" {
		t, ok := r.Game.Players.Get(args)
		if !ok {
			return Deny(fmt.Sprintf("No player named %s.", args))
		}
		target = t
	}
	if err := target.Revive(); err != nil {
		if target == p {
			return Deny("You are not dead.")
		}
		return Deny(fmt.Sprintf("%s is not dead.", target.Name))
	}
	if target != p {
		p.Message(fmt.Sprintf("You revive %s.", target.Name))
	}
	r.Log.Infof("%s revived %s", p.Name, target.Name)
	return nil
}

func (r *Registry) cmdShutdown(p *game.Player, args string) error {
	ctl := r.Game.Control
	if ctl == nil {
		return Deny("Shutdown is not available.")
	}
	if strings.EqualFold(args, "cancel") {
		if !ctl.CancelShutdown() {
			return Deny("No shutdown is pending.")
		}
		r.Game.Broadcast(fmt.Sprintf("%s has cancelled the shutdown.", p.Name))
		return nil
	}

	n := DefaultShutdownBeats
	if args != "" {
		v, err := strconv.Atoi(args)
		if err != nil || v < 1 {
			return Deny("Usage: shutdown [heartbeats|cancel]")
		}
		n = v
	}
	ctl.StartShutdown(n)
	r.Game.Broadcast(fmt.Sprintf("%s has started a shutdown: %d heartbeats.", p.Name, n))
	r.Log.Infof("%s started shutdown countdown of %d", p.Name, n)
	return nil
}

func (r *Registry) cmdQuit(p *game.Player, _ string) error {
	p.Message("Goodbye.")
	r.Game.Queue.Push(events.Disconnect(p))
	return nil
}
