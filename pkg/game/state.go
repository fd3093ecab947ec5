package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/crystal-mush/gotinymud/pkg/heartbeat"
)

// ErrStateActive is returned when a state with the same name is already
// attached. The old one must be removed first.
var ErrStateActive = errors.New("state already active")

// DefaultRestTurns is how many heartbeats a rest lasts.
const DefaultRestTurns = 5

// State is a named behavior attached to a player.
type State interface {
	Name() string
	// Duration is the number of heartbeats after which the state removes
	// itself. Zero means indefinite.
	Duration() int
}

// Ticker is implemented by states that act on every heartbeat.
type Ticker interface {
	Tick(p *Player)
}

// Enterer is implemented by states with an activation side effect.
type Enterer interface {
	Enter(p *Player)
}

// Leaver is implemented by states with a deactivation side effect.
type Leaver interface {
	Leave(p *Player)
}

// activeState is a State attached to one player. It owns the heartbeat
// handle and the tick counter used for the generic TTL.
type activeState struct {
	state  State
	owner  *Player
	beats  int
	handle heartbeat.Handle
}

func (a *activeState) Heartbeat() {
	a.beats++
	if d := a.state.Duration(); d > 0 && a.beats > d {
		a.owner.RemoveState(a.state.Name())
		return
	}
	if t, ok := a.state.(Ticker); ok {
		t.Tick(a.owner)
	}
}

func (a *activeState) String() string {
	return fmt.Sprintf("%s/%s", a.owner.Name, a.state.Name())
}

func (a *activeState) needsBeat() bool {
	_, ticks := a.state.(Ticker)
	return ticks || a.state.Duration() > 0
}

// pauseStates stops the heartbeats of attached states, in name order.
func (p *Player) pauseStates() {
	for _, name := range p.StateNames() {
		a := p.states[name]
		if a.handle.Valid() {
			p.game.Beats.Unregister(a.handle)
			a.handle = heartbeat.Handle{}
		}
	}
}

// resumeStates restarts the heartbeats stopped by pauseStates.
func (p *Player) resumeStates() {
	for _, name := range p.StateNames() {
		a := p.states[name]
		if !a.handle.Valid() && a.needsBeat() {
			a.handle = p.game.Beats.Register(a)
		}
	}
}

// AddState attaches s. It returns ErrStateActive if a state with the same
// name is already attached.
func (p *Player) AddState(s State) error {
	key := strings.ToLower(s.Name())
	if _, ok := p.states[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrStateActive)
	}
	a := &activeState{state: s, owner: p}
	if a.needsBeat() {
		a.handle = p.game.Beats.Register(a)
	}
	p.states[key] = a
	if e, ok := s.(Enterer); ok {
		e.Enter(p)
	}
	return nil
}

// RemoveState detaches the named state. It returns false if it was not
// attached.
func (p *Player) RemoveState(name string) bool {
	key := strings.ToLower(name)
	a, ok := p.states[key]
	if !ok {
		return false
	}
	delete(p.states, key)
	if a.handle.Valid() {
		p.game.Beats.Unregister(a.handle)
	}
	if l, ok := a.state.(Leaver); ok {
		l.Leave(p)
	}
	return true
}

// HasState reports whether the named state is attached.
func (p *Player) HasState(name string) bool {
	_, ok := p.states[strings.ToLower(name)]
	return ok
}

// State returns the named state.
func (p *Player) State(name string) (State, bool) {
	a, ok := p.states[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return a.state, true
}

// StateNames returns the attached state names, sorted.
func (p *Player) StateNames() []string {
	out := make([]string, 0, len(p.states))
	for k := range p.states {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Standing is the default posture.
type Standing struct{}

func (Standing) Name() string  { return "standing" }
func (Standing) Duration() int { return 0 }

// Dead blocks most actions until the player is revived.
type Dead struct{}

func (Dead) Name() string  { return "dead" }
func (Dead) Duration() int { return 0 }

// Fighting deals the owner's damage to Opponent every heartbeat.
type Fighting struct {
	Opponent *Player
}

func (*Fighting) Name() string  { return "fighting" }
func (*Fighting) Duration() int { return 0 }

// Tick applies one round of damage. The fight ends without damage once
// either side is gone or dead, or the two no longer share a location.
func (f *Fighting) Tick(p *Player) {
	o := f.Opponent
	if o == nil || p.IsDead() || o.IsDead() || p.location == nil || p.location != o.location {
		p.RemoveState("fighting")
		return
	}
	damage := p.AttackPower * p.Level
	if damage < 0 {
		damage = 0
	}
	o.HitPoints = clamp(o.HitPoints-damage, 0, o.MaxHitPoints)

	p.Message(fmt.Sprintf("You hit %s for %d damage.", o.Name, damage))
	o.Message(fmt.Sprintf("%s hits you for %d damage.", p.Name, damage))
	p.location.MessagePlayers(fmt.Sprintf("%s hits %s for %d damage.", p.Name, o.Name, damage), p, o)
}

func (f *Fighting) Leave(p *Player) {
	if f.Opponent != nil && !p.IsDead() {
		p.Message(fmt.Sprintf("You are no longer fighting %s.", f.Opponent.Name))
	}
}

// Resting doubles regeneration for a fixed number of heartbeats.
type Resting struct {
	Turns int
}

func (*Resting) Name() string    { return "resting" }
func (r *Resting) Duration() int { return r.Turns }

func (*Resting) Enter(p *Player) {
	p.Message("You sit down and rest.")
	if p.location != nil {
		p.location.MessagePlayers(fmt.Sprintf("%s sits down to rest.", p.Name), p)
	}
}

func (*Resting) Leave(p *Player) {
	p.Message("You stop resting.")
}
