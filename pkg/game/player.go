package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crystal-mush/gotinymud/pkg/events"
	"github.com/crystal-mush/gotinymud/pkg/heartbeat"
)

var (
	ErrNotDead      = errors.New("not dead")
	ErrSelfAttack   = errors.New("you cannot fight yourself")
	ErrNotHere      = errors.New("they are not here")
	ErrTargetIsDead = errors.New("they are already dead")
	ErrTargetBusy   = errors.New("they are already fighting someone else")
)

// Player is a named account. It outlives its connection so a later login
// can resume it.
type Player struct {
	Name string

	HitPoints    int
	MaxHitPoints int
	HitRegen     int
	Mana         int
	MaxMana      int
	ManaRegen    int
	Move         int
	MaxMove      int
	MoveRegen    int

	Level       int
	AttackPower int
	Admin       bool

	// PasswordHash is empty until the first successful login sets it.
	PasswordHash string

	game      *Game
	conn      Sender
	connected bool
	location  Location
	resume    Location
	states    map[string]*activeState
	beat      heartbeat.Handle
	revived   bool
}

// NewPlayer creates a standing player with default stats. It is not added to
// any registry.
func NewPlayer(g *Game, name string) *Player {
	p := &Player{
		Name:         name,
		HitPoints:    100,
		MaxHitPoints: 100,
		HitRegen:     1,
		Mana:         100,
		MaxMana:      100,
		ManaRegen:    1,
		Move:         100,
		MaxMove:      100,
		MoveRegen:    2,
		Level:        1,
		AttackPower:  5,
		game:         g,
		states:       make(map[string]*activeState),
	}
	p.AddState(Standing{})
	return p
}

func (p *Player) String() string { return p.Name }

// Game returns the context the player belongs to.
func (p *Player) Game() *Game { return p.game }

// Connected reports whether a connection is attached.
func (p *Player) Connected() bool { return p.connected }

// Location returns where the player stands, or nil.
func (p *Player) Location() Location { return p.location }

// IsDead reports whether the player is in the dead state.
func (p *Player) IsDead() bool { return p.HasState("dead") }

// Attach binds a connection to the player, starts its heartbeat and places
// it in the world: where it last stood, or the start location.
func (p *Player) Attach(conn Sender) {
	p.conn = conn
	p.connected = true
	if !p.beat.Valid() {
		p.beat = p.game.Beats.Register(p)
	}
	p.resumeStates()
	loc := p.resume
	if loc == nil {
		loc = p.game.Start
	}
	if loc != nil {
		loc.MessagePlayers(fmt.Sprintf("%s has entered the game.", p.Name))
		p.MoveTo(loc)
	}
}

// Detach is the disconnect path: the heartbeat stops and the player leaves
// its location. A fight ends; other states are kept but stop ticking until
// the next Attach.
func (p *Player) Detach() {
	if !p.connected {
		return
	}
	p.RemoveState("fighting")
	p.connected = false
	p.conn = nil
	if p.beat.Valid() {
		p.game.Beats.Unregister(p.beat)
		p.beat = heartbeat.Handle{}
	}
	p.pauseStates()
	if loc := p.location; loc != nil {
		p.resume = loc
		p.MoveTo(nil)
		loc.MessagePlayers(fmt.Sprintf("%s has left the game.", p.Name))
	}
}

// MoveTo moves the player out of its current location and into loc.
func (p *Player) MoveTo(loc Location) {
	if p.location != nil {
		p.location.Remove(p)
	}
	p.location = loc
	if loc != nil {
		loc.Add(p)
	}
}

// Message queues text for the player's connection.
func (p *Player) Message(text string) {
	p.game.Send(p, text)
}

// Accepts implements events.Recipient: only connected-stage events run, and
// only while a connection is attached.
func (p *Player) Accepts(ev events.Event) bool {
	return p.connected && ev.Stage == 0
}

// Deliver implements events.Recipient.
func (p *Player) Deliver(ev events.Event) {
	if p.conn == nil {
		return
	}
	switch ev.Type {
	case events.EvMessage:
		p.conn.Send(ev.Text)
	case events.EvDisconnect:
		p.conn.Disconnect()
	}
}

// HandleLine routes a line of input to the command dispatcher.
func (p *Player) HandleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || p.game.Commands == nil {
		return
	}
	p.game.Commands.Dispatch(p, line)
}

// Heartbeat runs the per-tick death check and regeneration.
func (p *Player) Heartbeat() {
	if !p.connected || p.IsDead() {
		return
	}
	if p.HitPoints <= 0 && !p.revived {
		p.Die()
		return
	}
	p.revived = false

	factor := 1
	if p.HasState("resting") {
		factor = 2
	}
	p.HitPoints = clamp(p.HitPoints+p.HitRegen*factor, 0, p.MaxHitPoints)
	p.Mana = clamp(p.Mana+p.ManaRegen*factor, 0, p.MaxMana)
	p.Move = clamp(p.Move+p.MoveRegen*factor, 0, p.MaxMove)

	if p.HitPoints <= 0 {
		p.Die()
	}
}

// Die moves the player into the dead state.
func (p *Player) Die() {
	if p.IsDead() {
		return
	}
	p.HitPoints = 0
	p.revived = false
	p.RemoveState("resting")
	p.RemoveState("standing")
	p.AddState(Dead{})

	p.Message("You have been mortally wounded!")
	if p.location != nil {
		p.location.MessagePlayers(fmt.Sprintf("%s has been mortally wounded!", p.Name), p)
	}
	p.game.Log.Infof("%s died", p.Name)
}

// Revive brings a dead player back. Regeneration runs on the next heartbeat
// before the death check, so the player is not killed again straight away.
func (p *Player) Revive() error {
	if !p.IsDead() {
		return ErrNotDead
	}
	p.RemoveState("dead")
	p.AddState(Standing{})
	p.revived = true

	p.Message("You have been revived.")
	if p.location != nil {
		p.location.MessagePlayers(fmt.Sprintf("%s has been revived.", p.Name), p)
	}
	return nil
}

// Attack puts p and target into mutual fighting states, one per side.
func (p *Player) Attack(target *Player) error {
	switch {
	case target == p:
		return ErrSelfAttack
	case target.IsDead():
		return ErrTargetIsDead
	case p.location == nil || target.location != p.location:
		return ErrNotHere
	case p.HasState("fighting"):
		return fmt.Errorf("fighting: %w", ErrStateActive)
	case target.HasState("fighting"):
		return ErrTargetBusy
	}

	p.RemoveState("resting")
	target.RemoveState("resting")
	if err := p.AddState(&Fighting{Opponent: target}); err != nil {
		return err
	}
	if err := target.AddState(&Fighting{Opponent: p}); err != nil {
		p.RemoveState("fighting")
		return err
	}

	p.Message(fmt.Sprintf("You attack %s!", target.Name))
	target.Message(fmt.Sprintf("%s attacks you!", p.Name))
	p.location.MessagePlayers(fmt.Sprintf("%s attacks %s!", p.Name, target.Name), p, target)
	return nil
}

// Score renders the player's vital statistics.
func (p *Player) Score() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (level %d)\n", p.Name, p.Level)
	fmt.Fprintf(&sb, "Hit points: %d/%d  Mana: %d/%d  Move: %d/%d\n",
		p.HitPoints, p.MaxHitPoints, p.Mana, p.MaxMana, p.Move, p.MaxMove)
	fmt.Fprintf(&sb, "Attack power: %d\n", p.AttackPower)
	fmt.Fprintf(&sb, "States: %s", strings.Join(p.StateNames(), ", "))
	return sb.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
