package command

import "github.com/crystal-mush/gotinymud/pkg/game"

// RequireAlive rejects dead players.
var RequireAlive = GuardFunc(func(p *game.Player, _ *Command) error {
	if p.IsDead() {
		return Deny("You can't do that while you are dead.")
	}
	return nil
})

// RequireAdmin rejects players not on the admin list.
var RequireAdmin = GuardFunc(func(p *game.Player, _ *Command) error {
	if !p.Admin {
		return Deny("Permission denied.")
	}
	return nil
})

// NotFighting rejects players in combat.
var NotFighting = GuardFunc(func(p *game.Player, _ *Command) error {
	if p.HasState("fighting") {
		return Deny("You are too busy fighting!")
	}
	return nil
})

// CostsMoves requires n move points and spends them once the command
// succeeds.
func CostsMoves(n int) Guard {
	return moveCost(n)
}

type moveCost int

func (n moveCost) Allow(p *game.Player, _ *Command) error {
	if p.Move < int(n) {
		return Deny("You are too exhausted.")
	}
	return nil
}

func (n moveCost) Charge(p *game.Player) {
	p.Move -= int(n)
	if p.Move < 0 {
		p.Move = 0
	}
}
