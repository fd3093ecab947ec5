package server

import (
	"strings"

	"github.com/crystal-mush/gotinymud/pkg/command"
	"github.com/crystal-mush/gotinymud/pkg/game"
)

// DebugSwitch toggles debug logging at runtime. *mudlog.Logger implements it.
type DebugSwitch interface {
	SetDebug(on bool)
	IsDebug() bool
}

// cmdDebug implements the admin "debug [on|off]" command.
func (s *Server) cmdDebug(p *game.Player, args string) error {
	if s.Debug == nil {
		return command.Deny("Debug logging cannot be changed at runtime.")
	}
	switch strings.ToLower(args) {
	case "":
	case "on":
		s.Debug.SetDebug(true)
		s.Log.Infof("Debug logging enabled by %s", p.Name)
	case "off":
		s.Debug.SetDebug(false)
		s.Log.Infof("Debug logging disabled by %s", p.Name)
	default:
		return command.Deny("Usage: debug [on|off]")
	}
	if s.Debug.IsDebug() {
		p.Message("Debug logging is on.")
	} else {
		p.Message("Debug logging is off.")
	}
	return nil
}
