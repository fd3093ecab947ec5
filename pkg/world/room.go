// Package world provides the room graph players move through.
package world

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crystal-mush/gotinymud/pkg/game"
)

// dirAliases maps abbreviations to canonical exit names.
var dirAliases = map[string]string{
	"n": "north",
	"s": "south",
	"e": "east",
	"w": "west",
	"u": "up",
	"d": "down",
}

// NormalizeDir expands a direction abbreviation and lowercases it.
func NormalizeDir(dir string) string {
	dir = strings.ToLower(strings.TrimSpace(dir))
	if full, ok := dirAliases[dir]; ok {
		return full
	}
	return dir
}

// Room is a location. It owns the list of players present.
type Room struct {
	ID          string
	Title       string
	Description string

	exits   map[string]*Room
	players []*game.Player
}

// NewRoom creates a room with no exits.
func NewRoom(id, title, description string) *Room {
	return &Room{
		ID:          id,
		Title:       title,
		Description: description,
		exits:       make(map[string]*Room),
	}
}

// Link adds a one-way exit from r to dest.
func (r *Room) Link(dir string, dest *Room) {
	r.exits[NormalizeDir(dir)] = dest
}

func (r *Room) Name() string { return r.Title }

// Players returns a copy of the players present.
func (r *Room) Players() []*game.Player {
	out := make([]*game.Player, len(r.players))
	copy(out, r.players)
	return out
}

// Add puts p in the room. Adding a player already present is a no-op.
func (r *Room) Add(p *game.Player) {
	for _, q := range r.players {
		if q == p {
			return
		}
	}
	r.players = append(r.players, p)
}

// Remove takes p out of the room.
func (r *Room) Remove(p *game.Player) {
	for i, q := range r.players {
		if q == p {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return
		}
	}
}

// MessagePlayers queues text for everyone present except the excluded players.
func (r *Room) MessagePlayers(text string, exclude ...*game.Player) {
	for _, p := range r.players {
		if excluded(p, exclude) {
			continue
		}
		p.Message(text)
	}
}

func excluded(p *game.Player, list []*game.Player) bool {
	for _, x := range list {
		if x == p {
			return true
		}
	}
	return false
}

// Exit follows the exit in direction dir.
func (r *Room) Exit(dir string) (game.Location, bool) {
	dest, ok := r.exits[NormalizeDir(dir)]
	if !ok {
		return nil, false
	}
	return dest, true
}

// Exits returns the exit directions, sorted.
func (r *Room) Exits() []string {
	out := make([]string, 0, len(r.exits))
	for dir := range r.exits {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}

// Describe renders the room as seen by viewer.
func (r *Room) Describe(viewer *game.Player) string {
	var sb strings.Builder
	sb.WriteString(r.Title)
	if r.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(strings.TrimRight(r.Description, "\n"))
	}
	if exits := r.Exits(); len(exits) > 0 {
		fmt.Fprintf(&sb, "\nExits: %s", strings.Join(exits, " "))
	} else {
		sb.WriteString("\nExits: none")
	}
	for _, p := range r.players {
		if p == viewer {
			continue
		}
		if p.IsDead() {
			fmt.Fprintf(&sb, "\n%s is lying here, dead.", p.Name)
		} else {
			fmt.Fprintf(&sb, "\n%s is here.", p.Name)
		}
	}
	return sb.String()
}
