package game

import (
	"sort"
	"strings"
)

// Registry is the in-memory player list, keyed by lowercase name. Players
// stay registered after disconnecting so they can be resumed.
type Registry struct {
	byName map[string]*Player
}

// NewRegistry creates an empty player registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Player)}
}

// Get finds a player by name, case-insensitively.
func (r *Registry) Get(name string) (*Player, bool) {
	p, ok := r.byName[strings.ToLower(name)]
	return p, ok
}

// Add registers p. A player with the same name must not exist.
func (r *Registry) Add(p *Player) error {
	key := strings.ToLower(p.Name)
	if _, ok := r.byName[key]; ok {
		return ErrNameTaken
	}
	r.byName[key] = p
	return nil
}

// Remove drops a player from the registry.
func (r *Registry) Remove(name string) bool {
	key := strings.ToLower(name)
	if _, ok := r.byName[key]; !ok {
		return false
	}
	delete(r.byName, key)
	return true
}

// Len returns the number of registered players.
func (r *Registry) Len() int {
	return len(r.byName)
}

// Connected returns the connected players sorted by name.
func (r *Registry) Connected() []*Player {
	var out []*Player
	for _, p := range r.byName {
		if p.Connected() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
