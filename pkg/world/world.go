package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoomDef is the on-disk form of a room.
type RoomDef struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Exits       map[string]string `yaml:"exits"` // direction -> room id
}

// File is the on-disk world layout.
type File struct {
	Start string    `yaml:"start"`
	Rooms []RoomDef `yaml:"rooms"`
}

// World is the set of rooms plus the room new players start in.
type World struct {
	Start *Room
	rooms map[string]*Room
	order []string
}

// Room looks up a room by id.
func (w *World) Room(id string) (*Room, bool) {
	r, ok := w.rooms[id]
	return r, ok
}

// Rooms returns the rooms in definition order.
func (w *World) Rooms() []*Room {
	out := make([]*Room, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.rooms[id])
	}
	return out
}

// Load reads a YAML world file.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Parse builds a world from YAML. Every exit must name a defined room.
func Parse(data []byte) (*World, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing world: %w", err)
	}
	return Build(f)
}

// Build links a world from its definitions.
func Build(f File) (*World, error) {
	if len(f.Rooms) == 0 {
		return nil, fmt.Errorf("world has no rooms")
	}
	w := &World{rooms: make(map[string]*Room)}
	for _, def := range f.Rooms {
		if def.ID == "" {
			return nil, fmt.Errorf("room %q has no id", def.Name)
		}
		if _, dup := w.rooms[def.ID]; dup {
			return nil, fmt.Errorf("duplicate room id %q", def.ID)
		}
		name := def.Name
		if name == "" {
			name = def.ID
		}
		w.rooms[def.ID] = NewRoom(def.ID, name, def.Description)
		w.order = append(w.order, def.ID)
	}
	for _, def := range f.Rooms {
		from := w.rooms[def.ID]
		for dir, to := range def.Exits {
			dest, ok := w.rooms[to]
			if !ok {
				return nil, fmt.Errorf("room %q: exit %s leads to unknown room %q", def.ID, dir, to)
			}
			from.Link(dir, dest)
		}
	}

	start := f.Start
	if start == "" {
		start = f.Rooms[0].ID
	}
	s, ok := w.rooms[start]
	if !ok {
		return nil, fmt.Errorf("start room %q is not defined", start)
	}
	w.Start = s
	return w, nil
}

// Default returns the built-in world used when no world file is configured.
func Default() *World {
	w, err := Build(File{
		Start: "square",
		Rooms: []RoomDef{
			{
				ID:          "square",
				Name:        "Town Square",
				Description: "A cobbled square with a dry fountain at its centre.",
				Exits:       map[string]string{"north": "alley", "east": "tavern"},
			},
			{
				ID:          "alley",
				Name:        "Narrow Alley",
				Description: "Damp walls close in on either side.",
				Exits:       map[string]string{"south": "square"},
			},
			{
				ID:          "tavern",
				Name:        "The Rusty Tankard",
				Description: "A low room that smells of smoke and spilled ale. Stairs lead up.",
				Exits:       map[string]string{"west": "square", "up": "loft"},
			},
			{
				ID:          "loft",
				Name:        "Tavern Loft",
				Description: "A few straw mattresses under the eaves.",
				Exits:       map[string]string{"down": "tavern"},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return w
}
