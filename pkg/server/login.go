package server

import (
	"fmt"
	"strings"

	"github.com/crystal-mush/gotinymud/pkg/crypt"
	"github.com/crystal-mush/gotinymud/pkg/events"
	"github.com/crystal-mush/gotinymud/pkg/game"
	"github.com/crystal-mush/gotinymud/pkg/telnet"
)

// WelcomeText is the default welcome screen shown to new connections.
const WelcomeText = "Welcome to GoTinyMUD!\r\n"

const (
	namePrompt     = "By what name are you known?"
	passwordPrompt = "Password:"
)

// LoginState is a step of the login flow. Events queued for a connection
// that is still logging in carry the state as their Stage; logged-in players
// use Stage 0, so the values start at 1.
type LoginState int

const (
	Connecting LoginState = iota + 1
	AwaitingUsername
	AwaitingPassword
	LoginComplete
)

func (s LoginState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case AwaitingUsername:
		return "AWAITING_USERNAME"
	case AwaitingPassword:
		return "AWAITING_PASSWORD"
	case LoginComplete:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// ConnectingPlayer owns a connection until it logs in as a Player. It moves
// forward through the login states only.
type ConnectingPlayer struct {
	server *Server
	desc   *Descriptor
	state  LoginState
	player *game.Player
}

func newConnectingPlayer(s *Server, d *Descriptor) *ConnectingPlayer {
	return &ConnectingPlayer{server: s, desc: d, state: Connecting}
}

// State returns the current login state.
func (c *ConnectingPlayer) State() LoginState { return c.state }

// Accepts implements events.Recipient: an event only runs while the
// connection is open and still at the login state it was queued for.
func (c *ConnectingPlayer) Accepts(ev events.Event) bool {
	return !c.desc.IsClosed() && ev.Stage == int(c.state)
}

// Deliver implements events.Recipient.
func (c *ConnectingPlayer) Deliver(ev events.Event) {
	switch ev.Type {
	case events.EvMessage:
		c.desc.Send(ev.Text)
	case events.EvDisconnect:
		c.desc.Disconnect()
	}
}

func (c *ConnectingPlayer) queue(ev events.Event) {
	ev.Player = c
	ev.Stage = int(c.state)
	c.server.Game.Queue.Push(ev)
}

func (c *ConnectingPlayer) send(text string) {
	c.queue(events.Event{Type: events.EvMessage, Text: text})
}

// refuse sends text and then closes the connection. Both events carry the
// same stage so the text is written before the socket closes.
func (c *ConnectingPlayer) refuse(text string) {
	c.send(text)
	c.queue(events.Event{Type: events.EvDisconnect})
}

// Start shows the welcome screen and asks for a name.
func (c *ConnectingPlayer) Start() {
	c.state = AwaitingUsername
	c.send(c.server.welcomeText())
	c.send(namePrompt)
}

// HandleLine implements LineHandler.
func (c *ConnectingPlayer) HandleLine(line string) {
	switch c.state {
	case AwaitingUsername:
		c.handleUsername(strings.TrimSpace(line))
	case AwaitingPassword:
		c.handlePassword(line)
	}
}

func (c *ConnectingPlayer) handleUsername(name string) {
	s := c.server
	if name == "" {
		c.send(namePrompt)
		return
	}
	if !game.ValidName(name) {
		c.send("Names must be 2 to 16 letters.")
		c.send(namePrompt)
		return
	}

	p, ok := s.Game.Players.Get(name)
	welcome := ""
	switch {
	case ok && p.Connected():
		s.Log.Infof("[%d] Refused duplicate login for %s", c.desc.ID, p.Name)
		c.refuse("That player is already connected.")
		return
	case ok:
		welcome = fmt.Sprintf("Welcome back, %s.", p.Name)
	default:
		created, err := s.Game.CreatePlayer(name)
		if err != nil {
			c.send(fmt.Sprintf("%s.", capitalize(err.Error())))
			c.send(namePrompt)
			return
		}
		p = created
		welcome = fmt.Sprintf("Welcome, %s! A new character has been created.", p.Name)
	}

	// Everything below is queued at the new stage so it is still delivered
	// once the state has moved on.
	c.player = p
	c.state = AwaitingPassword
	c.send(welcome)
	c.queue(events.Event{Type: events.EvCall, Run: func() { c.desc.SendRaw(telnet.EchoOff()) }})
	c.send(passwordPrompt)
}

func (c *ConnectingPlayer) handlePassword(password string) {
	s := c.server
	p := c.player

	// The client did not echo the newline while echo was off.
	c.desc.SendRaw(telnet.EchoOn())
	c.desc.SendRaw([]byte("\r\n"))

	if p.Connected() {
		s.Log.Infof("[%d] Refused login for %s: connected from elsewhere", c.desc.ID, p.Name)
		c.refuse("That player is already connected.")
		return
	}

	kind := "returning"
	if p.PasswordHash == "" {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			s.Log.Errorf("[%d] Hashing password for %s: %v", c.desc.ID, p.Name, err)
			c.refuse("Something went wrong. Please try again later.")
			return
		}
		p.PasswordHash = hash
		kind = "new"
		s.Log.Infof("[%d] Password set for %s", c.desc.ID, p.Name)
	} else if !crypt.Verify(password, p.PasswordHash) {
		s.Log.Infof("[%d] Failed login for %s from %s", c.desc.ID, p.Name, c.desc.Addr)
		c.refuse("Wrong password.")
		return
	}

	c.state = LoginComplete
	s.Metrics.loginsTotal.WithLabelValues(kind).Inc()
	s.PlayerConnected(c.desc, p)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
