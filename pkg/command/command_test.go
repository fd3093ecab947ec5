package command

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/crystal-mush/gotinymud/pkg/events"
	"github.com/crystal-mush/gotinymud/pkg/game"
	"github.com/crystal-mush/gotinymud/pkg/heartbeat"
	"github.com/crystal-mush/gotinymud/pkg/world"
)

type recordConn struct {
	sent   []string
	closed int
}

func (c *recordConn) Send(text string) { c.sent = append(c.sent, text) }
func (c *recordConn) Disconnect()      { c.closed++ }

type fakeControl struct {
	started   int
	cancelled bool
	pending   bool
}

func (f *fakeControl) StartShutdown(n int) { f.started, f.pending = n, true }

func (f *fakeControl) CancelShutdown() bool {
	was := f.pending
	f.pending = false
	f.cancelled = was
	return was
}

func (f *fakeControl) ShutdownRemaining() (int, bool) { return f.started, f.pending }

type testEnv struct {
	game  *game.Game
	reg   *Registry
	world *world.World
	ctl   *fakeControl
	conns map[string]*recordConn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	g := game.New(events.NewQueue(), heartbeat.NewRegistry(), zaptest.NewLogger(t).Sugar())
	w := world.Default()
	g.Start = w.Start
	g.SetAdmins([]string{"Root"})
	ctl := &fakeControl{}
	g.Control = ctl

	reg := New(g)
	reg.RegisterBuiltins()
	g.Commands = reg
	return &testEnv{game: g, reg: reg, world: w, ctl: ctl, conns: map[string]*recordConn{}}
}

func (e *testEnv) connect(t *testing.T, name string) *game.Player {
	t.Helper()
	p, err := e.game.CreatePlayer(name)
	require.NoError(t, err)
	c := &recordConn{}
	e.conns[name] = c
	p.Attach(c)
	e.game.Queue.Drain()
	c.sent = nil
	return p
}

// run dispatches line for p, drains the queue and returns what p received.
func (e *testEnv) run(p *game.Player, line string) []string {
	c := e.conns[p.Name]
	c.sent = nil
	p.HandleLine(line)
	e.game.Queue.Drain()
	return c.sent
}

func TestLookup(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		word string
		want string
	}{
		{"look", "look"},
		{"l", "look"},
		{"LOOK", "look"},
		{"s", "south"},
		{"sa", "say"},
		{"sc", "score"},
		{"sh", "shutdown"},
		{"w", "west"},
		{"wh", "who"},
		{"n", "north"},
		{"k", "kill"},
		{"r", "rest"},
		{"rev", "revive"},
		{"q", "quit"},
		{"g", "go"},
	}
	for _, tt := range tests {
		c, ok := env.reg.Lookup(tt.word)
		require.True(t, ok, tt.word)
		assert.Equal(t, tt.want, c.Name, tt.word)
	}

	_, ok := env.reg.Lookup("xyzzy")
	assert.False(t, ok)
	_, ok = env.reg.Lookup("")
	assert.False(t, ok)
}

func TestLookupExactBeatsPriority(t *testing.T) {
	env := newTestEnv(t)
	env.reg.Register(&Command{Name: "sout", Priority: -1, Do: func(*game.Player, string) error { return nil }})

	c, ok := env.reg.Lookup("sout")
	require.True(t, ok)
	assert.Equal(t, "sout", c.Name)

	c, ok = env.reg.Lookup("sou")
	require.True(t, ok)
	assert.Equal(t, "south", c.Name)
}

func TestUnknownCommandFallback(t *testing.T) {
	env := newTestEnv(t)
	p := env.connect(t, "Alice")
	assert.Equal(t, []string{"Unknown command."}, env.run(p, "xyzzy"))
}

func TestGuardsRunInOrderAndStopOnDenial(t *testing.T) {
	env := newTestEnv(t)
	p := env.connect(t, "Alice")

	var order []string
	guard := func(name string, deny bool) Guard {
		return GuardFunc(func(*game.Player, *Command) error {
			order = append(order, name)
			if deny {
				return Deny(name + " says no.")
			}
			return nil
		})
	}
	ran := false
	env.reg.Register(&Command{
		Name:   "gated",
		Guards: []Guard{guard("first", false), guard("second", true), guard("third", false)},
		Do:     func(*game.Player, string) error { ran = true; return nil },
	})

	assert.Equal(t, []string{"second says no."}, env.run(p, "gated"))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.False(t, ran)
}

func TestRejectedCommandChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	p := env.connect(t, "Alice")
	p.Die()
	env.game.Queue.Drain()
	start := p.Location()
	moves := p.Move

	out := env.run(p, "north")
	assert.Equal(t, []string{"You can't do that while you are dead."}, out)
	assert.Equal(t, start, p.Location())
	assert.Equal(t, moves, p.Move)
}

func TestMovementCostsMovesOnlyOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	p := env.connect(t, "Alice")
	moves := p.Move

	out := env.run(p, "west")
	assert.Equal(t, []string{"You can't go that way."}, out)
	assert.Equal(t, moves, p.Move)

	out = env.run(p, "n")
	require.NotEmpty(t, out)
	assert.Contains(t, out[0], "Narrow Alley")
	assert.Equal(t, moves-1, p.Move)

	out = env.run(p, "go south")
	require.NotEmpty(t, out)
	assert.Contains(t, out[0], "Town Square")
	assert.Equal(t, moves-2, p.Move)

	p.Move = 0
	assert.Equal(t, []string{"You are too exhausted."}, env.run(p, "north"))
}

func TestMovementMessages(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "Alice")
	b := env.connect(t, "Bob")
	env.run(b, "north")

	env.conns["Bob"].sent = nil
	env.run(a, "north")
	assert.Contains(t, env.conns["Bob"].sent, "Alice arrives.")
}

func TestSayAndShorthand(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "Alice")
	env.connect(t, "Bob")

	assert.Equal(t, []string{`You say, "hello there"`}, env.run(a, "say hello there"))
	assert.Contains(t, env.conns["Bob"].sent, `Alice says, "hello there"`)

	assert.Equal(t, []string{`You say, "hi"`}, env.run(a, `"hi`))
	assert.Equal(t, []string{`You say, "yo"`}, env.run(a, "'yo"))
	assert.Equal(t, []string{"Say what?"}, env.run(a, "say"))
}

func TestWhoAndScore(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "Root")
	env.connect(t, "Bob")

	out := env.run(a, "who")
	require.Len(t, out, 1)
	assert.Equal(t, "Players online:\n  Bob\n  Root (admin)\n2 players connected.", out[0])

	out = env.run(a, "score")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "Hit points: 100/100")
	assert.Contains(t, out[0], "States: standing")
}

func TestKill(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "Alice")
	b := env.connect(t, "Bob")

	assert.Equal(t, []string{"Kill whom?"}, env.run(a, "kill"))
	assert.Equal(t, []string{"They aren't here."}, env.run(a, "kill Zed"))
	assert.Equal(t, []string{"You can't fight yourself."}, env.run(a, "kill alice"))

	assert.Equal(t, []string{"You attack Bob!"}, env.run(a, "kill bo"))
	assert.True(t, a.HasState("fighting"))
	assert.True(t, b.HasState("fighting"))

	assert.Equal(t, []string{"You are already fighting!"}, env.run(a, "kill bob"))
	assert.Equal(t, []string{"You are too busy fighting!"}, env.run(a, "rest"))
}

func TestKillBusyTarget(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "Alice")
	b := env.connect(t, "Bob")
	c := env.connect(t, "Carol")

	assert.Equal(t, []string{"You attack Carol!"}, env.run(b, "kill carol"))
	assert.Equal(t, []string{"Bob is already fighting someone else."}, env.run(a, "kill bob"))
	assert.False(t, a.HasState("fighting"))

	st, ok := b.State("fighting")
	require.True(t, ok)
	assert.Same(t, c, st.(*game.Fighting).Opponent)
}

func TestRest(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "Alice")

	assert.Equal(t, []string{"You sit down and rest."}, env.run(a, "rest"))
	assert.True(t, a.HasState("resting"))
	assert.Equal(t, []string{"You are already resting."}, env.run(a, "rest"))

	out := env.run(a, "north")
	assert.Contains(t, out, "You stop resting.")
	assert.False(t, a.HasState("resting"))
}

func TestReviveRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	root := env.connect(t, "Root")
	bob := env.connect(t, "Bob")
	bob.Die()
	env.game.Queue.Drain()

	assert.Equal(t, []string{"Permission denied."}, env.run(bob, "revive bob"))
	assert.True(t, bob.IsDead())

	out := env.run(root, "revive bob")
	assert.Contains(t, out, "You revive Bob.")
	assert.False(t, bob.IsDead())
	assert.Contains(t, env.conns["Bob"].sent, "You have been revived.")

	assert.Equal(t, []string{"Bob is not dead."}, env.run(root, "revive bob"))
	assert.Equal(t, []string{"No player named nobody."}, env.run(root, "revive nobody"))
	assert.Equal(t, []string{"You are not dead."}, env.run(root, "revive"))
}

func TestShutdownCommand(t *testing.T) {
	env := newTestEnv(t)
	root := env.connect(t, "Root")
	bob := env.connect(t, "Bob")

	assert.Equal(t, []string{"Permission denied."}, env.run(bob, "shutdown"))
	assert.False(t, env.ctl.pending)

	env.run(root, "shutdown 3")
	assert.Equal(t, 3, env.ctl.started)
	assert.Contains(t, env.conns["Bob"].sent, "Root has started a shutdown: 3 heartbeats.")

	env.run(root, "shutdown cancel")
	assert.True(t, env.ctl.cancelled)
	assert.Equal(t, []string{"No shutdown is pending."}, env.run(root, "shutdown cancel"))

	env.run(root, "shutdown")
	assert.Equal(t, DefaultShutdownBeats, env.ctl.started)
	assert.Equal(t, []string{"Usage: shutdown [heartbeats|cancel]"}, env.run(root, "shutdown soon"))
}

func TestQuitSendsGoodbyeThenDisconnects(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "Alice")

	assert.Equal(t, []string{"Goodbye."}, env.run(a, "quit"))
	assert.Equal(t, 1, env.conns["Alice"].closed)
}

func TestHandlerErrors(t *testing.T) {
	env := newTestEnv(t)
	p := env.connect(t, "Alice")
	env.reg.Register(&Command{Name: "stop", Do: func(p *game.Player, _ string) error {
		p.Message("Stopped early.")
		return fmt.Errorf("stopping: %w", ErrStop)
	}})
	env.reg.Register(&Command{Name: "broken", Do: func(*game.Player, string) error {
		return errors.New("kaboom")
	}})

	assert.Equal(t, []string{"Stopped early."}, env.run(p, "stop"))
	assert.Equal(t, []string{"Something went wrong."}, env.run(p, "broken"))
}

func TestObserve(t *testing.T) {
	env := newTestEnv(t)
	p := env.connect(t, "Alice")
	var seen []string
	env.reg.Observe = func(name string) { seen = append(seen, name) }

	env.run(p, "l")
	env.run(p, "xyzzy")
	env.run(p, "revive bob")
	assert.Equal(t, []string{"look"}, seen, "denied commands are not counted")
}
