package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/crystal-mush/gotinymud/pkg/events"
	"github.com/crystal-mush/gotinymud/pkg/heartbeat"
)

// testRoom is a minimal Location.
type testRoom struct {
	name    string
	present []*Player
}

func (r *testRoom) Name() string                 { return r.name }
func (r *testRoom) Describe(*Player) string      { return r.name }
func (r *testRoom) Players() []*Player           { return r.present }
func (r *testRoom) Exit(string) (Location, bool) { return nil, false }

func (r *testRoom) Add(p *Player) { r.present = append(r.present, p) }

func (r *testRoom) Remove(p *Player) {
	for i, q := range r.present {
		if q == p {
			r.present = append(r.present[:i], r.present[i+1:]...)
			return
		}
	}
}

func (r *testRoom) MessagePlayers(text string, exclude ...*Player) {
outer:
	for _, p := range r.present {
		for _, x := range exclude {
			if p == x {
				continue outer
			}
		}
		p.Message(text)
	}
}

// recordConn captures what the queue delivers to a player.
type recordConn struct {
	sent   []string
	closed int
}

func (c *recordConn) Send(text string) { c.sent = append(c.sent, text) }
func (c *recordConn) Disconnect()      { c.closed++ }

type testEnv struct {
	game  *Game
	sched *heartbeat.Scheduler
	room  *testRoom
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	q := events.NewQueue()
	beats := heartbeat.NewRegistry()
	g := New(q, beats, log)
	room := &testRoom{name: "Square"}
	g.Start = room
	return &testEnv{game: g, sched: heartbeat.NewScheduler(beats, q, log), room: room}
}

func (e *testEnv) connect(t *testing.T, name string) (*Player, *recordConn) {
	t.Helper()
	p, err := e.game.CreatePlayer(name)
	require.NoError(t, err)
	c := &recordConn{}
	p.Attach(c)
	return p, c
}

// tick runs one heartbeat pass followed by a drain.
func (e *testEnv) tick() {
	e.sched.Beat()
	e.game.Queue.Drain()
}

func TestDeathAndRevive(t *testing.T) {
	env := newTestEnv(t)
	p, conn := env.connect(t, "Alice")
	p.MaxHitPoints = 100
	p.HitRegen = 5
	p.HitPoints = 0

	env.tick()
	assert.True(t, p.IsDead())
	assert.False(t, p.HasState("standing"))
	assert.Equal(t, 0, p.HitPoints, "no regen on the tick the player dies")
	assert.Contains(t, conn.sent, "You have been mortally wounded!")

	env.tick()
	assert.Equal(t, 0, p.HitPoints, "dead players do not regenerate")

	require.NoError(t, p.Revive())
	assert.False(t, p.IsDead())
	assert.True(t, p.HasState("standing"))

	env.tick()
	assert.Equal(t, 5, p.HitPoints)
	assert.False(t, p.IsDead())
	assert.Contains(t, conn.sent, "You have been revived.")
}

func TestReviveRequiresDeath(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.connect(t, "Alice")
	assert.ErrorIs(t, p.Revive(), ErrNotDead)
}

func TestDeathMessagesReachRoom(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.connect(t, "Alice")
	_, watcher := env.connect(t, "Bob")
	p.HitPoints = 0

	env.tick()
	assert.Contains(t, watcher.sent, "Alice has been mortally wounded!")
}

func TestRegenClamps(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.connect(t, "Alice")
	p.HitPoints = 99
	p.Mana = 50
	p.Move = 99

	env.tick()
	assert.Equal(t, 100, p.HitPoints)
	assert.Equal(t, 51, p.Mana)
	assert.Equal(t, 100, p.Move)
}

func TestDisconnectedPlayerDoesNotTick(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.connect(t, "Alice")
	p.HitPoints = 50
	p.Detach()

	env.tick()
	assert.Equal(t, 50, p.HitPoints)
	assert.Nil(t, p.Location())
	assert.Empty(t, env.room.Players())
}

func TestSymmetricCombat(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.connect(t, "Alice")
	b, _ := env.connect(t, "Bob")
	for _, p := range []*Player{a, b} {
		p.AttackPower = 1
		p.Level = 1
		p.HitRegen = 0
	}

	require.NoError(t, a.Attack(b))
	require.True(t, a.HasState("fighting"))
	require.True(t, b.HasState("fighting"))

	const n = 7
	for i := 0; i < n; i++ {
		env.tick()
	}
	assert.Equal(t, 100-n, a.HitPoints)
	assert.Equal(t, 100-n, b.HitPoints)
}

func TestCombatFloorsAtZero(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.connect(t, "Alice")
	b, _ := env.connect(t, "Bob")
	for _, p := range []*Player{a, b} {
		p.AttackPower = 1
		p.Level = 1
		p.HitRegen = 0
		p.HitPoints = 2
	}
	require.NoError(t, a.Attack(b))

	for i := 0; i < 5; i++ {
		env.tick()
		assert.GreaterOrEqual(t, a.HitPoints, 0)
		assert.GreaterOrEqual(t, b.HitPoints, 0)
	}
	assert.True(t, a.IsDead())
	assert.True(t, b.IsDead())
	assert.False(t, a.HasState("fighting"))
	assert.False(t, b.HasState("fighting"))
}

func TestCombatMessages(t *testing.T) {
	env := newTestEnv(t)
	a, ac := env.connect(t, "Alice")
	b, bc := env.connect(t, "Bob")
	_, cc := env.connect(t, "Carol")
	b.AttackPower = 0

	require.NoError(t, a.Attack(b))
	env.tick()

	assert.Contains(t, ac.sent, "You hit Bob for 5 damage.")
	assert.Contains(t, bc.sent, "Alice hits you for 5 damage.")
	assert.Contains(t, cc.sent, "Alice hits Bob for 5 damage.")
	assert.NotContains(t, ac.sent, "Alice hits Bob for 5 damage.")
}

func TestSeparationEndsFight(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.connect(t, "Alice")
	b, _ := env.connect(t, "Bob")
	a.HitRegen, b.HitRegen = 0, 0
	require.NoError(t, a.Attack(b))

	b.MoveTo(&testRoom{name: "Alley"})
	env.tick()

	assert.Equal(t, 100, a.HitPoints)
	assert.Equal(t, 100, b.HitPoints)
	assert.False(t, a.HasState("fighting"))
	assert.False(t, b.HasState("fighting"))
}

func TestAttackRules(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.connect(t, "Alice")
	b, _ := env.connect(t, "Bob")

	assert.ErrorIs(t, a.Attack(a), ErrSelfAttack)

	b.MoveTo(&testRoom{name: "Alley"})
	assert.ErrorIs(t, a.Attack(b), ErrNotHere)
	b.MoveTo(env.room)

	require.NoError(t, a.Attack(b))
	assert.ErrorIs(t, a.Attack(b), ErrStateActive)
}

func TestAttackBusyTarget(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.connect(t, "Alice")
	b, _ := env.connect(t, "Bob")
	c, _ := env.connect(t, "Carol")
	require.NoError(t, b.Attack(c))

	assert.ErrorIs(t, a.Attack(b), ErrTargetBusy)
	assert.False(t, a.HasState("fighting"))
	st, ok := b.State("fighting")
	require.True(t, ok)
	assert.Same(t, c, st.(*Fighting).Opponent)
}

func TestStatesAreUniqueAndLowercase(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.connect(t, "Alice")

	assert.Equal(t, []string{"standing"}, p.StateNames())
	assert.ErrorIs(t, p.AddState(Standing{}), ErrStateActive)

	require.NoError(t, p.AddState(&Resting{Turns: 2}))
	assert.True(t, p.HasState("RESTING"))
	assert.Equal(t, []string{"resting", "standing"}, p.StateNames())

	assert.True(t, p.RemoveState("Resting"))
	assert.False(t, p.RemoveState("resting"))
}

func TestTimedStateExpires(t *testing.T) {
	env := newTestEnv(t)
	p, conn := env.connect(t, "Alice")
	p.HitPoints = 50
	before := env.game.Beats.Len()

	require.NoError(t, p.AddState(&Resting{Turns: 2}))
	assert.Equal(t, before+1, env.game.Beats.Len())

	env.tick()
	env.tick()
	assert.True(t, p.HasState("resting"), "state lives for its full duration")
	assert.Equal(t, 54, p.HitPoints, "resting doubles regen")

	env.tick()
	assert.False(t, p.HasState("resting"))
	assert.Equal(t, before, env.game.Beats.Len())
	assert.Contains(t, conn.sent, "You stop resting.")
}

func TestAttackInterruptsRest(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.connect(t, "Alice")
	b, _ := env.connect(t, "Bob")
	require.NoError(t, b.AddState(&Resting{Turns: DefaultRestTurns}))

	require.NoError(t, a.Attack(b))
	assert.False(t, b.HasState("resting"))
}

func TestEventsDroppedAfterDetach(t *testing.T) {
	env := newTestEnv(t)
	p, conn := env.connect(t, "Alice")

	p.Message("hello")
	p.Detach()
	ran, dropped := env.game.Queue.Drain()

	assert.Equal(t, 0, ran)
	assert.Equal(t, 1, dropped)
	assert.Empty(t, conn.sent)
}

func TestPlayerRejectsLoginStageEvents(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.connect(t, "Alice")
	assert.True(t, p.Accepts(events.Message(p, "x")))
	assert.False(t, p.Accepts(events.Event{Type: events.EvMessage, Player: p, Stage: 2}))
}

func TestResumeReturnsToLastLocation(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.connect(t, "Alice")
	alley := &testRoom{name: "Alley"}
	p.MoveTo(alley)

	p.Detach()
	assert.Empty(t, alley.Players())

	p.Attach(&recordConn{})
	assert.Equal(t, alley, p.Location())
}

func TestRegistry(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.connect(t, "Zed")
	env.connect(t, "alice")

	got, ok := env.game.Players.Get("ZED")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, err := env.game.CreatePlayer("zed")
	assert.ErrorIs(t, err, ErrNameTaken)

	names := []string{}
	for _, p := range env.game.Players.Connected() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"alice", "Zed"}, names)

	a.Detach()
	assert.Len(t, env.game.Players.Connected(), 1)
	assert.Equal(t, 2, env.game.Players.Len())
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"Al", true},
		{"Bartholomew", true},
		{"A", false},
		{"ThisNameIsFarTooLong", false},
		{"bob1", false},
		{"bo b", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, ValidName(tt.name), tt.name)
	}
}

func TestAdmins(t *testing.T) {
	env := newTestEnv(t)
	env.game.SetAdmins([]string{" Root ", ""})
	p, _ := env.connect(t, "root")
	assert.True(t, p.Admin)
	q, _ := env.connect(t, "user")
	assert.False(t, q.Admin)
}

func TestDetachPausesStates(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.connect(t, "Alice")
	require.NoError(t, p.AddState(&Resting{Turns: 2}))
	assert.Equal(t, 2, env.game.Beats.Len())

	p.Detach()
	assert.Equal(t, 0, env.game.Beats.Len())
	for i := 0; i < 5; i++ {
		env.tick()
	}
	assert.True(t, p.HasState("resting"), "a detached player's states do not count down")

	conn := &recordConn{}
	p.Attach(conn)
	assert.Equal(t, 2, env.game.Beats.Len())
	env.tick()
	env.tick()
	assert.True(t, p.HasState("resting"))
	assert.NotContains(t, conn.sent, "You stop resting.")

	env.tick()
	assert.False(t, p.HasState("resting"))
	assert.Contains(t, conn.sent, "You stop resting.")
	assert.Equal(t, 1, env.game.Beats.Len())
}

func TestDetachEndsFight(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.connect(t, "Alice")
	b, bconn := env.connect(t, "Bob")
	require.NoError(t, a.Attack(b))

	a.Detach()
	assert.False(t, a.HasState("fighting"))

	env.tick()
	assert.False(t, b.HasState("fighting"))
	assert.Equal(t, 100, b.HitPoints)
	assert.Contains(t, bconn.sent, "You are no longer fighting Alice.")
}
