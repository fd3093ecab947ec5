package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/crystal-mush/gotinymud/pkg/command"
	"github.com/crystal-mush/gotinymud/pkg/crypt"
	"github.com/crystal-mush/gotinymud/pkg/events"
	"github.com/crystal-mush/gotinymud/pkg/game"
	"github.com/crystal-mush/gotinymud/pkg/heartbeat"
	"github.com/crystal-mush/gotinymud/pkg/world"
)

// Server is the main TCP game server. Connections, players and the world
// are driven by a single scheduler goroutine; network goroutines only frame
// input and post it there.
type Server struct {
	Config  Config
	Game    *game.Game
	World   *world.World
	Sched   *heartbeat.Scheduler
	Conns   *ConnManager
	Texts   *TextFiles
	Metrics *Metrics
	Log     *zap.SugaredLogger
	Debug   DebugSwitch // optional; enables the admin "debug" command

	commands *command.Registry
	hasher   crypt.Hasher
	started  time.Time

	listener net.Listener
	ready    chan struct{}
	stopOnce sync.Once
}

// NewServer wires a game, scheduler and command table around w. A nil w
// uses the built-in world.
func NewServer(cfg Config, w *world.World, log *zap.SugaredLogger) (*Server, error) {
	hasher, err := crypt.New(cfg.PasswordHash, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	if w == nil {
		w = world.Default()
	}

	queue := events.NewQueue()
	beats := heartbeat.NewRegistry()
	sched := heartbeat.NewScheduler(beats, queue, log)
	if cfg.Pulse > 0 {
		sched.Pulse = cfg.Pulse
	}
	if cfg.Yield > 0 {
		sched.Yield = cfg.Yield
	}

	g := game.New(queue, beats, log)
	g.Start = w.Start
	g.SetAdmins(cfg.Admins)
	g.Control = sched

	s := &Server{
		Config:  cfg,
		Game:    g,
		World:   w,
		Sched:   sched,
		Conns:   NewConnManager(),
		Log:     log,
		hasher:  hasher,
		started: time.Now(),
		ready:   make(chan struct{}),
	}
	s.Metrics = NewMetrics(s.Conns, s.started)
	sched.Stats = s.Metrics

	if cfg.TextDir != "" {
		s.Texts = LoadTextFiles(cfg.TextDir, log)
	} else {
		s.Texts = &TextFiles{log: log}
	}

	reg := command.New(g)
	reg.RegisterBuiltins()
	reg.Register(&command.Command{Name: "debug", Guards: []command.Guard{command.RequireAdmin}, Do: s.cmdDebug})
	reg.Register(&command.Command{Name: "stats", Guards: []command.Guard{command.RequireAdmin}, Do: s.cmdStats})
	reg.Observe = s.Metrics.CommandRun
	g.Commands = reg
	s.commands = reg

	sched.OnCountdown = s.announceCountdown
	sched.OnShutdown = s.Stop

	log.Infof("World: %d rooms, start %q", len(w.Rooms()), w.Start.Name())
	return s, nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listen address. Valid after Ready is closed.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) welcomeText() string {
	if txt := s.Texts.GetConnect(); txt != "" {
		return txt
	}
	return WelcomeText
}

func (s *Server) announceCountdown(remaining int) {
	if remaining > 0 {
		s.Game.Broadcast(fmt.Sprintf("Shutdown in %d heartbeats.", remaining))
		return
	}
	s.Game.Broadcast("The game is shutting down. Goodbye!")
}

// Run listens on the configured address and runs the scheduler, accept loop,
// metrics endpoint and text file watcher until the shutdown countdown
// completes or ctx is cancelled. Both end with a nil error.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Config.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Config.Addr(), err)
	}
	s.listener = ln
	close(s.ready)
	s.Log.Infof("Listening on %s", ln.Addr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		// The countdown finishing ends everything else too.
		defer cancel()
		err := s.Sched.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	p.Go(func(ctx context.Context) error {
		return s.acceptLoop(ctx, ln)
	})
	if s.Config.MetricsAddr != "" {
		p.Go(func(ctx context.Context) error {
			s.Log.Infof("Metrics listening on %s", s.Config.MetricsAddr)
			return s.Metrics.Serve(ctx, s.Config.MetricsAddr)
		})
	}
	if s.Texts.dir != "" {
		p.Go(func(ctx context.Context) error {
			return s.Texts.Watch(ctx, s.textReloaded)
		})
	}

	err = p.Wait()
	s.Stop()
	s.Log.Infof("Server stopped")
	return err
}

// textReloaded runs on the watcher goroutine.
func (s *Server) textReloaded(desc string) {
	s.Sched.Post(func() {
		s.Game.BroadcastAdmins(fmt.Sprintf("GAME: Text file reloaded: %s", desc))
	})
}

// acceptLoop accepts connections until the listener is closed. Each socket
// is handed to the scheduler goroutine.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	limiter := ratelimit.NewUnlimited()
	if s.Config.AcceptRate > 0 {
		limiter = ratelimit.New(s.Config.AcceptRate)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		limiter.Take()
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Log.Warnf("Accept error: %v", err)
			continue
		}
		if !s.Sched.Post(func() { s.handleConnection(ctx, conn) }) {
			conn.Close()
			return nil
		}
	}
}

// handleConnection registers a new socket, starts its login flow and its
// reader. Scheduler goroutine only.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	d := s.newSession(conn)
	go d.readLoop(ctx)
}

func (s *Server) newSession(conn net.Conn) *Descriptor {
	d := NewDescriptor(s.Conns.NextID(), conn, s)
	s.AddClient(d)

	c := newConnectingPlayer(s, d)
	d.owner = c
	c.Start()
	return d
}

// AddClient registers a descriptor.
func (s *Server) AddClient(d *Descriptor) {
	s.Conns.Add(d)
	s.Metrics.connectionsTotal.Inc()
	s.Log.Infof("[%d] New connection from %s", d.ID, d.Addr)
}

// RemoveClient unregisters a descriptor and runs the disconnect path of the
// player that owned it. Calling it again for the same descriptor is a no-op.
func (s *Server) RemoveClient(d *Descriptor) {
	if !s.Conns.Remove(d) {
		return
	}
	p := d.Player()
	d.owner = nil
	if p != nil {
		p.Detach()
		s.Metrics.playersConnected.Dec()
		s.Log.Infof("[%d] %s disconnected", d.ID, p.Name)
	}
	s.Log.Infof("[%d] Connection closed from %s", d.ID, d.Addr)
}

// PlayerConnected hands a logged-in descriptor to its player, places the
// player in the world and shows the MOTD and the room.
func (s *Server) PlayerConnected(d *Descriptor, p *game.Player) {
	d.owner = p
	p.Attach(d)
	s.Metrics.playersConnected.Inc()
	s.Log.Infof("[%d] %s connected from %s", d.ID, p.Name, d.Addr)

	if motd := s.Texts.GetMotd(); motd != "" {
		p.Message(motd)
	}
	s.commands.Dispatch(p, "look")
}

// Stop closes the listener and every open connection. Safe to call more
// than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.listener != nil {
			s.listener.Close()
		}
		for _, d := range s.Conns.AllDescriptors() {
			d.Disconnect()
		}
	})
}
