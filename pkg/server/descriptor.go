package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/crystal-mush/gotinymud/pkg/game"
	"github.com/crystal-mush/gotinymud/pkg/telnet"
)

// LineHandler consumes complete input lines. The owner of a Descriptor is
// either a ConnectingPlayer or, after login, a *game.Player.
type LineHandler interface {
	HandleLine(line string)
}

// Descriptor represents a single client connection.
// It implements game.Sender so a logged-in Player can write through it.
type Descriptor struct {
	ID       int
	Conn     net.Conn
	Addr     string
	ConnTime time.Time
	CmdCount int // lines handled; scheduler goroutine only

	BytesSent atomic.Int64
	BytesRecv atomic.Int64

	server  *Server
	framer  *telnet.Framer
	limiter *rate.Limiter
	owner   LineHandler // scheduler goroutine only

	mu     sync.Mutex
	closed bool
}

// NewDescriptor wraps a net.Conn into a Descriptor.
func NewDescriptor(id int, conn net.Conn, s *Server) *Descriptor {
	d := &Descriptor{
		ID:       id,
		Conn:     conn,
		Addr:     conn.RemoteAddr().String(),
		ConnTime: time.Now(),
		server:   s,
		framer:   telnet.NewFramer(),
	}
	if s != nil && s.Config.InputRate > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(s.Config.InputRate), s.Config.InputBurst)
	}
	return d
}

// Owner returns who currently consumes this connection's input.
func (d *Descriptor) Owner() LineHandler {
	return d.owner
}

// Player returns the logged-in player, or nil while logging in.
func (d *Descriptor) Player() *game.Player {
	p, _ := d.owner.(*game.Player)
	return p
}

// Send writes a message to the client, ending it with "\r\n" if it does not
// already end in a newline. Write errors are logged and swallowed; the read
// side notices the dead socket and tears the connection down.
func (d *Descriptor) Send(msg string) {
	if !strings.HasSuffix(msg, "\n") {
		msg += "\r\n"
	}
	d.write(telnet.Encode(msg))
}

// SendRaw writes raw bytes to the connection (telnet negotiation).
func (d *Descriptor) SendRaw(data []byte) {
	d.write(data)
}

func (d *Descriptor) write(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	timeout := 5 * time.Second
	if d.server != nil && d.server.Config.WriteTimeout > 0 {
		timeout = d.server.Config.WriteTimeout
	}
	d.Conn.SetWriteDeadline(time.Now().Add(timeout))
	n, err := d.Conn.Write(data)
	d.BytesSent.Add(int64(n))
	if err != nil && d.server != nil {
		d.server.Log.Debugf("[%d] write error: %v", d.ID, err)
	}
}

// Disconnect tears the connection down: the transport is closed, the
// descriptor leaves the server registry and a logged-in player runs its
// disconnect path. Safe to call more than once. Scheduler goroutine only.
func (d *Descriptor) Disconnect() {
	d.Close()
	if d.server != nil {
		d.server.RemoveClient(d)
	}
}

// Close shuts the transport without touching game state.
func (d *Descriptor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		d.Conn.Close()
	}
}

// IsClosed returns whether the connection has been closed.
func (d *Descriptor) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// handleLine runs on the scheduler goroutine.
func (d *Descriptor) handleLine(line string) {
	if d.owner == nil {
		return
	}
	d.CmdCount++
	if p := d.Player(); p != nil {
		d.server.Log.Debugf("[%d] CMD player=%s input=%q", d.ID, p.Name, line)
		if d.server.Metrics != nil {
			d.server.Metrics.linesTotal.Inc()
		}
	}
	d.owner.HandleLine(line)
}

// readLoop frames socket input and posts each line to the scheduler in
// arrival order. It runs on its own goroutine and never touches game state.
func (d *Descriptor) readLoop(ctx context.Context) {
	s := d.server
	buf := make([]byte, 4096)
	for {
		n, err := d.Conn.Read(buf)
		if n > 0 {
			d.BytesRecv.Add(int64(n))
			d.framer.Feed(buf[:n])
			for {
				line, ok := d.framer.Next()
				if !ok {
					break
				}
				if d.limiter != nil {
					if werr := d.limiter.Wait(ctx); werr != nil {
						s.Sched.Post(d.Disconnect)
						return
					}
				}
				line = strings.TrimSuffix(line, "\r")
				if !s.Sched.Post(func() { d.handleLine(line) }) {
					d.Close()
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.Log.Debugf("[%d] read error: %v", d.ID, err)
			}
			if !s.Sched.Post(d.Disconnect) {
				d.Close()
			}
			return
		}
	}
}

// ConnManager tracks all active connections.
type ConnManager struct {
	mu          sync.RWMutex
	descriptors map[int]*Descriptor
	nextID      int
}

// NewConnManager creates a new connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		descriptors: make(map[int]*Descriptor),
		nextID:      1,
	}
}

// Add registers a new descriptor.
func (cm *ConnManager) Add(d *Descriptor) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.descriptors[d.ID] = d
}

// Remove unregisters a descriptor. It returns false if it was not registered.
func (cm *ConnManager) Remove(d *Descriptor) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cur, ok := cm.descriptors[d.ID]; !ok || cur != d {
		return false
	}
	delete(cm.descriptors, d.ID)
	return true
}

// Get returns the descriptor with the given id.
func (cm *ConnManager) Get(id int) (*Descriptor, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	d, ok := cm.descriptors[id]
	return d, ok
}

// NextID returns the next descriptor ID.
func (cm *ConnManager) NextID() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	id := cm.nextID
	cm.nextID++
	return id
}

// AllDescriptors returns a snapshot of all active descriptors.
func (cm *ConnManager) AllDescriptors() []*Descriptor {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	descs := make([]*Descriptor, 0, len(cm.descriptors))
	for _, d := range cm.descriptors {
		descs = append(descs, d)
	}
	return descs
}

// Count returns the number of active connections.
func (cm *ConnManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.descriptors)
}
