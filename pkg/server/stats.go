package server

import (
	"fmt"
	"runtime"
	"time"

	"github.com/crystal-mush/gotinymud/pkg/game"
)

// ConnectionStats is a breakdown of current connections.
type ConnectionStats struct {
	Total     int
	LoggingIn int
	Playing   int
	BytesSent int64
	BytesRecv int64
	Lines     int
}

// ConnectionStats sums the counters of every open connection. Scheduler
// goroutine only.
func (s *Server) ConnectionStats() ConnectionStats {
	var st ConnectionStats
	for _, d := range s.Conns.AllDescriptors() {
		st.Total++
		if d.Player() != nil {
			st.Playing++
		} else {
			st.LoggingIn++
		}
		st.BytesSent += d.BytesSent.Load()
		st.BytesRecv += d.BytesRecv.Load()
		st.Lines += d.CmdCount
	}
	return st
}

// MemoryStats returns Go runtime memory statistics.
func MemoryStats() (heapMB float64, goroutines int, gcCycles uint32) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / 1024 / 1024, runtime.NumGoroutine(), m.NumGC
}

// cmdStats implements the admin "stats" command.
func (s *Server) cmdStats(p *game.Player, _ string) error {
	cs := s.ConnectionStats()
	heapMB, goroutines, gc := MemoryStats()

	p.Message(fmt.Sprintf("%s, up %s", VersionString(), time.Since(s.started).Round(time.Second)))
	p.Message(fmt.Sprintf("Connections: %d (%d logging in, %d playing)", cs.Total, cs.LoggingIn, cs.Playing))
	p.Message(fmt.Sprintf("Traffic: %d bytes sent, %d bytes received, %d lines", cs.BytesSent, cs.BytesRecv, cs.Lines))
	p.Message(fmt.Sprintf("Heartbeats: %d passes, %d handlers, %d events queued",
		s.Sched.Passes(), s.Game.Beats.Len(), s.Game.Queue.Len()))
	p.Message(fmt.Sprintf("Players: %d known, %d connected", s.Game.Players.Len(), len(s.Game.Players.Connected())))
	p.Message(fmt.Sprintf("Memory: %.1f MB heap, %d goroutines, %d GC cycles", heapMB, goroutines, gc))
	return nil
}
