package telnet

// scanState is the position of the framer inside the telnet byte stream.
type scanState int

const (
	stateNormal scanState = iota
	stateCommand
	stateOption // one option byte after WILL/WONT/DO/DONT
	stateSubneg
)

// Framer assembles complete input lines from raw telnet bytes. It keeps the
// scanner state and the partially assembled line between calls, so the lines
// it produces do not depend on how the stream was split into chunks.
//
// Bytes are decoded as Latin-1: every byte becomes exactly one rune. Only '\n'
// terminates a line; a trailing '\r' is left in the line for the caller.
//
// A Framer is not safe for concurrent use.
type Framer struct {
	state   scanState
	pending []byte // received but not yet scanned
	line    []rune // assembled so far
}

// NewFramer returns an empty framer in the normal state.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends a received chunk to the carry buffer.
func (f *Framer) Feed(chunk []byte) {
	f.pending = append(f.pending, chunk...)
}

// Next scans buffered bytes up to the first line terminator. It returns the
// completed line and true, or "" and false when no terminator has arrived yet.
// Scanned bytes are removed from the buffer either way.
func (f *Framer) Next() (string, bool) {
	for i, b := range f.pending {
		if f.scan(b) {
			line := string(f.line)
			f.line = f.line[:0]
			f.pending = f.pending[i+1:]
			if len(f.pending) == 0 {
				f.pending = nil
			}
			return line, true
		}
	}
	f.pending = f.pending[:0]
	return "", false
}

// Lines feeds a chunk and returns every line it completes, in order.
func (f *Framer) Lines(chunk []byte) []string {
	f.Feed(chunk)
	var lines []string
	for {
		line, ok := f.Next()
		if !ok {
			return lines
		}
		lines = append(lines, line)
	}
}

// Partial returns the text assembled since the last complete line.
func (f *Framer) Partial() string {
	return string(f.line)
}

// scan advances the state machine by one byte and reports whether the byte
// completed a line.
func (f *Framer) scan(b byte) bool {
	switch f.state {
	case stateNormal:
		switch b {
		case IAC:
			f.state = stateCommand
		case LF:
			return true
		case BS:
			if n := len(f.line); n > 0 {
				f.line = f.line[:n-1]
			}
		default:
			f.line = append(f.line, rune(b))
		}
	case stateCommand:
		switch {
		case b == SB:
			f.state = stateSubneg
		case isNegotiation(b):
			f.state = stateOption
		default:
			f.state = stateNormal
		}
	case stateOption:
		f.state = stateNormal
	case stateSubneg:
		if b == SE {
			f.state = stateNormal
		}
	}
	return false
}
