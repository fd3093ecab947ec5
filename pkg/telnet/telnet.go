// Package telnet frames line-oriented client input out of a raw telnet byte
// stream. Control sequences (IAC commands, option negotiation and
// subnegotiation blocks) are consumed so they never reach command text.
package telnet

// Telnet protocol bytes.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Subnegotiation Begin
	SE   byte = 240 // Subnegotiation End
	NOP  byte = 241

	// OptEcho is the ECHO option; a server that WILLs it suppresses the
	// client's local echo.
	OptEcho byte = 1

	BS byte = 0x08
	LF byte = '\n'
)

// EchoOff asks the client to stop echoing typed input (password prompts).
func EchoOff() []byte {
	return []byte{IAC, WILL, OptEcho}
}

// EchoOn restores local echo on the client.
func EchoOn() []byte {
	return []byte{IAC, WONT, OptEcho}
}

// isNegotiation reports whether cmd is one of WILL, WONT, DO, DONT.
func isNegotiation(cmd byte) bool {
	return cmd >= WILL && cmd <= DONT
}
