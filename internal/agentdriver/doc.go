// Package agentdriver shells out to the real tmux binary to spawn and drive
// one external coding-assistant process per agent handle: a session per
// agent, plain-text keystrokes in, a captured pane buffer out. There is no
// higher-level multiplexer abstraction here by design — the same
// exec-wrapping discipline the VCS adapter uses against git is applied
// directly against tmux.
package agentdriver
