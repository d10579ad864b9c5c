// Package model defines the record types shared between the tailing engine
// and the report-server transport.
package model

import (
	"fmt"
	"strings"
)

// TailRequest is one entry of a batched poll request: "give me the bytes of
// Path beyond Pos, on behalf of subscription Id".
type TailRequest struct {
	// Id is the caller-chosen subscription identifier.
	Id string `json:"id"`
	// Path is the logical address of the growing resource on the server.
	Path string `json:"path"`
	// Pos is the last acknowledged byte offset into the resource.
	Pos int64 `json:"pos"`
}

// Mode selects how new bytes are delivered to a sink.
type Mode int

const (
	// ModeAppend delivers each chunk of new bytes as an append.
	ModeAppend Mode = iota
	// ModeReplace delivers the accumulated content as a full replacement.
	ModeReplace
)

func (m Mode) String() string {
	switch m {
	case ModeAppend:
		return "append"
	case ModeReplace:
		return "replace"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as used in config files and flags.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "append":
		return ModeAppend, nil
	case "replace":
		return ModeReplace, nil
	default:
		return ModeAppend, fmt.Errorf("unknown delivery mode %q (supported: append, replace)", s)
	}
}

// CleanPath normalizes a resource path for use in request URLs: trims
// whitespace and leading slashes so paths always resolve relative to the
// server's content root.
func CleanPath(p string) string {
	return strings.TrimLeft(strings.TrimSpace(p), "/")
}
