// Package locator resolves external content locators into canonical target
// identifiers. Two submitters pointing at the same content list must resolve
// to the same target, so everything here is pure and deterministic.
package locator

import (
	"errors"
	"regexp"
	"strings"
)

// TargetIDLength is the canonical identifier width: 32 bytes as hex.
const TargetIDLength = 64

// TargetID is a canonical 0x-prefixed, 64-hex-character target identifier.
type TargetID string

// ErrNoTarget signals the locator contains no recognizable target address.
// It is permanent for a given input; callers must not retry.
var ErrNoTarget = errors.New("locator: no target address found")

// Prioritized patterns, first full match wins. A locator of the form
// /list/<addr1>-<addr2> represents a "this content list" triple; the second
// address is the object side and is authoritative. Short addresses are
// testing fixtures and are padded to the canonical width.
var (
	rePairedList = regexp.MustCompile(`/list/(0x[0-9a-fA-F]+)-(0x[0-9a-fA-F]+)(?:[/?#]|$)`)
	reSingleList = regexp.MustCompile(`/list/(0x[0-9a-fA-F]+)(?:[/?#]|$)`)
	reAnyHexRun  = regexp.MustCompile(`0x[0-9a-fA-F]{20,}`)
)

// ResolveTarget parses a content locator and returns the canonical target
// identifier it points at. Resolution is deterministic: the same locator
// always yields the same TargetID.
func ResolveTarget(loc string) (TargetID, error) {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return "", ErrNoTarget
	}

	if m := rePairedList.FindStringSubmatch(loc); m != nil {
		return canonicalize(m[2]), nil
	}
	if m := reSingleList.FindStringSubmatch(loc); m != nil {
		return canonicalize(m[1]), nil
	}

	// Fallback: scan the whole string for 0x-prefixed hex runs. With a single
	// run we take it; with several the second wins, mirroring the paired-list
	// subject-object rule.
	runs := reAnyHexRun.FindAllString(loc, -1)
	switch len(runs) {
	case 0:
		return "", ErrNoTarget
	case 1:
		return canonicalize(runs[0]), nil
	default:
		return canonicalize(runs[1]), nil
	}
}

// canonicalize lowercases the hex digits and right-pads with zero nibbles to
// the canonical 64-character width.
func canonicalize(addr string) TargetID {
	hex := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	if len(hex) > TargetIDLength {
		hex = hex[:TargetIDLength]
	}
	if len(hex) < TargetIDLength {
		hex += strings.Repeat("0", TargetIDLength-len(hex))
	}
	return TargetID("0x" + hex)
}
