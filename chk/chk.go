// Package chk provides terse error-check-and-log helpers used throughout the
// relay: `if err = f(); chk.E(err) { return }` logs the error at the named
// level and reports whether it was non-nil, so call sites never need a
// separate log statement next to the check.
package chk

import "grinrelay.dev/grinlog"

// E checks and logs err at error level. Returns true if err != nil.
func E(err error) bool {
	if err != nil {
		grinlog.E.F("%v", err)
		return true
	}
	return false
}

// W checks and logs err at warn level. Returns true if err != nil.
func W(err error) bool {
	if err != nil {
		grinlog.W.F("%v", err)
		return true
	}
	return false
}

// D checks and logs err at debug level. Returns true if err != nil.
func D(err error) bool {
	if err != nil {
		grinlog.D.F("%v", err)
		return true
	}
	return false
}

// T checks and logs err at trace level. Returns true if err != nil.
func T(err error) bool {
	if err != nil {
		grinlog.T.F("%v", err)
		return true
	}
	return false
}
