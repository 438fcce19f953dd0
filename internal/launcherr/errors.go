// Package launcherr provides the error taxonomy shared by the launcher packages.
// It lives on its own so pathres, tempenv, spawn and supervisor can classify
// failures without importing each other.
package launcherr

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind classifies a launch failure.
type Kind int

const (
	// KindResolution means the launcher could not locate its own module.
	KindResolution Kind = iota + 1
	// KindDiscovery means the process snapshot could not be taken.
	KindDiscovery
	// KindLock means the launch lock could not be acquired.
	KindLock
	// KindEnvQuery means a well-known folder could not be queried.
	KindEnvQuery
	// KindEnvSet means a temp environment variable could not be set.
	KindEnvSet
	// KindFatalTempSetup means no temp directory could be created.
	KindFatalTempSetup
	// KindTermination is a non-fatal failure to stop a previous instance.
	KindTermination
	// KindSpawn means the OS refused to create the companion process.
	KindSpawn
)

var kindNames = map[Kind]string{
	KindResolution:     "resolution",
	KindDiscovery:      "discovery",
	KindLock:           "lock",
	KindEnvQuery:       "env query",
	KindEnvSet:         "env set",
	KindFatalTempSetup: "temp setup",
	KindTermination:    "termination",
	KindSpawn:          "spawn",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether errors of this kind abort a launch attempt.
func (k Kind) Fatal() bool {
	return k != KindTermination
}

// Error is a classified launcher failure.
type Error struct {
	Kind Kind
	Op   string
	Path string
	// Code is the OS error code when one is known, 0 otherwise.
	Code int
	Err  error
}

// New builds a classified error. The OS code is lifted from err when present.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Code: osCode(err), Err: err}
}

// WithPath sets the path the failure relates to.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

func (e *Error) Error() string {
	msg := "launcher: " + e.Kind.String() + " error"
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is matching.
var (
	ErrResolution     = &Error{Kind: KindResolution}
	ErrDiscovery      = &Error{Kind: KindDiscovery}
	ErrLock           = &Error{Kind: KindLock}
	ErrEnvQuery       = &Error{Kind: KindEnvQuery}
	ErrEnvSet         = &Error{Kind: KindEnvSet}
	ErrFatalTempSetup = &Error{Kind: KindFatalTempSetup}
	ErrTermination    = &Error{Kind: KindTermination}
	ErrSpawn          = &Error{Kind: KindSpawn}
)

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return 0, false
}

// Code returns the OS error code carried by err, or 0.
func Code(err error) int {
	var le *Error
	if errors.As(err, &le) && le.Code != 0 {
		return le.Code
	}
	return osCode(err)
}

func osCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
