package git

import (
	"errors"
	"net"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// RemoteFailure says why talking to a remote failed.
type RemoteFailure string

const (
	FailureAuth        RemoteFailure = "auth"
	FailureNotFound    RemoteFailure = "not-found"
	FailureProtocol    RemoteFailure = "unsupported-protocol"
	FailureUnavailable RemoteFailure = "unavailable"
)

// Permanent reports whether retrying cannot change the outcome.
func (f RemoteFailure) Permanent() bool { return f != FailureUnavailable }

// RemoteError is a clone or fetch failure against one remote.
type RemoteError struct {
	Op      string
	URL     string
	Failure RemoteFailure
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Failure == FailureUnavailable {
		return e.Op + " " + e.URL + ": " + e.Err.Error()
	}
	return e.Op + " " + e.URL + " (" + string(e.Failure) + "): " + e.Err.Error()
}

func (e *RemoteError) Unwrap() error { return e.Err }

// RevisionNotFoundError means the remote was reachable but the pinned
// revision does not exist in it.
type RevisionNotFoundError struct {
	URL, Revision string
	Err           error
}

func (e *RevisionNotFoundError) Error() string {
	return "revision " + e.Revision + " not found in " + e.URL + ": " + e.Err.Error()
}

func (e *RevisionNotFoundError) Unwrap() error { return e.Err }

// Messages seen from go-git and git servers for each permanent failure.
var failureMarkers = []struct {
	failure RemoteFailure
	markers []string
}{
	{FailureAuth, []string{"authentication", "auth fail", "invalid username or password", "permission denied", "access denied"}},
	{FailureNotFound, []string{"not found", "repository does not exist", "no such remote", "invalid reference"}},
	{FailureProtocol, []string{"unsupported protocol", "protocol not supported", "unsupported scheme"}},
}

// classifyFailure maps err onto a RemoteFailure. Sentinels from the go-git
// transport package win over message matching.
func classifyFailure(err error) RemoteFailure {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return FailureAuth
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return FailureNotFound
	}
	msg := strings.ToLower(err.Error())
	for _, fm := range failureMarkers {
		for _, m := range fm.markers {
			if strings.Contains(msg, m) {
				return fm.failure
			}
		}
	}
	return FailureUnavailable
}

// classifyRemoteError wraps a clone or fetch failure into a RemoteError.
func classifyRemoteError(op, url string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, URL: url, Failure: classifyFailure(err), Err: err}
}

// isPermanentGitError reports errors that retrying will not fix. Network
// errors other than timeouts are permanent too: a refused connection or an
// unknown host does not heal within a sync's retry window.
func isPermanentGitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.As(err, new(*RevisionNotFoundError)) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Failure.Permanent()
	}
	return classifyFailure(err).Permanent()
}
