package table

import (
	"errors"
	"regexp"
	"strings"
)

// Domain errors. Handlers at the worker boundary translate these into chat
// messages; they are never allowed to bubble up as a worker fault.
var (
	ErrTableExists  = errors.New("table already exists")
	ErrTableMissing = errors.New("no such table")
	ErrDuplicateKey = errors.New("key already exists")
	ErrKeyMissing   = errors.New("no such key")
	ErrBadName      = errors.New("invalid table name")
)

// Scope identifies the workspace and channel a command originated from.
// Table names are namespaced by it so short names only need to be unique
// within one channel.
type Scope struct {
	TeamDomain string
	ChannelID  string
}

// Match is one lookup hit: the short table name it was found in, plus the
// stored value.
type Match struct {
	Table string
	Value string
}

var identPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// LongName builds the globally unique table identifier
// <team_domain>_<channel_id>_<short>, lower-cased with any characters
// outside [a-z0-9_] folded to underscores. Long names are interpolated into
// DDL, so the result must stay a safe identifier.
func LongName(scope Scope, short string) (string, error) {
	long := sanitize(scope.TeamDomain) + "_" + sanitize(scope.ChannelID) + "_" + sanitize(short)
	if !identPattern.MatchString(long) {
		return "", ErrBadName
	}
	return long, nil
}

// ShortName recovers the user-facing name from a long identifier by
// stripping the team and channel segments.
func ShortName(long string) string {
	parts := strings.SplitN(long, "_", 3)
	if len(parts) < 3 {
		return long
	}
	return parts[2]
}

func sanitize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
