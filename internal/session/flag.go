package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const flagTimeout = 2 * time.Second

// Flag binds one named flag of one session. It satisfies the intro player's
// seen-flag contract; store failures are logged and read as unset, so the
// worst case is the intro playing again.
type Flag struct {
	store   Store
	session string
	name    string
	log     zerolog.Logger
}

// NewFlag binds name for sessionID in store.
func NewFlag(store Store, sessionID, name string, log zerolog.Logger) *Flag {
	return &Flag{
		store:   store,
		session: sessionID,
		name:    name,
		log:     log.With().Str("flag", name).Logger(),
	}
}

// Seen reports whether the flag is set.
func (f *Flag) Seen() bool {
	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()
	ok, err := f.store.GetFlag(ctx, f.session, f.name)
	if err != nil {
		f.log.Warn().Err(err).Msg("read session flag")
		return false
	}
	return ok
}

// MarkSeen sets the flag.
func (f *Flag) MarkSeen() {
	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()
	if err := f.store.SetFlag(ctx, f.session, f.name); err != nil {
		f.log.Warn().Err(err).Msg("write session flag")
	}
}
