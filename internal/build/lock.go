package build

import (
	"fmt"

	"github.com/gofrs/flock"

	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
)

func lockPathFor(out string) string { return out + ".lock" }

// acquireLock takes the exclusive run lock of an output directory without
// blocking. The lock file itself is left in place on release.
func acquireLock(out string) (*flock.Flock, error) {
	fl := flock.New(lockPathFor(out))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, ferrors.IOFailure("cannot take output lock").Fatal().WithCause(err).
			WithContext("path", fl.Path()).Build()
	}
	if !ok {
		return nil, ferrors.LockError(fmt.Sprintf("another run holds %s", fl.Path())).
			WithContext("path", fl.Path()).Build()
	}
	return fl, nil
}
