package tikv

import "github.com/pkg/errors"

// Errors returned by the type contexts. Their messages are already in the form
// a redis client expects, so the reply layer can forward them unchanged.
var (
	ErrWrongType       = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	ErrIndexOutOfRange = errors.New("ERR index out of range")
	ErrNoSuchKey       = errors.New("ERR no such key")
	ErrNotInteger      = errors.New("ERR value is not an integer or out of range")
	ErrNotFloat        = errors.New("ERR value is not a valid float")
	ErrOverflow        = errors.New("ERR increment or decrement would overflow")
	// ErrTxnConflict is returned once every retry of a standalone command hit a write conflict
	ErrTxnConflict = errors.New("ERR transaction conflict, please retry")
	// ErrCorrupted marks a stored key or value that cannot be decoded
	ErrCorrupted = errors.New("ERR internal error: corrupted data")
)

func corrupted(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorrupted, format, args...)
}
