// Package engine opens the kv.Storage selected by configuration.
package engine

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/kv/badgerkv"
	"github.com/tempbottle/tidis/kv/boltkv"
	"github.com/tempbottle/tidis/kv/memkv"
)

// Names of the supported engines
const (
	Memory = "memory"
	Badger = "badger"
	Bolt   = "bolt"
)

// Open creates the storage named by engine, dir is ignored by the memory engine
func Open(engine string, dir string) (kv.Storage, error) {
	switch strings.ToLower(engine) {
	case "", Memory:
		return memkv.New(), nil
	case Badger:
		return badgerkv.Open(dir)
	case Bolt:
		return boltkv.Open(dir)
	default:
		return nil, errors.Errorf("unknown storage engine %q", engine)
	}
}
