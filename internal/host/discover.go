package host

import (
	"time"

	"github.com/mind-engage/coursepack/internal/logger"
)

// Environment is what the page offers at load time. Any field may be
// zero.
type Environment struct {
	Frame     Frame
	Storage   Storage
	Address   string
	Emitter   Emitter
	PackageID string
	Clock     func() time.Time
	Log       *logger.Logger
}

// Discover picks an adapter once at startup: an LMS API in the frame
// chain, then available durable storage, then a bridge emitter, and
// finally the null adapter.
func Discover(env Environment) Adapter {
	log := env.Log
	if log == nil {
		log = logger.Nop()
	}
	if env.Frame != nil {
		if api, ok := FindAPI(env.Frame); ok {
			log.Info("host discovered", "mode", ModeLMS)
			return NewLMSAdapter(api, log)
		}
	}
	if env.Storage != nil && env.Storage.Available() {
		log.Info("host discovered", "mode", ModeStandalone)
		return NewStandaloneAdapter(env.Storage, env.Address, log)
	}
	if env.Emitter != nil {
		log.Info("host discovered", "mode", ModeBridge)
		return NewBridgeAdapter(env.PackageID, env.Emitter, env.Clock, log)
	}
	log.Info("no host found, progress is kept in memory only")
	return NullAdapter{}
}
