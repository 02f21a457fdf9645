// Package torctl holds helpers around the Tor control channel.
package torctl

import (
	"time"
)

// DefaultDelay is how long to wait before a reauthentication attempt,
// giving a restarted control channel time to come back.
const DefaultDelay = 10 * time.Second

// AuthenticateFunc authenticates against the control channel, typically a
// bine control connection's Authenticate method.
type AuthenticateFunc func(password string) error

type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

type Config struct {
	Authenticate AuthenticateFunc
	Password     string
	Delay        time.Duration
	Logger       Logger
}

// Reauthenticator retries authentication against the control channel after
// a fixed delay. It is a blocking, single-caller helper.
type Reauthenticator struct {
	authenticate AuthenticateFunc
	password     string
	delay        time.Duration
	log          Logger
}

func New(config *Config) *Reauthenticator {
	reauthenticator := &Reauthenticator{
		authenticate: config.Authenticate,
		password:     config.Password,
		delay:        config.Delay,
		log:          config.Logger,
	}

	if reauthenticator.delay == 0 {
		reauthenticator.delay = DefaultDelay
	}
	if reauthenticator.log == nil {
		reauthenticator.log = noopLogger{}
	}

	return reauthenticator
}

// Reauthenticate waits for the configured delay and then authenticates.
// Failure is logged and swallowed so the calling process keeps running.
func (r *Reauthenticator) Reauthenticate() {
	time.Sleep(r.delay)

	if err := r.authenticate(r.password); err != nil {
		r.log.Errorf("Failed to re-authenticate controller: %v", err)
		return
	}

	r.log.Infof("Re-authenticated controller.")
}
