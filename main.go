package main

import (
	"encoding/base64"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cretz/bine/tor"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/the-onion-land/onionidd/api"
	"github.com/the-onion-land/onionidd/iddb"
	"github.com/the-onion-land/onionidd/idlog"
	"github.com/the-onion-land/onionidd/onion"
	"github.com/the-onion-land/onionidd/torctl"
	"github.com/the-onion-land/onionidd/tracker"
	// Blank import to set up profiling HTTP handlers.
	_ "net/http/pprof"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// Date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// onioniddMain is the true entry point for onionidd. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func onioniddMain() error {
	idLog := idlog.New()

	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	log.AddHook(idLog)

	// Load CLI configuration and defaults
	cfg, err := loadConfig()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	if cfg.Profiling != "" {
		go func() {
			log.Infof("Starting profiling server on %v", cfg.Profiling)
			// Redirect the root path
			http.Handle("/", http.RedirectHandler("/debug/pprof", http.StatusSeeOther))
			// All other handlers are registered on DefaultServeMux through the import of pprof
			err := http.ListenAndServe(cfg.Profiling, nil)
			if err != nil {
				log.Errorf("Could not run profiler: %v", err)
			}
		}()
	}

	// onionid.db persistently stores all derived service identity records
	db, err := iddb.Open(cfg.DataDir)
	if err != nil {
		return errors.Errorf("Could not open onionid.db: %v", err)
	}

	log.Infof("Opened onionid.db")

	defer func() {
		err := db.Close()
		if err != nil {
			log.Errorf("Could not close onionid.db: %v", err)
		} else {
			log.Info("Closed onionid.db.")
		}
	}()

	var cookie []byte
	if cfg.Cookie != "" {
		cookie, err = base64.StdEncoding.DecodeString(cfg.Cookie)
		if err != nil {
			return errors.Errorf("Could not decode descriptor cookie: %v", err)
		}
		if len(cookie) != onion.CookieLen {
			return errors.Errorf("Descriptor cookie must be %v bytes, got %v", onion.CookieLen, len(cookie))
		}
	}

	// central subsystem keeping all derived identifiers current
	t := tracker.New(&tracker.Config{
		DB:       db,
		Replicas: cfg.Replicas,
		Cookie:   cookie,
		Logger:   log.New().WithField("system", "tracker"),
	})

	log.Infof("Created tracker.")

	for _, path := range cfg.Keys {
		if err := t.AddKeyFile(path, nil); err != nil {
			return errors.Errorf("Could not load key %v: %v", path, err)
		}
	}

	for _, address := range cfg.Addresses {
		if err := t.AddAddress(address); err != nil {
			return errors.Errorf("Could not track address %v: %v", address, err)
		}
	}

	// optionally start a Tor node for controller reauthentication
	var reauthenticator *torctl.Reauthenticator

	if cfg.Tor.Path != "" {
		node, err := tor.Start(nil, &tor.StartConf{
			ExePath:         cfg.Tor.Path,
			TempDataDirBase: os.TempDir(),
			DebugWriter:     log.New().WithField("system", "tor").WriterLevel(log.DebugLevel),
		})
		if err != nil {
			return errors.Errorf("Could not start tor: %v", err)
		}

		log.Infof("Started Tor.")

		defer func() {
			err := node.Close()
			if err != nil {
				log.Errorf("Could not properly stop Tor: %v", err)
			} else {
				log.Infof("Stopped Tor.")
			}
		}()

		reauthenticator = torctl.New(&torctl.Config{
			Authenticate: node.Control.Authenticate,
			Password:     cfg.Tor.Password,
			Logger:       log.New().WithField("system", "torctl"),
		})
	}

	// create subsystem responsible for the status api
	a := api.New(&api.Config{
		Tracker: t,
		IdLog:   idLog,
		Log:     log.New().WithField("system", "api"),
	})

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.Errorf("Could not listen on %v: %v", cfg.Listen, err)
	}

	go func() {
		err := a.Serve(lis)
		if err != nil {
			log.Errorf("Could not serve api: %v", err)
		}
	}()

	log.Infof("Serving status api on %v", cfg.Listen)

	defer func() {
		err := lis.Close()
		if err != nil {
			log.Errorf("Could not close listener: %v", err)
		}
	}()

	// Handle interrupt signals correctly
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		sig := <-signals
		log.Info(sig)
		log.Info("Received an interrupt, stopping tracker...")
		t.Shutdown()
	}()

	// Re-authenticate the controller on SIGHUP, one attempt at a time
	go func() {
		hangups := make(chan os.Signal, 1)
		signal.Notify(hangups, syscall.SIGHUP)
		for range hangups {
			if reauthenticator == nil {
				log.Warn("No controller available for reauthentication.")
				continue
			}
			log.Info("Received a hangup, re-authenticating controller...")
			reauthenticator.Reauthenticate()
		}
	}()

	// blocks until the tracker is shut down
	err = t.Run()
	if err != nil {
		return errors.Errorf("Failed running tracker: %v", err)
	}

	// finish with no error
	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := onioniddMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			log.WithError(err).Println("Failed running onionidd.")
		}
		os.Exit(1)
	}
}
