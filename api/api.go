// Package api exposes the tracked services and their derived identifiers
// over a local HTTP status interface.
package api

import (
	"net"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"github.com/the-onion-land/onionidd/iddb"
	"github.com/the-onion-land/onionidd/idlog"
)

// Tracker is the service registry the API reads from.
type Tracker interface {
	Services() ([]*iddb.Service, error)
}

type Config struct {
	Tracker Tracker
	IdLog   *idlog.Log
	Log     Logger
}

type Api struct {
	tracker Tracker
	idLog   *idlog.Log
	router  *mux.Router
	log     Logger
}

func New(config *Config) *Api {
	api := &Api{
		tracker: config.Tracker,
		idLog:   config.IdLog,
		router:  mux.NewRouter(),
	}

	if config.Log != nil {
		api.log = config.Log
	} else {
		api.log = noopLogger{}
	}

	api.router.Handle("/api/v1/services", api.handleGetServices()).Methods(http.MethodGet)
	api.router.Handle("/api/v1/services/{address}", api.handleGetService()).Methods(http.MethodGet)
	api.router.Handle("/api/v1/log", api.handleGetLog()).Methods(http.MethodGet)

	return api
}

func (a *Api) Serve(l net.Listener) error {
	err := http.Serve(l, a.router)
	if err != nil {
		return errors.Errorf("Unable to serve api: %v", err)
	}

	return nil
}
