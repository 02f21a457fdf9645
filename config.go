package main

import (
	flags "github.com/jessevdk/go-flags"
)

type torConfig struct {
	Path     string `long:"path" description:"Path to a tor executable to launch and control"`
	Password string `long:"password" description:"Control port password used for reauthentication"`
}

type config struct {
	ShowVersion bool      `long:"version" description:"Display version information and exit"`
	Debug       bool      `long:"debug" description:"Enable debug logging"`
	DataDir     string    `long:"datadir" description:"Directory holding the identity database" default:"."`
	Listen      string    `long:"listen" description:"Host and port of the status api" default:"localhost:5817"`
	Profiling   string    `long:"profiling" description:"Host and port of the profiling server"`
	Keys        []string  `long:"key" description:"Private key file of a service to track, repeatable"`
	Addresses   []string  `long:"address" description:"Onion address of a service to track, repeatable"`
	Replicas    int       `long:"replicas" description:"Number of descriptor replicas per service" default:"2"`
	Cookie      string    `long:"cookie" description:"Base64 encoded descriptor cookie for client-authorized services"`
	Tor         torConfig `group:"Tor" namespace:"tor"`
}

// loadConfig parses command line options into a config with defaults applied.
func loadConfig() (*config, error) {
	cfg := config{}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
