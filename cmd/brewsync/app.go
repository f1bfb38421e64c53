package main

import (
	"net/http"

	"github.com/brewlog/brewsync/internal/api"
	"github.com/brewlog/brewsync/internal/auth"
	"github.com/brewlog/brewsync/internal/config"
	"github.com/brewlog/brewsync/internal/db"
	"github.com/brewlog/brewsync/internal/netmon"
	"github.com/brewlog/brewsync/internal/store"
	"github.com/brewlog/brewsync/internal/syncer"
)

// app wires the full stack for one command invocation.
type app struct {
	cfg        *config.Config
	database   *db.DB
	store      *store.Store
	tokens     *auth.Manager
	client     *api.Client
	monitor    *netmon.Monitor
	reconciler *syncer.Reconciler
}

func newApp() (*app, error) {
	path := flagConfig
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	st, database, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: api.DefaultTimeout}
	tokens, err := auth.New(cfg.API.BaseURL, httpClient, st)
	if err != nil {
		database.Close()
		return nil, err
	}
	client := api.NewClient(api.NewGateway(cfg.API.BaseURL, httpClient, tokens))

	monitor := netmon.New(cfg.Probe.URL, nil, client.Health,
		cfg.NetworkInterval(), cfg.ServerInterval())

	reconciler, err := syncer.New(st, client, tokens, monitor)
	if err != nil {
		database.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		database:   database,
		store:      st,
		tokens:     tokens,
		client:     client,
		monitor:    monitor,
		reconciler: reconciler,
	}, nil
}

func (a *app) close() {
	a.database.Close()
}
