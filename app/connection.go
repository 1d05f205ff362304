package app

import (
	"fmt"

	"github.com/creativeprojects/mailstate/cfg"
	"github.com/creativeprojects/mailstate/folder"
	"github.com/creativeprojects/mailstate/gateway"
	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/remote"
	"github.com/creativeprojects/mailstate/storage"
	"github.com/creativeprojects/mailstate/storage/local"
	"github.com/creativeprojects/mailstate/storage/mem"
)

// Connection is the transport of an account. Backend and Dispatcher are nil for a remote account.
type Connection struct {
	Transport  gateway.Transport
	Backend    storage.Backend
	Dispatcher *storage.Dispatcher
	close      func() error
}

// verify interface
var (
	_ gateway.Transport = &remote.Client{}
	_ gateway.Transport = &storage.Dispatcher{}
	_ storage.Backend   = &mem.Backend{}
	_ storage.Backend   = &local.BoltStore{}
)

// Open connects to the account. The permanent folders of a local backend are created when missing.
func Open(account cfg.Account, reserved folder.Reserved, logger lib.Logger) (*Connection, error) {
	logger = lib.OrNoLog(logger)
	if account.Type == cfg.Remote {
		client, err := remote.NewClient(remote.Config{
			ServerURL:   account.ServerURL,
			Timeout:     account.Timeout,
			DebugLogger: logger,
		})
		if err != nil {
			return nil, err
		}
		return &Connection{
			Transport: client,
			close: func() error {
				client.Close()
				return nil
			},
		}, nil
	}

	backend, err := OpenBackend(account, logger)
	if err != nil {
		return nil, err
	}
	dispatcher := storage.NewDispatcher(backend, storage.WithReserved(reserved), storage.WithLogger(logger))
	if err := dispatcher.Provision(); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("cannot create permanent folders: %w", err)
	}
	return &Connection{
		Transport:  dispatcher,
		Backend:    backend,
		Dispatcher: dispatcher,
		close:      backend.Close,
	}, nil
}

// OpenBackend opens the storage of a mem or local account
func OpenBackend(account cfg.Account, logger lib.Logger) (storage.Backend, error) {
	switch account.Type {
	case cfg.Memory:
		return mem.NewWithLogger(logger), nil
	case cfg.Local:
		backend, err := local.NewBoltStoreWithLogger(account.File, logger)
		if err != nil {
			return nil, fmt.Errorf("cannot open database %q: %w", account.File, err)
		}
		return backend, nil
	}
	return nil, fmt.Errorf("no storage backend for account type %q", account.Type)
}

func (c *Connection) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}
