package factum

import (
	"errors"

	"github.com/mercerlabs/factum/storage"
)

// Client manages database lifecycle on the backend: CreateDatabase
// rejects duplicates, DeleteDatabase and ListDatabases enumerate the
// backend's own namespace, Connect opens a Connection multiplexing
// reads/writes to one named database.
type Client struct {
	store storage.DocStore
}

// NewClient wraps a storage.DocStore as a factum Client. The concrete
// store (e.g. storage.NewBadgerDocStore) is the only backend-specific
// collaborator the rest of the package depends on.
func NewClient(store storage.DocStore) *Client {
	return &Client{store: store}
}

// CreateDatabase creates a new named database, rejecting duplicates.
func (c *Client) CreateDatabase(name string) error {
	Log.Debug().Str("database", name).Msg("creating database")
	err := c.store.CreateDatabase(name)
	if errors.Is(err, storage.ErrDatabaseExists) {
		return &ValidationError{Reason: "database " + name + " already exists"}
	}
	if err != nil {
		return err
	}
	return nil
}

// DeleteDatabase deletes a named database and all of its datoms.
func (c *Client) DeleteDatabase(name string) error {
	Log.Debug().Str("database", name).Msg("deleting database")
	err := c.store.DeleteDatabase(name)
	if errors.Is(err, storage.ErrDatabaseNotFound) {
		return &ValidationError{Reason: "database " + name + " does not exist"}
	}
	return err
}

// ListDatabases returns every known database name.
func (c *Client) ListDatabases() ([]string, error) {
	return c.store.ListDatabases()
}

// Connect opens a Connection to an existing named database. The
// collection is re-verified as reachable on every call, not only at
// CreateDatabase time.
func (c *Client) Connect(name string) (*Connection, error) {
	coll, err := c.store.Open(name)
	if errors.Is(err, storage.ErrDatabaseNotFound) {
		return nil, &ValidationError{Reason: "database " + name + " does not exist"}
	}
	if err != nil {
		return nil, err
	}
	Log.Debug().Str("database", name).Msg("connected")
	return &Connection{name: name, coll: coll}, nil
}

// Close releases every backend resource held by the client.
func (c *Client) Close() error {
	return c.store.Close()
}
