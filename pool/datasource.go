package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net/url"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// DSNFunc builds the driver data source name from a URL and credentials.
type DSNFunc func(rawURL, username, password string) string

// UnpooledDataSource opens a new real connection on every Connect.
type UnpooledDataSource struct {
	mu        sync.Mutex
	drv       driver.Driver
	connector driver.Connector
	url       string
	username  string
	password  string
	dsn       DSNFunc
	fixed     bool
}

// NewUnpooledDataSource resolves the registered driver driverName.
func NewUnpooledDataSource(driverName, rawURL, username, password string) (*UnpooledDataSource, error) {
	db, err := sql.Open(driverName, "")
	if err != nil {
		return nil, errors.Wrapf(err, "pool: driver %q", driverName)
	}
	drv := db.Driver()
	_ = db.Close()
	return &UnpooledDataSource{
		drv:      drv,
		url:      rawURL,
		username: username,
		password: password,
		dsn:      URLCredentials,
	}, nil
}

// NewConnectorDataSource opens connections from c. Its URL and credentials
// only contribute to the connection fingerprint.
func NewConnectorDataSource(c driver.Connector) *UnpooledDataSource {
	return &UnpooledDataSource{connector: c, drv: c.Driver(), fixed: true}
}

// SetDSNFunc replaces the data source name builder.
func (ds *UnpooledDataSource) SetDSNFunc(fn DSNFunc) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.dsn = fn
	ds.resetConnector()
}

// SetURL changes the target URL.
func (ds *UnpooledDataSource) SetURL(rawURL string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.url = rawURL
	ds.resetConnector()
}

// SetCredentials changes the credentials used for new connections.
func (ds *UnpooledDataSource) SetCredentials(username, password string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.username, ds.password = username, password
	ds.resetConnector()
}

func (ds *UnpooledDataSource) resetConnector() {
	if !ds.fixed {
		ds.connector = nil
	}
}

// TypeCode fingerprints the URL and credentials.
func (ds *UnpooledDataSource) TypeCode() uint64 {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return xxhash.Sum64String(ds.url + ds.username + ds.password)
}

// Connect opens a new real connection.
func (ds *UnpooledDataSource) Connect(ctx context.Context) (driver.Conn, error) {
	ds.mu.Lock()
	if ds.connector == nil {
		name := ds.url
		if ds.dsn != nil {
			name = ds.dsn(ds.url, ds.username, ds.password)
		}
		if dc, ok := ds.drv.(driver.DriverContext); ok {
			c, err := dc.OpenConnector(name)
			if err != nil {
				ds.mu.Unlock()
				return nil, errors.Wrap(err, "pool: open connector")
			}
			ds.connector = c
		} else {
			ds.connector = dsnConnector{name: name, drv: ds.drv}
		}
	}
	c := ds.connector
	ds.mu.Unlock()

	conn, err := c.Connect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "pool: connect")
	}
	return conn, nil
}

// URLCredentials puts the credentials into the user info of URL style data
// source names and returns anything else unchanged.
func URLCredentials(rawURL, username, password string) string {
	if username == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		return rawURL
	}
	if password == "" {
		u.User = url.User(username)
	} else {
		u.User = url.UserPassword(username, password)
	}
	return u.String()
}

type dsnConnector struct {
	name string
	drv  driver.Driver
}

func (c dsnConnector) Connect(context.Context) (driver.Conn, error) { return c.drv.Open(c.name) }
func (c dsnConnector) Driver() driver.Driver                        { return c.drv }
