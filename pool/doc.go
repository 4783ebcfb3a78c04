// Package pool implements a bounded connection pool over database/sql/driver
// connections.
//
// # Overview
//
// A Pool keeps two lists, active (checked out) and idle, guarded by one mutex.
// Acquire runs a decision loop:
//
//  1. take an idle connection if there is one
//  2. otherwise open a new real connection while fewer than MaxActive are checked out
//  3. otherwise reclaim the oldest active connection once it has been checked out
//     for MaxCheckoutTime, rolling back any transaction left open on it
//  4. otherwise wait up to TimeToWait for a release and start again
//
// Every candidate is validated before it is handed out. A connection that
// fails validation is closed and the loop continues, until more than
// MaxIdle+BadConnectionTolerance bad connections were seen by one acquire.
//
// # Handles
//
// Callers receive a *PooledConn. Releasing or reclaiming a connection moves the
// real connection into a new handle and invalidates the old one, so a stale
// handle fails with ErrConnectionInvalid instead of sharing a connection with
// its new owner.
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	stmt, err := conn.PrepareContext(ctx, "SELECT id FROM users WHERE name = ?")
//
// # Reconfiguration
//
// Setters such as SetMaxActive and SetCredentials validate the new
// configuration and then call ForceCloseAll, so no connection opened under the
// previous settings survives. Close shuts the pool down explicitly.
package pool
