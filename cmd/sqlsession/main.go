// Command sqlsession runs statements through a pooled, cached session against
// the database described by a configuration file.
//
// Usage:
//
//	sqlsession --config sqlsession.yaml query "SELECT id, title FROM posts WHERE id = ?" 42
//	sqlsession --config sqlsession.yaml exec "UPDATE posts SET title = ? WHERE id = ?" draft 42
//	sqlsession --config sqlsession.yaml stats
package main

import (
	"os"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
