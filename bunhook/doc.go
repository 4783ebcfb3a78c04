// Package bunhook keeps namespace caches coherent with writes made through
// github.com/uptrace/bun.
//
//	db := bun.NewDB(sqldb, pgdialect.New())
//	db.AddQueryHook(bunhook.New(registry, bunhook.WithTable("posts", "blog.posts")))
package bunhook
