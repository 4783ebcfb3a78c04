// Package executor runs mapped statements for one session.
//
// Every executor owns a session-scoped local cache (L1) keyed by statement id,
// row bounds, SQL text and parameter values. An update, a commit or a rollback
// clears it. Three strategies are available:
//
//   - SimpleExecutor prepares and closes a statement per call
//   - ReuseExecutor keeps prepared statements by SQL text until statements are flushed
//   - BatchExecutor queues consecutive updates and runs them on FlushStatements
//
// CachingExecutor wraps any of them with the namespace cache (L2). Results and
// clears are staged per session and only published on commit:
//
//	tx := transaction.New(p)
//	exec, err := executor.New(executor.DefaultConfig(), executor.TypeSimple, tx)
//	if err != nil {
//		return err
//	}
//	defer exec.Close(ctx, false)
//
//	rows, err := exec.Query(ctx, byID, 42, statement.DefaultRowBounds(), nil)
//
// Result mappers that need related rows issue nested queries through the
// executor found with FromContext. A nested query for a key that is still
// being loaded can be resolved later with DeferLoad.
package executor
