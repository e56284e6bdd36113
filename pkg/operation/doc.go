/*
Package operation carries out plans against the filesystem and undoes them.

	+-------------+     +-------------+
	|    Plan     |     |   Journal   |
	| (read only) |     | (append)    |
	+------+------+     +------+------+
	       |                   ^
	+------+-------------------+------+
	|            Executor             |
	|  Apply: in order, journal each  |
	|  Revert: reverse, best effort   |
	+------+--------------------------+
	       |
	+------+------+
	|   status    |
	| (file I/O)  |
	+-------------+

🔄 Apply:
1. Save the plan so the journal knows it
2. For every move entry, move each member and append a journal record
3. Stop at the first failure and leave the rest pending

↩️ Revert:
1. Read the outstanding move records of a plan
2. Move each destination back, newest first
3. Collect failures, keep going, prune empty target directories

⚡ Cancellation is checked between entries, never in the middle of a move.

🔍 Example:

	exec := operation.NewExecutor(mgr, store, operation.WithReporter(mgr))
	summary, err := exec.Apply(ctx, p)
*/
package operation
