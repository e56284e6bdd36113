/*
Package status owns every filesystem mutation shelf makes and reports progress
while it happens.

	            +-------------+
	            |   Status    |
	            |  (Manager)  |
	            +------+------+
	                   |
	      +-----------+-----------+
	      |                       |
	+-----+-----+           +----+-----+
	|   Moves   |           | Progress |
	|   (fs)    |           | (zerolog)|
	+-----------+           +----------+

🎯 Purpose:
- Moves files and directories without ever overwriting a destination
- Falls back to copy + remove when a rename crosses devices
- Resolves symlinked ancestors so the planner can protect the target root
- Prunes directories left empty by a revert
- Reports per-move status and overall progress

⚡ Key Responsibilities:
- FileManager: Exists, Move, MkdirAll, PruneEmptyDirs, RealPath, atomic writes
- StatusReporter: per-path tracking plus Start/Update/Finish progress
- FileFormatter: the emoji messages written to the log

🔍 Example:

	mgr := status.New(zerolog.Ctx(ctx), status.WithCopyFallback(true))

	mgr.StartOperation(ctx, "apply", len(moves))
	for i, mv := range moves {
		if err := mgr.Move(ctx, mv.From, mv.To); err != nil {
			return err
		}
		mgr.UpdateProgress(ctx, i+1)
	}
	mgr.FinishOperation(ctx)
*/
package status
