/*
Package catalog keeps the in-memory view of the files under a source root.

	+-----------+      +-----------+      +-------------+
	|   walk    | ---> |  stat     | ---> |  records    |
	| (1 gorou) |      | (pool)    |      | (by path)   |
	+-----------+      +-----------+      +------+------+
	                                             |
	                                      lazy SHA-256 digest

🎯 Purpose:
- Enumerate files (path, size, mtime, extension) below a root
- Remember each directory's child names so project markers can be seen
- Compute content digests only when something asks for them
- Refresh single paths when the monitor reports a change

⚡ Unreadable paths never abort a scan. They are logged, recorded as
*ReadError values and skipped.
*/
package catalog
