/*
Package log provides structured logging for converge using zerolog.

A single package-level Logger is configured once at start through Init and
shared by every package. Child loggers carry context fields:

	log.WithComponent("lvm")              // component=lvm
	log.WithResource("list", "announce")  // kind=list resource=announce
	log.WithRunID(run.ID)                 // run_id=...

Reconciliation results are printed on stdout, so log output defaults to
stderr. Console output is the default; JSONOutput switches to one JSON object
per line for shipping to a collector:

	{"level":"info","kind":"vg","resource":"vg0","device":"/dev/sdb","time":"...","message":"extending volume group"}

Levels follow zerolog: debug for queries and command lines, info for
mutations, warn and error for failures.
*/
package log
