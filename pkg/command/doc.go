/*
Package command runs the external programs that back every primitive.

ExecRunner captures stdout and stderr, optionally feeds stdin, records the
duration of each call on metrics.CommandDuration and turns a non-zero exit
into an error wrapping types.ErrPrimitive whose text carries the tool's
stderr.

A Prefix lets the LVM primitives run inside the host namespaces when
converge itself runs in a container:

	command.NewExecRunner([]string{"nsenter", "-m", "-u", "-i", "-n", "-p", "-t", "1"}, 0)

Timeout is zero by default. A hung tool then blocks the reconciliation; that
is inherited from the tools and is only bounded when configured.
*/
package command
