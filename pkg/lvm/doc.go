/*
Package lvm reconciles LVM physical volumes, volume groups and logical
volumes.

Physical volumes are an existence toggle. A volume group that already exists
is checked device by device: a device that is a member is left alone, an
orphaned PV is added with vgextend and re-checked, and a PV owned by another
group fails the state without touching it.

A logical volume with AllowResize and Size is grown when its allocated size
(extents times the group's extent size) is below Size, and the new size must
match exactly afterwards. Sizes are parsed by ParseSize into kB:

	ParseSize("10G") // 10485760

Volumes are never shrunk.

CLI reads pvs, vgs and lvs JSON reports in bytes and runs the mutating tools
through a command.Runner, so a command prefix such as nsenter applies to all
of them.
*/
package lvm
