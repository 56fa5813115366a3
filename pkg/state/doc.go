/*
Package state reads state files and applies them.

A state file is a YAML document with an ordered list of states:

	states:
	  - id: announce
	    state: mailman.list_present
	    name: announce
	    owner: jane@example.org
	    members_present: [x@example.org, y@example.org]
	    explicit: true
	  - state: lvm.vg_present
	    name: data
	    devices: /dev/sdb,/dev/sdc

The id defaults to "<state>:<name>". Options that take several values accept
a single string as well; devices are additionally split on commas.

Applier.Apply runs the states in file order with one reconciler.Engine, so
test mode holds for the whole run. A failing state does not stop the states
after it. States of a module whose tools are missing fail without running.
*/
package state
