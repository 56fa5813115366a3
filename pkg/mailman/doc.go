/*
Package mailman reconciles Mailman 2.x mailing lists.

Reconciler.ListPresent makes sure a list exists and then converges, in this
order, its administrator password, its owner set and its membership. Each
attribute is one reconciler.Step, so the pass stops at the first failure and
dry-run reports every planned change without touching the server.

# Attributes

	password          compared by authenticating, set with change_pw
	owners            compared as a case-insensitive set, replaced as a whole
	members_present   subscribed when missing
	members_absent    unsubscribed when present
	explicit          every other subscriber is unsubscribed

Explicit membership needs members_present; without it the state is rejected
before any command runs. An empty members_present with explicit removes all
subscribers.

# Primitives

CLI drives the scripts in Mailman's bin directory (list_lists, newlist,
rmlist, list_members, add_members, remove_members, config_list, change_pw,
dumpdb) through a command.Runner. Owners are written with config_list -i so
Mailman holds the list lock while saving. The stored password is a SHA-1
hex digest read from config.pck with dumpdb.

Addresses are compared after stripping display names and case folding:

	NormalizeAddress("Jane Doe <Jane@Example.org>") == "Jane@Example.org"
*/
package mailman
