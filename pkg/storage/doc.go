/*
Package storage provides the BoltDB-backed run journal.

Every converge apply is saved as one types.Run, serialized as JSON in the
"runs" bucket of <data_dir>/converge.db and keyed by its UUIDv7 run ID.
Because v7 IDs sort by creation time, a reverse cursor walk returns the
newest runs first without a secondary index:

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(10)

BoltDB takes an exclusive file lock, so two concurrent applies on one host
serialize on opening the journal. NewBoltStore gives up after five seconds.
*/
package storage
