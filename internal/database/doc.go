/*
Package database is the SQLite asset store behind the thumbnail pipeline.

Each indexed source file is one row in the assets table, carrying its kind,
size and modification time plus the thumbnail cache metadata: whether the
THM/MTH/YEAR tiers are ready and when the LCD artifact was last visited.

# Write transactions

The store holds at most one write transaction. BeginTransaction, Commit,
Rollback and InTransaction are the primitives the txgate package serializes;
while a transaction is open, writes made through the Database run inside it.
Reads always use the connection pool and see committed data only.

The connection uses WAL journaling and a busy timeout so readers are not
blocked by the writer.
*/
package database
