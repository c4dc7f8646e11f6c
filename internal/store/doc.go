// Package store is the SQLite-backed bookkeeping for the ask-tell loop:
// which parameter sets are pending, which are leased to a worker, and
// what result each one produced. It also keeps a log of submitted tasks
// keyed by task ID.
//
// The ledger enforces the tell-side contract: telling the same result
// twice is a no-op, telling a different result for a finished trial is a
// conflict. Trials move pending -> leased -> terminal and never back.
//
// All writes go through a single connection (SQLite allows one writer);
// WAL mode keeps readers unblocked during writes.
package store
