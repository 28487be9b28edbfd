/*
Package pool holds the transaction registries of the node.

A transaction lives in exactly one of three registries at a time:

	queued       received, not yet checked against the account state
	pending      waiting for co-signatures of a multisignature account
	unconfirmed  applied to the unconfirmed state, eligible for a block

Moving transactions between registries is the job of the pool manager. This
package only guarantees that an entry is shared, never copied: a payload or
transaction mutated through one reference is visible through any other.
*/
package pool
