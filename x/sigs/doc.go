/*
Package sigs admits co-signatures of pending multisignature transactions.

A signature received from a peer or a client is checked against the pending
transaction and the unconfirmed state of its sender, appended to the
transaction and the readiness of the transaction recomputed. All of this
happens inside a single sequence so that two signatures of the same
transaction are never admitted concurrently. Accepted signatures are then
handed to the relay engine.
*/
package sigs
