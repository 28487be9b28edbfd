/*
Package multisig implements the rules deciding whether a transaction of a
multisignature account collected enough co-signatures, and which public keys
may produce an acceptable co-signature.

IsReady is a pure function. It is computed against the unconfirmed
configuration of the sender, so that a transaction changing that very
configuration is judged against the state the pool believes will exist.

A registration transaction proposes its member keys in the keys group, each
prefixed with a "+" or "-" sigil. The sigil is never part of the key.

	ready = given >= |proposed| + min - |proposed ∩ members|   (multisig account)
	ready = given == |proposed|                                 (plain account)

ReadinessFilter allows other components to observe and override the verdict.
*/
package multisig
