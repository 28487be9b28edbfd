/*
Package msignode defines the data model shared by the components of a node
admitting multisignature transactions: transactions, accounts with their
multisignature configuration, signature tasks traveling between peers, and the
interfaces of the collaborators the node does not own (signature verification
and account state).

The subpackages build on top of it:

	x/multisig  readiness computation and signature verification rules
	x/sigs      sequenced admission of incoming signatures
	pool        queued, pending and unconfirmed transaction registries
	broadcast   relay limited, squashing broadcast of transactions and signatures
	p2p         peer request/response transport and the inbound peer API
*/
package msignode
