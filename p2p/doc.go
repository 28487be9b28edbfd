/*
Package p2p implements the peer transport of the node.

Outbound requests are described by a RequestHandler and sent to a single peer
by a Client. Peers that cannot be reached or that answer with incompatible
headers are reported to the PeerRegistry and removed from it. Inbound requests
are served by Server.

Two encodings exist for every request: the legacy JSON one under /peer/ and
the protobuf one under /v2/peer/, used for peers whose version supports it.
*/
package p2p
