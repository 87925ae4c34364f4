/*
Package gemini implements a distributed cache coherence bus for a
multi-instance application. Each process keeps local in-memory caches of
entities and of many-to-many relations between entity identifiers; this
package keeps those caches approximately consistent across a fleet of
processes by broadcasting invalidation and update events over a shared
pub/sub topic.

The bus does not provide strong consistency, total order across
publishers, or exactly-once delivery. It is a best-effort coherence layer
on top of an authoritative entity store that remains the source of truth;
any cache miss or conflict is expected to be resolved by falling back to
that store, a path this package does not implement.

Use Case

An application using this package has its own local cache of domain
entities (grouped by type) and of relations between entity identifiers
(e.g. a user's group memberships). When a process mutates its local
cache, it notifies a Translator, which decides whether the mutation is
worth broadcasting and, if so, publishes a compact event describing it.
Every other process in the fleet is subscribed to the same topic; an
Applier on each of them decodes incoming events, filters out anything the
process itself originated, and applies the mutation to its own local
cache without writing through to the authoritative store or re-publishing.

Bulk relation mutations that would produce an oversized wire payload are
collapsed into a coarser RESET signal, so that remote peers refresh that
relation from the authoritative store instead of replaying a large
pair-set.
*/
package gemini
