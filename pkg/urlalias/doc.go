// Package urlalias provides a reusable URL alias engine mapping human readable,
// multi-language paths onto content locations and arbitrary resources.
//
// Aliases form a tree keyed by link ids. Every record carries its full path as
// a list of PathElement values, one per depth, each holding the segment text
// per language. The Service interface publishes autogenerated aliases for
// locations, creates custom and global aliases, resolves URLs and keeps the
// tree consistent when locations are moved, copied or deleted. Stores (memory,
// Postgres, Redis, Badger) live under the store subpackages.
//
// History
//
// Renaming or moving a location never breaks its old URL. The replaced text is
// kept as a history record under the same parent and still resolves through
// Lookup. A later publish may reclaim a history or virtual slot, stripping the
// record's language and deleting it once no translation remains.
//
// Identifiers
//
// Records are stored under an internal AliasID. The external id returned to
// callers is "<parent>-<md5(lowercase leaf text)>"; it is computed on read.
package urlalias
