// Package storage persists the placement cache. Stores load the whole cache
// at startup and rewrite the whole durable representation on every flush;
// malformed records are skipped rather than failing the load.
package storage
