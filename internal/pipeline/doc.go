// Package pipeline builds the labeled compound-target dataset from its
// sources.
//
// Build runs the stages in a fixed order:
//
//	measurements -> aggregate -> mechanisms -> resolve -> backfill ->
//	classify -> enrich -> efficiency -> subsets -> stats
//
// Each stage runs in its own span and records its duration. Only source I/O
// takes the context; the stages themselves are synchronous folds over
// in-memory maps. Check validates a built Result against the dataset
// invariants.
//
// A Result is returned even when Build fails so its Report can be written
// for the failed run.
package pipeline
