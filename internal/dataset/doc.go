// Package dataset defines the shared data model of the compound-target pair
// dataset.
//
// # Identity
//
// A PairID is the canonical (compound, target) identity used for mechanism
// lookups. A PairKey adds the target variant (mutation) and is the unit of
// aggregation: exactly one CompoundTargetPair exists per PairKey in a run.
//
//	key := dataset.PairKey{CompoundID: "1", TargetID: "A", Mutation: "V600E"}
//	key.Pair()   // {1 A}
//	key.String() // "1_A_V600E"
//
// # Optional values
//
// Values that may be absent (potency, evidence date, summaries) are carried
// as sql.Null[T]. A zero Valid flag means "undefined", never zero.
//
// # Labels
//
// Label values are ordered by precedence. Rank 0 is the strongest evidence
// (D_DT); NDtc is the weakest.
package dataset
