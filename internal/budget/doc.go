// Package budget tracks per-session token usage and cost against a token
// ceiling.
//
// Costs come from a static [Pricing] table with separate input and output
// rates per provider. Each completed turn is recorded as a [UsageRecord];
// [SessionUsage] keeps the running totals and the derived remaining budget
// and utilization. Aggregate statistics across sessions are served from a
// [StatsCache] that is invalidated on every write.
package budget
