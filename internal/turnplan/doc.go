// Package turnplan generates the ordered turn plan for a debate session.
//
// A plan is a pure function of (format, turn count): calling [GeneratePlan]
// twice with the same inputs yields structurally identical plans. The engine
// relies on the plan length being known in advance for progress reporting and
// budget estimation.
//
// # Formats
//
//   - [FormatStandard]: opening pair, constructive pair (turn count >= 8),
//     zero to two rebuttal rounds, closing pair
//   - [FormatOxford]: proposition/opposition speeches with no constructive
//     pair and up to two rebuttal rounds
//   - [FormatLincolnDouglas]: value-focused format with cross-examination
//     turns that flow directly into the next speech
//
// Every format starts with a moderator introduction and ends with a moderator
// summary. Debater turns are separated by moderator transitions except where
// a format's skeleton says otherwise.
//
// # Turn Counts
//
// The turn count names the number of debater turns the caller asked for.
// Counts below a format's threshold fall back to the shortest skeleton
// (opening and closing pairs only). Range checking ([MinTurnCount],
// [MaxTurnCount]) is the caller's job; the generator trusts its input.
package turnplan
