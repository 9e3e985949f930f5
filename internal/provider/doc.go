// Package provider adapts text-generation backends to the engine's
// [engine.Generator] contract.
//
// [Simulated] produces deterministic offline content and is the default for
// local runs and tests. [OpenAI] calls any OpenAI-compatible chat completions
// endpoint. [Router] dispatches each turn to the generator registered for the
// provider id the session assigned to the speaker.
//
// [PatternScreener] is the engine's optional content screener.
package provider
