// Package growth provides the discrete-time learning-growth simulator.
//
// A population of individuals is advanced through T synchronous steps of an
// asymptotic update toward a mastery ceiling:
//
//	score[t] = score[t-1] + rate(t) * (ceiling - score[t-1])
//
// Treated individuals get a learning-rate boost that decays exponentially
// from t=1. The package defines:
//
//   - [Individual], [Population]: the simulated students
//   - [GeneratePopulation]: seeded population draws (truncated-normal scores)
//   - [EffectiveRate], [UpdateScore], [Clamp]: the update rule
//   - [Simulator]: runs the sweep and emits the long-format [Row] table
//
// # Example
//
//	pop, _ := growth.GeneratePopulation(1000, scoreDist, rateDist, 42)
//	sim := growth.New(growth.DefaultConfig())
//	result, _ := sim.Run(ctx, pop, assignment)
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe: metrics and observers are
// mutated during Run. Use one Simulator per goroutine.
package growth
