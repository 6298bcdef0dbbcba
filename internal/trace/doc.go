// Package trace holds the immutable 2D point sequences passed between the
// stages of the trajectory pipeline.
//
// Every stage (seed, noised, refined, final) produces a new Trace value.
// A Trace never exposes its backing slice, so holding one is always safe.
package trace
