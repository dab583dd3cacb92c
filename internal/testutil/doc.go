// Package testutil provides fixtures and test doubles shared by package
// tests: a loaded sqlite dataset, instrumented executors, and deterministic
// execution id generators.
package testutil
