package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionedRNG_SubsystemsAreIsolated(t *testing.T) {
	// GIVEN two RNGs with the same seed
	p1 := NewPartitionedRNG(42)
	p2 := NewPartitionedRNG(42)

	// WHEN p1 draws from subsystem "x" before "y", and p2 only draws from "y"
	_ = p1.ForSubsystem(SubsystemBackend("x")).Float64()
	y1 := p1.ForSubsystem(SubsystemBackend("y")).Float64()
	y2 := p2.ForSubsystem(SubsystemBackend("y")).Float64()

	// THEN "y" is unaffected by draws on "x"
	assert.Equal(t, y1, y2)
}

func TestPartitionedRNG_CachesInstances(t *testing.T) {
	p := NewPartitionedRNG(1)
	assert.Same(t, p.ForSubsystem("a"), p.ForSubsystem("a"))
	assert.Equal(t, int64(1), p.Seed())
}

func TestPartitionedRNG_DifferentSeedsDiffer(t *testing.T) {
	a := NewPartitionedRNG(1).ForSubsystem("s").Int63()
	b := NewPartitionedRNG(2).ForSubsystem("s").Int63()
	assert.NotEqual(t, a, b)
}
