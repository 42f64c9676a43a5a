package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBlend_AlphaIdentities(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.7, Blend(0.7, 0.2, 0), "alpha=0 is dense only")
	assert.Equal(t, 0.2, Blend(0.7, 0.2, 1), "alpha=1 is sparse only")

	// Out-of-range inputs are clamped before blending.
	assert.Equal(t, 1.0, Blend(3.0, 0.0, 0))
	assert.Equal(t, 0.0, Blend(-2.0, 0.0, 0))
}

func TestClamp01(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Clamp01(-0.1))
	assert.Equal(t, 1.0, Clamp01(1.1))
	assert.Equal(t, 0.5, Clamp01(0.5))
}

func TestProperty_BlendBoundedAndMonotonicInAlpha(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		dense := rapid.Float64Range(-2, 2).Draw(rt, "dense")
		sparse := rapid.Float64Range(-2, 2).Draw(rt, "sparse")
		a1 := rapid.Float64Range(0, 1).Draw(rt, "a1")
		a2 := rapid.Float64Range(0, 1).Draw(rt, "a2")

		b1 := Blend(dense, sparse, a1)
		if b1 < 0 || b1 > 1 {
			rt.Fatalf("blend out of range: %f", b1)
		}

		// Moving alpha toward the larger clamped signal never moves the
		// blend away from it.
		if a1 > a2 {
			a1, a2 = a2, a1
		}
		lo := Blend(dense, sparse, a1)
		hi := Blend(dense, sparse, a2)
		if Clamp01(sparse) >= Clamp01(dense) && hi < lo-1e-12 {
			rt.Fatalf("blend not monotonic up: alpha %f->%f gave %f->%f", a1, a2, lo, hi)
		}
		if Clamp01(sparse) <= Clamp01(dense) && hi > lo+1e-12 {
			rt.Fatalf("blend not monotonic down: alpha %f->%f gave %f->%f", a1, a2, lo, hi)
		}
	})
}
