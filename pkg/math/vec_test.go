package math

import (
	"testing"
)

func TestVec3Normalize(t *testing.T) {
	n := Vec3{3, 4, 0}.Normalize()
	if l := n.Length(); l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if z := (Vec3{}).Normalize(); z != (Vec3{}) {
		t.Errorf("zero vector should normalize to zero, got %v", z)
	}
}

func TestVec3Array(t *testing.T) {
	v := V3([3]float64{1, 2, 3})
	if v.Array() != [3]float64{1, 2, 3} {
		t.Errorf("round trip through array failed: %v", v)
	}
}
