package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30)
	result := m.TransformPoint([3]float64{1, 2, 3})

	expected := [3]float64{11, 22, 33}
	if result != expected {
		t.Errorf("TransformPoint: got %v, want %v", result, expected)
	}
}

func TestTransformPointScale(t *testing.T) {
	m := Scale(2, 2, 2)
	result := m.TransformPoint([3]float64{1, 2, 3})

	expected := [3]float64{2, 4, 6}
	if result != expected {
		t.Errorf("TransformPoint with scale: got %v, want %v", result, expected)
	}
}

func TestFromTRS(t *testing.T) {
	tests := []struct {
		name string
		t    [3]float64
		r    [4]float64
		s    [3]float64
		in   [3]float64
		want [3]float64
	}{
		{"defaults", [3]float64{}, [4]float64{}, [3]float64{}, [3]float64{1, 2, 3}, [3]float64{1, 2, 3}},
		{"translate", [3]float64{1, 0, -1}, [4]float64{0, 0, 0, 1}, [3]float64{1, 1, 1}, [3]float64{1, 1, 1}, [3]float64{2, 1, 0}},
		{"scale then translate", [3]float64{5, 0, 0}, [4]float64{0, 0, 0, 1}, [3]float64{2, 2, 2}, [3]float64{1, 1, 1}, [3]float64{7, 2, 2}},
		// 90 degrees around Y maps +X to -Z
		{"rotate y", [3]float64{}, [4]float64{0, math.Sin(math.Pi / 4), 0, math.Cos(math.Pi / 4)}, [3]float64{1, 1, 1}, [3]float64{1, 0, 0}, [3]float64{0, 0, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromTRS(tt.t, tt.r, tt.s).TransformPoint(tt.in)
			for i := 0; i < 3; i++ {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("component %d: got %v, want %v", i, got, tt.want)
					break
				}
			}
		})
	}
}

func TestTransformNormal(t *testing.T) {
	// Non-uniform scale must not skew normals.
	m := Scale(4, 1, 1)
	n := m.TransformNormal([3]float64{0, 1, 0})
	if math.Abs(n[1]-1) > 1e-9 || math.Abs(n[0]) > 1e-9 {
		t.Errorf("TransformNormal: got %v, want (0, 1, 0)", n)
	}
}

func TestInverse(t *testing.T) {
	m := FromTRS([3]float64{1, 2, 3}, [4]float64{0, 0, 0.3826834, 0.9238795}, [3]float64{2, 3, 4})
	got := m.Mul(m.Inverse())
	id := Identity()
	for i := 0; i < 16; i++ {
		if math.Abs(got[i]-id[i]) > 1e-6 {
			t.Fatalf("M * M^-1 element %d: got %v, want %v", i, got[i], id[i])
		}
	}
}

func TestTranspose(t *testing.T) {
	m := Translate(1, 2, 3).Transpose()
	if m[3] != 1 || m[7] != 2 || m[11] != 3 {
		t.Errorf("Transpose: translation should move to bottom row, got %v", m)
	}
}

func TestIsZero(t *testing.T) {
	if !(Mat4{}).IsZero() {
		t.Error("zero matrix should report IsZero")
	}
	if Identity().IsZero() {
		t.Error("identity should not report IsZero")
	}
}
