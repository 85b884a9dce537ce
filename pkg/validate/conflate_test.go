package validate

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		intersection float64
		areaW        float64
		areaP        float64
		want         Status
	}{
		{"same building", 80, 100, 100, StatusDuplicate},
		{"half the size", 40, 50, 100, StatusDuplicate},
		{"double the size", 80, 200, 100, StatusDuplicate},
		{"tiny overlap", 5, 100, 100, StatusOverlapping},
		{"exactly at threshold", 30, 100, 100, StatusOverlapping},
		{"way too small", 40, 10, 100, StatusOverlapping},
		{"way too big", 80, 500, 100, StatusOverlapping},
		{"degenerate existing", 80, 100, 0, StatusOverlapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.intersection, tt.areaW, tt.areaP))
		})
	}
}

// Reversing a pair never changes the verdict: the ratio window [0.5, 2.0]
// is its own reciprocal.
func TestClassifySymmetric(t *testing.T) {
	pairs := []struct{ a, b float64 }{
		{100, 100},
		{50, 100},
		{100, 50},
		{40, 100},
		{100, 39},
		{500, 100},
	}
	for _, p := range pairs {
		inter := math.Min(p.a, p.b) * 0.8
		assert.Equal(t,
			classify(inter, p.a, p.b),
			classify(inter, p.b, p.a),
			"areas %v and %v", p.a, p.b)
	}
}

func TestClassifyTolerance(t *testing.T) {
	// Ratios a hair outside the window still count, within 1e-3.
	assert.Equal(t, StatusDuplicate, classify(100, 2.0005*100, 100))
	assert.Equal(t, StatusDuplicate, classify(100, (0.5-0.0005)*100, 100))
	assert.Equal(t, StatusOverlapping, classify(100, 2.01*100, 100))
}

func TestCornerAngle(t *testing.T) {
	// A right-angle corner, rotated 45 degrees so neither segment is
	// vertical.
	ls := orb.LineString{{0, 0}, {1, 1}, {2, 0}}
	assert.InDelta(t, 90, math.Abs(CornerAngle(ls)), 0.01)

	// A nearly straight run has a shallow angle.
	shallow := orb.LineString{{0, 0}, {1, 0.01}, {2, 0.03}}
	assert.Less(t, math.Abs(CornerAngle(shallow)), 5.0)

	// Too few points.
	assert.Equal(t, float64(-1), CornerAngle(orb.LineString{{0, 0}, {1, 1}}))
}

func TestStatusRecord(t *testing.T) {
	vs := NewStatus("way", 800)
	assert.False(t, vs.HasStatus(StatusDuplicate))
	vs.Add(StatusDuplicate)
	assert.True(t, vs.HasStatus(StatusDuplicate))
	assert.False(t, vs.HasStatus(StatusOverlapping))
}
