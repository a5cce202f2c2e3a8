package gesture

import (
	"testing"

	"github.com/mesh-intelligence/pagetree/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestNextFromIdle(t *testing.T) {
	tests := []struct {
		name string
		y    float64
		want Mode
	}{
		{"top of row", 0.0, Sibling},
		{"just above midline", 0.49, Sibling},
		{"at midline", 0.5, Child},
		{"bottom of row", 1.0, Child},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{}.Next(Tick{TargetID: 7, RelativeY: tt.y})
			assert.Equal(t, tt.want, s.Mode)
			assert.Equal(t, int64(7), s.LastTargetID)
		})
	}
}

func TestHysteresisDeadZones(t *testing.T) {
	tests := []struct {
		name string
		ys   []float64
		want Mode
	}{
		{"sibling holds inside dead zone", []float64{0.3, 0.55, 0.6}, Sibling},
		{"sibling flips above 0.6", []float64{0.3, 0.61}, Child},
		{"child holds inside dead zone", []float64{0.7, 0.45, 0.4}, Child},
		{"child flips below 0.4", []float64{0.7, 0.39}, Sibling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Replay(1, false, tt.ys...).Mode)
		})
	}
}

func TestTargetChangeResetsMode(t *testing.T) {
	s := State{}.Next(Tick{TargetID: 1, RelativeY: 0.9})
	assert.Equal(t, Child, s.Mode)

	// 0.45 would keep Child on the same row, but a new row starts from Idle.
	s = s.Next(Tick{TargetID: 2, RelativeY: 0.45})
	assert.Equal(t, Sibling, s.Mode)
	assert.Equal(t, int64(2), s.LastTargetID)
}

func TestForcedSiblingOverridesGeometry(t *testing.T) {
	shop := types.Page{ID: 1, Path: "shop"}
	camera := types.Page{ID: 2, Path: "shop/camera", ParentPath: "shop", ParentID: 1}
	forced := ForcedSibling(camera, shop)
	assert.True(t, forced)

	s := Replay(shop.ID, forced, 0.2, 0.8, 0.99)
	assert.Equal(t, Sibling, s.Mode)

	mode, ok := s.Drop()
	assert.True(t, ok)
	assert.Equal(t, Sibling, mode)
}

func TestForcedSiblingOnlyForDirectChild(t *testing.T) {
	shop := types.Page{ID: 1, Path: "shop"}
	lens := types.Page{ID: 3, Path: "shop/camera/lens", ParentPath: "shop/camera", ParentID: 2}
	assert.False(t, ForcedSibling(lens, shop))
	assert.False(t, ForcedSibling(shop, shop))
}

func TestSweepChangesModeAtMostTwice(t *testing.T) {
	var ys []float64
	for i := 0; i <= 100; i++ {
		ys = append(ys, float64(i)/100)
	}
	for i := 100; i >= 0; i-- {
		ys = append(ys, float64(i)/100)
	}

	var s State
	changes := 0
	prev := Idle
	for i, y := range ys {
		s = s.Next(Tick{TargetID: 9, RelativeY: y})
		if i > 0 && s.Mode != prev {
			changes++
		}
		prev = s.Mode
	}
	assert.LessOrEqual(t, changes, 2)
	assert.Equal(t, Sibling, s.Mode)
}

func TestJitterAroundMidlineDoesNotFlicker(t *testing.T) {
	s := Replay(4, false, 0.48, 0.52, 0.47, 0.55, 0.49, 0.58, 0.51)
	assert.Equal(t, Sibling, s.Mode)

	s = Replay(4, false, 0.52, 0.48, 0.55, 0.42, 0.51, 0.45)
	assert.Equal(t, Child, s.Mode)
}

func TestDropWithoutTicks(t *testing.T) {
	mode, ok := State{}.Drop()
	assert.False(t, ok)
	assert.Equal(t, Idle, mode)
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("child")
	assert.True(t, ok)
	assert.Equal(t, Child, m)
	m, ok = ParseMode("sibling")
	assert.True(t, ok)
	assert.Equal(t, Sibling, m)
	_, ok = ParseMode("above")
	assert.False(t, ok)
	assert.Equal(t, "idle", Idle.String())
}
