package geo

import (
	"testing"

	geom "github.com/twpayne/go-geom"
)

func square(t *testing.T, minX, minY, maxX, maxY float64) *geom.Polygon {
	t.Helper()
	p := geom.NewPolygon(geom.XY)
	_, err := p.SetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
	if err != nil {
		t.Fatalf("build polygon: %v", err)
	}
	return p
}

func squareWithHole(t *testing.T) *geom.Polygon {
	t.Helper()
	p := geom.NewPolygon(geom.XY)
	_, err := p.SetCoords([][]geom.Coord{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	})
	if err != nil {
		t.Fatalf("build polygon: %v", err)
	}
	return p
}

func TestPolygonContains(t *testing.T) {
	p := square(t, 0, 0, 10, 10)

	tests := []struct {
		name string
		x, y float64
		want bool
	}{
		{"interior", 5, 5, true},
		{"exterior", 15, 5, false},
		{"on edge", 10, 5, true},
		{"on vertex", 0, 0, true},
		{"just outside", 10.0001, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := polygonContains(p, tt.x, tt.y); got != tt.want {
				t.Errorf("contains(%v,%v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestPolygonContains_Hole(t *testing.T) {
	p := squareWithHole(t)

	if polygonContains(p, 5, 5) {
		t.Error("point inside hole should not be contained")
	}
	if !polygonContains(p, 2, 2) {
		t.Error("point between shell and hole should be contained")
	}
	// Boundary of the hole still intersects the polygon.
	if !polygonContains(p, 4, 5) {
		t.Error("point on hole edge should be contained")
	}
}

func TestEntryContains_BoundsPrune(t *testing.T) {
	e := newEntry("twin", false, []*geom.Polygon{
		square(t, 0, 0, 1, 1),
		square(t, 100, 100, 101, 101),
	})

	if !e.Contains(100.5, 100.5) {
		t.Error("expected containment in second polygon")
	}
	if e.Contains(50, 50) {
		t.Error("point outside every bounding box should fail fast")
	}
}
