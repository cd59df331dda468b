package geo

import geom "github.com/twpayne/go-geom"

type ringLoc int

const (
	locExterior ringLoc = iota
	locBoundary
	locInterior
)

// polygonContains reports whether the point (x, y) lies inside the polygon or
// on its boundary. Points on a hole boundary still count as contained
// ("intersects" semantics, matching the original product behavior).
//
// go-geom supplies the geometry types and flat-coordinate layout but no
// boundary-aware point-in-polygon predicate, so the ray-crossing locator is
// implemented here over its flat coordinates.
func polygonContains(p *geom.Polygon, x, y float64) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	ext := p.LinearRing(0)
	switch locateInRing(ext.FlatCoords(), ext.Stride(), x, y) {
	case locExterior:
		return false
	case locBoundary:
		return true
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		hole := p.LinearRing(i)
		switch locateInRing(hole.FlatCoords(), hole.Stride(), x, y) {
		case locBoundary:
			return true
		case locInterior:
			return false
		}
	}
	return true
}

// locateInRing classifies a point against a linear ring via ray crossing.
// The ring may or may not repeat its first coordinate; both forms work.
func locateInRing(flat []float64, stride int, x, y float64) ringLoc {
	n := len(flat) / stride
	if n < 3 {
		return locExterior
	}
	crossings := 0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		x1, y1 := flat[i*stride], flat[i*stride+1]
		x2, y2 := flat[j*stride], flat[j*stride+1]

		if onSegment(x1, y1, x2, y2, x, y) {
			return locBoundary
		}
		// Count edges crossed by the rightward horizontal ray from the point.
		if (y1 > y) != (y2 > y) {
			xint := x1 + (y-y1)*(x2-x1)/(y2-y1)
			if xint > x {
				crossings++
			}
		}
	}
	if crossings%2 == 1 {
		return locInterior
	}
	return locExterior
}

func onSegment(x1, y1, x2, y2, px, py float64) bool {
	cross := (x2-x1)*(py-y1) - (y2-y1)*(px-x1)
	if cross != 0 {
		return false
	}
	if px < min(x1, x2) || px > max(x1, x2) {
		return false
	}
	if py < min(y1, y2) || py > max(y1, y2) {
		return false
	}
	return true
}
