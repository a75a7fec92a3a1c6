package pinpoint

import (
	"math"

	"go-gatewatch/pkg/sde"
)

// Distance thresholds in meters for classifying a kill position relative to
// the nearest celestial.
const (
	AtCelestialThreshold   = 10_000        // 10 km, on-grid with the object
	DirectWarpThreshold    = 150_000       // 150 km, a warp landing spot
	NearCelestialThreshold = 1_000_000_000 // within tactical range of the object

	barycentricEpsilon = 0.01
	maxDirectBoxVolume = 1e20
	maxTetraCelestials = 40
)

// Triangulation result types.
const (
	TypeAtCelestial   = "at_celestial"
	TypeDirectWarp    = "direct_warp"
	TypeNearCelestial = "near_celestial"
	TypeDirect        = "direct"
	TypeViaBookspam   = "via_bookspam"
)

// Vec3 is a position in space, in meters.
type Vec3 struct {
	X, Y, Z float64
}

// CelestialRef names a celestial and its distance from the kill position.
type CelestialRef struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Position Vec3    `json:"position"`
}

// Result describes where a kill happened relative to celestial objects.
type Result struct {
	HasTetrahedron        bool           `json:"has_tetrahedron"`
	Points                []CelestialRef `json:"points,omitempty"`
	AtCelestial           bool           `json:"at_celestial"`
	NearestCelestial      *CelestialRef  `json:"nearest_celestial,omitempty"`
	TriangulationPossible bool           `json:"triangulation_possible"`
	TriangulationType     string         `json:"triangulation_type,omitempty"`
}

// Calculate determines where a kill happened relative to the system's
// celestials. A nil position or an empty celestial list yields an empty
// result.
func Calculate(celestials []*sde.Celestial, killPos *Vec3) Result {
	if killPos == nil || (killPos.X == 0 && killPos.Y == 0 && killPos.Z == 0) {
		return Result{}
	}

	var nearest *CelestialRef
	minDist := math.Inf(1)

	for _, cel := range celestials {
		if cel.Name == "" {
			continue
		}
		pos := Vec3{X: cel.X, Y: cel.Y, Z: cel.Z}
		d := distance(pos, *killPos)
		if d < minDist {
			minDist = d
			nearest = &CelestialRef{Name: cel.Name, Distance: d, Position: pos}
		}
	}

	if nearest != nil {
		switch {
		case minDist <= AtCelestialThreshold:
			return Result{
				AtCelestial:           true,
				NearestCelestial:      nearest,
				TriangulationPossible: true,
				TriangulationType:     TypeAtCelestial,
			}
		case minDist <= DirectWarpThreshold:
			return Result{
				NearestCelestial:      nearest,
				TriangulationPossible: true,
				TriangulationType:     TypeDirectWarp,
			}
		case minDist <= NearCelestialThreshold:
			return Result{
				NearestCelestial:      nearest,
				TriangulationPossible: true,
				TriangulationType:     TypeNearCelestial,
			}
		}
	}

	// Off-grid from everything: look for an enclosing tetrahedron of
	// celestials, preferring the smallest containing volume.
	if points, triType, ok := bestTetrahedron(celestials, *killPos); ok {
		return Result{
			HasTetrahedron:        true,
			Points:                points,
			NearestCelestial:      nearest,
			TriangulationPossible: true,
			TriangulationType:     triType,
		}
	}

	return Result{
		NearestCelestial:      nearest,
		TriangulationPossible: nearest != nil && minDist <= NearCelestialThreshold,
	}
}

func bestTetrahedron(celestials []*sde.Celestial, killPos Vec3) ([]CelestialRef, string, bool) {
	valid := make([]*sde.Celestial, 0, len(celestials))
	for _, c := range celestials {
		if c.Name != "" {
			valid = append(valid, c)
		}
	}
	if len(valid) < 4 {
		return nil, "", false
	}
	if len(valid) > maxTetraCelestials {
		valid = valid[:maxTetraCelestials]
	}

	var best []CelestialRef
	minVol := math.Inf(1)
	triType := ""

	n := len(valid)
	for i := 0; i < n-3; i++ {
		for j := i + 1; j < n-2; j++ {
			for k := j + 1; k < n-1; k++ {
				for l := k + 1; l < n; l++ {
					verts := [4]Vec3{
						{valid[i].X, valid[i].Y, valid[i].Z},
						{valid[j].X, valid[j].Y, valid[j].Z},
						{valid[k].X, valid[k].Y, valid[k].Z},
						{valid[l].X, valid[l].Y, valid[l].Z},
					}
					if !inTetrahedron(killPos, verts) {
						continue
					}
					vol := tetraVolume(verts)
					if vol < minVol {
						minVol = vol
						picks := [4]*sde.Celestial{valid[i], valid[j], valid[k], valid[l]}
						best = best[:0]
						for _, v := range picks {
							pos := Vec3{X: v.X, Y: v.Y, Z: v.Z}
							best = append(best, CelestialRef{
								Name:     v.Name,
								Distance: distance(pos, killPos),
								Position: pos,
							})
						}
						if vol < maxDirectBoxVolume {
							triType = TypeDirect
						} else {
							triType = TypeViaBookspam
						}
					}
				}
			}
		}
	}

	if len(best) != 4 {
		return nil, "", false
	}
	return best, triType, true
}

func distance(a, b Vec3) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func subtract(a, b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func dot(a, b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// inTetrahedron checks containment via barycentric coordinates: the four
// sub-volumes must sum to the whole within epsilon.
func inTetrahedron(p Vec3, verts [4]Vec3) bool {
	a, b, c, d := verts[0], verts[1], verts[2], verts[3]

	vab, vac, vad := subtract(b, a), subtract(c, a), subtract(d, a)
	total := math.Abs(dot(cross(vab, vac), vad)) / 6.0
	if total == 0 {
		return false
	}

	vap, vbp, vcp, vdp := subtract(p, a), subtract(p, b), subtract(p, c), subtract(p, d)
	v1 := math.Abs(dot(cross(vbp, vcp), vdp)) / 6.0
	v2 := math.Abs(dot(cross(vap, vcp), vdp)) / 6.0
	v3 := math.Abs(dot(cross(vap, vbp), vdp)) / 6.0
	v4 := math.Abs(dot(cross(vap, vbp), vcp)) / 6.0

	coords := [4]float64{v1 / total, v2 / total, v3 / total, v4 / total}
	sum := (v1 + v2 + v3 + v4) / total

	if math.Abs(sum-1.0) >= barycentricEpsilon {
		return false
	}
	for _, c := range coords {
		if c < -barycentricEpsilon || c > 1+barycentricEpsilon {
			return false
		}
	}
	return true
}

func tetraVolume(verts [4]Vec3) float64 {
	ab := subtract(verts[1], verts[0])
	ac := subtract(verts[2], verts[0])
	ad := subtract(verts[3], verts[0])
	cp := cross(ab, ac)
	return math.Abs(cp.X*ad.X+cp.Y*ad.Y+cp.Z*ad.Z) / 6
}
