package world

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// ZoneCount is fixed: one zone per robot, left to right along x.
const ZoneCount = 4

// Calibration is the read-only pitch geometry document produced by the
// external pitch-setup tool. JSON documents decode too.
type Calibration struct {
	Pitches []PitchGeometry `json:"pitches" yaml:"pitches"`
}

// PitchGeometry holds integer pixel points, zones ordered left to right.
type PitchGeometry struct {
	Index   int        `json:"index" yaml:"index"`
	Outline [][2]int   `json:"outline" yaml:"outline"`
	Zones   [][][2]int `json:"zones" yaml:"zones"`
}

// LoadCalibration reads a calibration file from disk.
func LoadCalibration(path string) (*Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open calibration: %w", err)
	}
	defer f.Close()
	return DecodeCalibration(f)
}

func DecodeCalibration(r io.Reader) (*Calibration, error) {
	var c Calibration
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode calibration: %w", err)
	}
	if len(c.Pitches) == 0 {
		return nil, ErrEmptyGeometry
	}
	return &c, nil
}

// Pitch returns the geometry for one pitch index.
func (c *Calibration) Pitch(index int) (PitchGeometry, error) {
	for _, p := range c.Pitches {
		if p.Index == index {
			return p, nil
		}
	}
	return PitchGeometry{}, fmt.Errorf("pitch %d: %w", index, ErrUnknownPitch)
}

// Fingerprint hashes every point in document order so a changed calibration
// is visible in the startup log.
func (c *Calibration) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	write := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = d.Write(buf[:])
	}
	for _, p := range c.Pitches {
		write(p.Index)
		for _, pt := range p.Outline {
			write(pt[0])
			write(pt[1])
		}
		for _, z := range p.Zones {
			write(len(z))
			for _, pt := range z {
				write(pt[0])
				write(pt[1])
			}
		}
	}
	return d.Sum64()
}

// Pitch is computed once from calibration and never changes afterwards.
type Pitch struct {
	outline Polygon
	zones   [ZoneCount]Polygon
	min     Coordinate
	max     Coordinate
}

func NewPitch(g PitchGeometry) (*Pitch, error) {
	if len(g.Outline) < 3 {
		return nil, fmt.Errorf("outline has %d points: %w", len(g.Outline), ErrInvalidPitch)
	}
	if len(g.Zones) != ZoneCount {
		return nil, fmt.Errorf("%d zones, want %d: %w", len(g.Zones), ZoneCount, ErrInvalidPitch)
	}
	p := &Pitch{outline: toPolygon(g.Outline)}
	for i, z := range g.Zones {
		if len(z) < 3 {
			return nil, fmt.Errorf("zone %d has %d points: %w", i, len(z), ErrInvalidPitch)
		}
		p.zones[i] = toPolygon(z)
	}
	p.min, p.max = p.outline.Bounds()
	return p, nil
}

func (p *Pitch) Width() float64  { return p.max.X - p.min.X }
func (p *Pitch) Height() float64 { return p.max.Y - p.min.Y }

func (p *Pitch) Outline() Polygon { return p.outline }

func (p *Pitch) Zones() [ZoneCount]Polygon { return p.zones }

func (p *Pitch) Zone(i int) (Polygon, bool) {
	if i < 0 || i >= ZoneCount {
		return nil, false
	}
	return p.zones[i], true
}

// Contains reports whether pt is on the playing surface.
func (p *Pitch) Contains(pt Coordinate) bool {
	return p.outline.Contains(pt)
}

func (p *Pitch) InZone(zone int, pt Coordinate) bool {
	poly, ok := p.Zone(zone)
	return ok && poly.Contains(pt)
}

// goalMouth places a goal at the outer edge of an end zone, facing infield.
func (p *Pitch) goalMouth(zone int) Vector {
	lo, hi := p.zones[zone].Bounds()
	midY := p.min.Y + p.Height()/2
	if zone == 0 {
		v, _ := NewVector(lo.X, midY, 0, 0)
		return v
	}
	v, _ := NewVector(hi.X, midY, math.Pi, 0)
	return v
}

func toPolygon(pts [][2]int) Polygon {
	poly := make(Polygon, len(pts))
	for i, pt := range pts {
		poly[i] = Coordinate{X: float64(pt[0]), Y: float64(pt[1])}
	}
	return poly
}
