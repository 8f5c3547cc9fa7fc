// Package pointcloud defines the sparse 3D point model used as the map for
// monocular visual odometry, and provides PCD file I/O for it.
//
// The cloud is ordered and append-only: point indices are stable for the
// lifetime of the cloud, which lets callers carry index linkage between a
// model point and a matched 2D feature. After loading, the cloud is treated
// as read-only and is safe for any number of concurrent readers.
package pointcloud

import (
	"github.com/golang/geo/r3"
)

// PointCloud is an ordered, append-only container of 3D points.
type PointCloud struct {
	points []r3.Vector
	meta   MetaData
}

// MetaData tracks the bounding region of the points in the cloud.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// New returns an empty PointCloud.
func New() *PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty PointCloud with capacity for size points.
func NewWithPrealloc(size int) *PointCloud {
	return &PointCloud{points: make([]r3.Vector, 0, size)}
}

// NewFromPoints returns a PointCloud holding a copy of the given points.
func NewFromPoints(pts []r3.Vector) *PointCloud {
	cloud := NewWithPrealloc(len(pts))
	for _, p := range pts {
		cloud.Append(p)
	}
	return cloud
}

// Size returns the number of points in the cloud.
func (cloud *PointCloud) Size() int {
	return len(cloud.points)
}

// MetaData returns the bounding region of the cloud.
func (cloud *PointCloud) MetaData() MetaData {
	return cloud.meta
}

// Append adds a point at the end of the cloud. Indices of previously added
// points never change.
func (cloud *PointCloud) Append(p r3.Vector) {
	if len(cloud.points) == 0 {
		cloud.meta = MetaData{
			MinX: p.X, MaxX: p.X,
			MinY: p.Y, MaxY: p.Y,
			MinZ: p.Z, MaxZ: p.Z,
		}
	} else {
		cloud.meta.merge(p)
	}
	cloud.points = append(cloud.points, p)
}

// At returns the point at index i.
func (cloud *PointCloud) At(i int) r3.Vector {
	return cloud.points[i]
}

// Points returns a copy of the points in index order.
func (cloud *PointCloud) Points() []r3.Vector {
	out := make([]r3.Vector, len(cloud.points))
	copy(out, cloud.points)
	return out
}

// Iterate calls fn for each point in index order. If fn returns false,
// iteration stops.
func (cloud *PointCloud) Iterate(fn func(i int, p r3.Vector) bool) {
	for i, p := range cloud.points {
		if !fn(i, p) {
			return
		}
	}
}

func (meta *MetaData) merge(v r3.Vector) {
	if v.X > meta.MaxX {
		meta.MaxX = v.X
	}
	if v.Y > meta.MaxY {
		meta.MaxY = v.Y
	}
	if v.Z > meta.MaxZ {
		meta.MaxZ = v.Z
	}
	if v.X < meta.MinX {
		meta.MinX = v.X
	}
	if v.Y < meta.MinY {
		meta.MinY = v.Y
	}
	if v.Z < meta.MinZ {
		meta.MinZ = v.Z
	}
}
