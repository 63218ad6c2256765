package bvh

import "github.com/pkg/errors"

var (
	// ErrLeafPointerOverflow is returned when a leaf pointer does not fit in the 30 bits a packed node holds.
	ErrLeafPointerOverflow = errors.New("bvh: leaf pointer exceeds 30 bits")

	// ErrMalformedBox is returned when an internal node is built from a box with Min > Max.
	ErrMalformedBox = errors.New("bvh: malformed bounding box")

	// ErrCapacityExceeded is returned when a query needs more scratch space than WithScratchLimit allows.
	// The query is aborted; no partial result is returned.
	ErrCapacityExceeded = errors.New("bvh: query scratch capacity exceeded")

	// ErrTooManyLeaves is returned when the input has more distinct points than a leaf pointer can address.
	ErrTooManyLeaves = errors.New("bvh: too many distinct points")

	// ErrPayloadTooLarge is returned when the concatenated payload does not fit the 32-bit boundary table.
	ErrPayloadTooLarge = errors.New("bvh: payload too large")

	// ErrCorruptSnapshot is returned when a snapshot fails its checksum or structural validation.
	ErrCorruptSnapshot = errors.New("bvh: corrupt snapshot")

	// ErrUnknownCompression is returned for a compression mode this package does not implement.
	ErrUnknownCompression = errors.New("bvh: unknown compression")
)
