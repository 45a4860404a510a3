// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package ral

import (
	"context"
)

// Direction of a bus transaction.
type Direction int

//go:generate go tool stringer -linecomment -type=Direction
const (
	Read  = Direction(0) // read
	Write = Direction(1) // write
)

// BusDriver performs register transactions against a target device.
type BusDriver interface {
	// Transact performs a single transaction of len(buf) bytes at address.
	// For a Write, buf holds the little-endian bytes to send. For a Read,
	// the driver fills buf on success.
	//
	// A nil return is success. Any failure (timeout, error response,
	// malformed response, cancelled ctx) is reported as a non-nil error;
	// a driver never panics across this boundary.
	Transact(ctx context.Context, address uint64, buf []byte, dir Direction) error
}

// BusDriverFunc adapts a function to the BusDriver interface.
type BusDriverFunc func(ctx context.Context, address uint64, buf []byte, dir Direction) error

var _ BusDriver = BusDriverFunc(nil)

// Transact calls fn.
func (fn BusDriverFunc) Transact(ctx context.Context, address uint64, buf []byte, dir Direction) error {
	return fn(ctx, address, buf, dir)
}
