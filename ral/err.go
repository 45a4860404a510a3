// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package ral

import (
	"errors"

	"github.com/ezrec/apbral/translate"
)

var f = translate.From

var (
	// Catalog construction errors
	ErrDuplicateName    = errors.New(f("duplicate register name"))
	ErrDuplicateAddress = errors.New(f("duplicate register address"))
	ErrInvalidName      = errors.New(f("register name empty"))
	ErrInvalidWidth     = errors.New(f("register width must be 4 or 8 bytes"))
	ErrFieldInvalid     = errors.New(f("field invalid"))

	// Resolution errors
	ErrNameNotFound      = errors.New(f("register not found"))
	ErrAddressNotFound   = errors.New(f("address not found"))
	ErrInvalidIdentifier = errors.New(f("invalid identifier type"))
	ErrFieldNotFound     = errors.New(f("field not found"))

	// Transaction errors
	ErrValueOutOfRange = errors.New(f("value out of range"))
	ErrNotConnected    = errors.New(f("not connected to a bus driver"))
	ErrDriver          = errors.New(f("bus driver"))
)

// ErrDuplicate reports a catalog entry colliding with an earlier entry.
type ErrDuplicate struct {
	Name    string // Register being added.
	Other   string // Register already holding the name or address.
	Address uint64 // Colliding address, if Kind is ErrDuplicateAddress.
	Kind    error  // ErrDuplicateName or ErrDuplicateAddress.
}

func (err *ErrDuplicate) Error() string {
	if err.Kind == ErrDuplicateAddress {
		return f("register %v: address %v already claimed by %v", err.Name, translate.Hex(err.Address), err.Other)
	}
	return f("register %v: %v", err.Name, err.Kind)
}

func (err *ErrDuplicate) Unwrap() error {
	return err.Kind
}

// ErrEntry reports a malformed catalog entry.
type ErrEntry struct {
	Name string
	Err  error
}

func (err *ErrEntry) Error() string {
	return f("register %q: %v", err.Name, err.Err)
}

func (err *ErrEntry) Unwrap() error {
	return err.Err
}

type ErrName string

func (en ErrName) Error() string {
	return f("register %v not found", string(en))
}

func (en ErrName) Is(err error) bool {
	return err == ErrNameNotFound
}

type ErrAddress uint64

func (ea ErrAddress) Error() string {
	return f("address %v not found in address map", translate.Hex(uint64(ea)))
}

func (ea ErrAddress) Is(err error) bool {
	return err == ErrAddressNotFound
}

// ErrIdentifier reports an identifier that is neither a name nor an address.
type ErrIdentifier struct {
	Identifier any
}

func (err ErrIdentifier) Error() string {
	return f("identifier %#v (%T) must be a register name or address", err.Identifier, err.Identifier)
}

func (err ErrIdentifier) Is(target error) bool {
	return target == ErrInvalidIdentifier
}

// ErrRange reports a value too wide for its destination.
type ErrRange struct {
	Register string
	Value    uint64
	Bits     int
}

func (err ErrRange) Error() string {
	return f("register %v: value %v exceeds %d bits", err.Register, translate.Hex(err.Value), err.Bits)
}

func (err ErrRange) Is(target error) bool {
	return target == ErrValueOutOfRange
}

// DriverError carries a bus driver failure verbatim.
type DriverError struct {
	Address   uint64
	Direction Direction
	Err       error
}

func (err *DriverError) Error() string {
	return f("%v %v at %v: %v", ErrDriver, err.Direction, translate.Hex(err.Address), err.Err)
}

func (err *DriverError) Is(target error) bool {
	return target == ErrDriver
}

func (err *DriverError) Unwrap() error {
	return err.Err
}
