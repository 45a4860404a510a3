// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package ral

import (
	"iter"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ezrec/apbral/internal"
)

// Access widths, in bytes.
const (
	WIDTH_32 = 4
	WIDTH_64 = 8
)

// Field is a named bit range of a register.
type Field struct {
	Name string // Field name, unique within the register.
	Lsb  int    // Least significant bit position.
	Bits int    // Field width in bits.
}

// Mask returns the field mask, in register position.
func (fd Field) Mask() uint64 {
	return fieldMax(fd.Bits) << fd.Lsb
}

// Extract the field value from a register value.
func (fd Field) Extract(value uint64) uint64 {
	return (value >> fd.Lsb) & fieldMax(fd.Bits)
}

// Insert a field value into a register value.
func (fd Field) Insert(value uint64, field uint64) uint64 {
	return (value &^ fd.Mask()) | ((field << fd.Lsb) & fd.Mask())
}

func fieldMax(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

// Entry is a catalog configuration row.
type Entry struct {
	Name    string   // Symbolic register name.
	Address uint64   // Primary address, used for all bus transactions.
	Aliases []uint64 // Additional addresses resolving to this register.
	Width   int      // Access width in bytes (WIDTH_32 or WIDTH_64).
	Reset   uint64   // Reset value of the register.
	Fields  []Field  // Optional bit fields.
}

// Descriptor describes a single register and holds its shadow value.
type Descriptor struct {
	name    string
	address uint64
	aliases []uint64
	width   int
	reset   uint64
	fields  map[string]Field

	shadow atomic.Uint64 // Last written or observed value.
	lock   sync.Mutex    // Held per transaction when Engine.Serialize is set.
}

// Name of the register.
func (desc *Descriptor) Name() string {
	return desc.name
}

// Address is the primary address of the register.
func (desc *Descriptor) Address() uint64 {
	return desc.address
}

// Aliases returns a copy of the alias addresses.
func (desc *Descriptor) Aliases() []uint64 {
	return slices.Clone(desc.aliases)
}

// Addresses iterates over the primary address, then all aliases.
func (desc *Descriptor) Addresses() iter.Seq[uint64] {
	return internal.IterSeqConcat(internal.IterOne(desc.address), slices.Values(desc.aliases))
}

// Width is the access width in bytes.
func (desc *Descriptor) Width() int {
	return desc.width
}

// Bits is the access width in bits.
func (desc *Descriptor) Bits() int {
	return desc.width * 8
}

// Max is the largest value the register can hold.
func (desc *Descriptor) Max() uint64 {
	return fieldMax(desc.Bits())
}

// Reset is the reset value of the register.
func (desc *Descriptor) Reset() uint64 {
	return desc.reset
}

// Shadow is the last written or observed value of the register.
func (desc *Descriptor) Shadow() uint64 {
	return desc.shadow.Load()
}

// Field looks up a bit field by name.
func (desc *Descriptor) Field(name string) (fd Field, err error) {
	fd, ok := desc.fields[name]
	if !ok {
		err = &ErrEntry{Name: desc.name, Err: ErrFieldNotFound}
	}
	return
}

// Fields iterates over the bit fields in ascending bit order.
func (desc *Descriptor) Fields() iter.Seq[Field] {
	fields := slices.SortedFunc(maps.Values(desc.fields), func(a, b Field) int {
		return a.Lsb - b.Lsb
	})
	return slices.Values(fields)
}

// newDescriptor validates an entry.
func newDescriptor(entry Entry) (desc *Descriptor, err error) {
	defer func() {
		if err != nil {
			err = &ErrEntry{Name: entry.Name, Err: err}
			desc = nil
		}
	}()

	if len(entry.Name) == 0 {
		err = ErrInvalidName
		return
	}

	switch entry.Width {
	case WIDTH_32, WIDTH_64:
	default:
		err = ErrInvalidWidth
		return
	}

	desc = &Descriptor{
		name:    entry.Name,
		address: entry.Address,
		aliases: slices.Clone(entry.Aliases),
		width:   entry.Width,
		reset:   entry.Reset,
		fields:  make(map[string]Field, len(entry.Fields)),
	}

	if entry.Reset > desc.Max() {
		err = ErrRange{Register: entry.Name, Value: entry.Reset, Bits: desc.Bits()}
		return
	}

	var used uint64
	for _, fd := range entry.Fields {
		if len(fd.Name) == 0 || fd.Lsb < 0 || fd.Bits <= 0 || fd.Lsb+fd.Bits > desc.Bits() {
			err = ErrFieldInvalid
			return
		}
		_, dup := desc.fields[fd.Name]
		if dup || (used&fd.Mask()) != 0 {
			err = ErrFieldInvalid
			return
		}
		used |= fd.Mask()
		desc.fields[fd.Name] = fd
	}

	desc.shadow.Store(entry.Reset)

	return
}
