// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package ral

import (
	"iter"

	"github.com/ezrec/apbral/internal"
)

// Catalog is the immutable set of registers known to an engine.
// The maps are populated once by NewCatalog and only read afterwards, so a
// Catalog may be shared by concurrent callers.
type Catalog struct {
	byName    map[string](*Descriptor)
	byAddress map[uint64](*Descriptor)
}

// NewCatalog builds and validates a catalog from its configuration entries.
// Every name and every address (primary or alias) must be unique.
func NewCatalog(entries []Entry) (cat *Catalog, err error) {
	cat = &Catalog{
		byName:    make(map[string](*Descriptor), len(entries)),
		byAddress: make(map[uint64](*Descriptor), len(entries)),
	}

	for _, entry := range entries {
		var desc *Descriptor
		desc, err = newDescriptor(entry)
		if err != nil {
			return nil, err
		}

		if _, ok := cat.byName[desc.name]; ok {
			err = &ErrDuplicate{Name: desc.name, Other: desc.name, Kind: ErrDuplicateName}
			return nil, err
		}

		for addr := range desc.Addresses() {
			if other, ok := cat.byAddress[addr]; ok {
				err = &ErrDuplicate{Name: desc.name, Other: other.name, Address: addr, Kind: ErrDuplicateAddress}
				return nil, err
			}
			cat.byAddress[addr] = desc
		}

		cat.byName[desc.name] = desc
	}

	return
}

// Len is the number of registers.
func (cat *Catalog) Len() int {
	return len(cat.byName)
}

// Names iterates over the register names in sorted order.
func (cat *Catalog) Names() iter.Seq[string] {
	return internal.IterSorted(cat.byName)
}

// All iterates over the registers, sorted by name.
func (cat *Catalog) All() iter.Seq[*Descriptor] {
	return func(yield func(*Descriptor) bool) {
		for name := range cat.Names() {
			if !yield(cat.byName[name]) {
				return
			}
		}
	}
}

// ResolveName looks up a register by its exact, case-sensitive name.
func (cat *Catalog) ResolveName(name string) (desc *Descriptor, err error) {
	desc, ok := cat.byName[name]
	if !ok {
		err = ErrName(name)
	}
	return
}

// ResolveAddress looks up a register by its primary or any alias address.
func (cat *Catalog) ResolveAddress(addr uint64) (desc *Descriptor, err error) {
	desc, ok := cat.byAddress[addr]
	if !ok {
		err = ErrAddress(addr)
	}
	return
}

// Resolve a register identifier. A string is a register name; any integer
// type is an address. Anything else, including a negative integer, is
// rejected with ErrInvalidIdentifier.
func (cat *Catalog) Resolve(id any) (desc *Descriptor, err error) {
	switch v := id.(type) {
	case string:
		return cat.ResolveName(v)
	case *Descriptor:
		// Only descriptors owned by this catalog are accepted.
		if v != nil && cat.byName[v.name] == v {
			return v, nil
		}
	case uint64:
		return cat.ResolveAddress(v)
	case uint:
		return cat.ResolveAddress(uint64(v))
	case uint32:
		return cat.ResolveAddress(uint64(v))
	case uint16:
		return cat.ResolveAddress(uint64(v))
	case uint8:
		return cat.ResolveAddress(uint64(v))
	case uintptr:
		return cat.ResolveAddress(uint64(v))
	case int:
		if v >= 0 {
			return cat.ResolveAddress(uint64(v))
		}
	case int64:
		if v >= 0 {
			return cat.ResolveAddress(uint64(v))
		}
	case int32:
		if v >= 0 {
			return cat.ResolveAddress(uint64(v))
		}
	case int16:
		if v >= 0 {
			return cat.ResolveAddress(uint64(v))
		}
	case int8:
		if v >= 0 {
			return cat.ResolveAddress(uint64(v))
		}
	}

	err = ErrIdentifier{Identifier: id}
	return
}
