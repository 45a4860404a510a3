// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package ral

import (
	"context"
	"encoding/binary"
	"log"
)

// Engine translates register accesses into bus transactions and keeps the
// shadow value of every register in its catalog.
//
// An engine has a single logical owner: reads and writes are expected to
// be issued one at a time. Each Read or Write blocks while the bus driver
// completes the transaction.
type Engine struct {
	Verbose   bool // If set, logs every transaction.
	Serialize bool // If set, allows at most one transaction in flight per register.

	catalog *Catalog
	driver  BusDriver
}

// NewEngine builds the register catalog and an unconnected engine for it.
func NewEngine(entries []Entry) (engine *Engine, err error) {
	cat, err := NewCatalog(entries)
	if err != nil {
		return
	}

	engine = NewEngineWithCatalog(cat)
	return
}

// NewEngineWithCatalog creates an unconnected engine over an existing
// catalog. Engines sharing a catalog share its shadow values.
func NewEngineWithCatalog(cat *Catalog) *Engine {
	return &Engine{catalog: cat}
}

// Catalog of the engine.
func (engine *Engine) Catalog() *Catalog {
	return engine.catalog
}

// Connect binds the engine to a bus driver. Must be called before the
// first Read or Write.
func (engine *Engine) Connect(driver BusDriver) {
	engine.driver = driver
}

// Connected reports whether a bus driver is bound.
func (engine *Engine) Connected() bool {
	return engine.driver != nil
}

// Shadow returns the shadow value of a register.
func (engine *Engine) Shadow(id any) (value uint64, err error) {
	desc, err := engine.catalog.Resolve(id)
	if err != nil {
		return
	}

	value = desc.Shadow()
	return
}

// ResetShadows returns every shadow value to its register's reset value.
// No bus transactions are issued.
func (engine *Engine) ResetShadows() {
	for desc := range engine.catalog.All() {
		desc.shadow.Store(desc.reset)
	}
}

func (engine *Engine) resolve(id any) (desc *Descriptor, err error) {
	if engine.driver == nil {
		err = ErrNotConnected
		return
	}

	desc, err = engine.catalog.Resolve(id)
	if err != nil && engine.Verbose {
		log.Printf("ral: %v", err)
	}
	return
}

func (engine *Engine) acquire(desc *Descriptor) (release func()) {
	if !engine.Serialize {
		return func() {}
	}

	desc.lock.Lock()
	return desc.lock.Unlock
}

// Read a register from the device.
//
// On success the shadow value is updated to the value read. On any
// failure the returned value is zero and the shadow value is unchanged.
func (engine *Engine) Read(ctx context.Context, id any) (value uint64, st Status) {
	desc, err := engine.resolve(id)
	if err != nil {
		st = failed(err)
		return
	}

	release := engine.acquire(desc)
	defer release()

	st = Status{Register: desc.name, Address: desc.address}

	buf := make([]byte, desc.width)
	err = engine.driver.Transact(ctx, desc.address, buf, Read)
	if err != nil {
		st.Err = &DriverError{Address: desc.address, Direction: Read, Err: err}
		if engine.Verbose {
			log.Printf("ral: read %v: %v", desc.name, st.Err)
		}
		return
	}

	value = decode(buf)
	desc.shadow.Store(value)

	st.Success = true
	st.Value = value

	if engine.Verbose {
		log.Printf("ral: read %v", st)
	}

	return
}

// Write a value to a register on the device.
//
// Nothing reaches the bus if the register cannot be resolved or the value
// does not fit the register width. Otherwise the shadow value is set to
// value before the transaction is issued, and is kept even if the
// transaction fails; a read reconciles it with the device.
func (engine *Engine) Write(ctx context.Context, id any, value uint64) (st Status) {
	desc, err := engine.resolve(id)
	if err != nil {
		st = failed(err)
		return
	}

	st = Status{Register: desc.name, Value: value}

	if value > desc.Max() {
		st.Err = ErrRange{Register: desc.name, Value: value, Bits: desc.Bits()}
		if engine.Verbose {
			log.Printf("ral: write %v", st.Err)
		}
		return
	}

	release := engine.acquire(desc)
	defer release()

	desc.shadow.Store(value)

	st.Address = desc.address
	err = engine.driver.Transact(ctx, desc.address, encode(value, desc.width), Write)
	if err != nil {
		st.Err = &DriverError{Address: desc.address, Direction: Write, Err: err}
		if engine.Verbose {
			log.Printf("ral: write %v: %v", desc.name, st.Err)
		}
		return
	}

	st.Success = true

	if engine.Verbose {
		log.Printf("ral: write %v", st)
	}

	return
}

// ReadField reads a register from the device and extracts a bit field.
func (engine *Engine) ReadField(ctx context.Context, id any, field string) (value uint64, st Status) {
	desc, fd, err := engine.resolveField(id, field)
	if err != nil {
		st = failed(err)
		return
	}

	reg, st := engine.Read(ctx, desc)
	if st.Success {
		value = fd.Extract(reg)
	}

	return
}

// WriteField updates a bit field of a register. The other bits are taken
// from the shadow value; the device is not read first.
func (engine *Engine) WriteField(ctx context.Context, id any, field string, value uint64) (st Status) {
	desc, fd, err := engine.resolveField(id, field)
	if err != nil {
		st = failed(err)
		return
	}

	if value > fieldMax(fd.Bits) {
		st = Status{
			Register: desc.name,
			Value:    value,
			Err:      ErrRange{Register: desc.name + "." + fd.Name, Value: value, Bits: fd.Bits},
		}
		return
	}

	return engine.Write(ctx, desc, fd.Insert(desc.Shadow(), value))
}

func (engine *Engine) resolveField(id any, field string) (desc *Descriptor, fd Field, err error) {
	desc, err = engine.resolve(id)
	if err != nil {
		return
	}

	fd, err = desc.Field(field)
	return
}

// decode a little-endian register value.
func decode(buf []byte) uint64 {
	var word [8]byte
	copy(word[:], buf)
	return binary.LittleEndian.Uint64(word[:])
}

// encode a register value as width little-endian bytes.
func encode(value uint64, width int) []byte {
	return binary.LittleEndian.AppendUint64(nil, value)[:width]
}
