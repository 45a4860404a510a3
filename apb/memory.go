// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package apb provides a loopback model of an APB completer, usable as the
// bus driver of a register engine.
//
// The model keeps no notion of time: every transfer completes immediately
// with either OKAY or SLVERR.
package apb

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"sync"

	"github.com/ezrec/apbral/ral"
	"github.com/ezrec/apbral/translate"
)

var f = translate.From

var (
	// ErrSlaveError is the PSLVERR response.
	ErrSlaveError = errors.New(f("PSLVERR"))
)

// ErrDecode reports a transfer to an address outside every window.
type ErrDecode uint64

func (err ErrDecode) Error() string {
	return f("%v: no completer at %v", ErrSlaveError, translate.Hex(uint64(err)))
}

func (err ErrDecode) Is(target error) bool {
	return target == ErrSlaveError
}

// ErrReadOnly reports a write to a read-only window.
type ErrReadOnly uint64

func (err ErrReadOnly) Error() string {
	return f("%v: %v is read-only", ErrSlaveError, translate.Hex(uint64(err)))
}

func (err ErrReadOnly) Is(target error) bool {
	return target == ErrSlaveError
}

// Window is a decoded address range of the completer.
type Window struct {
	Base     uint64 // First address of the window.
	Size     uint64 // Size of the window, in bytes.
	ReadOnly bool   // If set, writes respond with PSLVERR.
}

// Contains reports whether a transfer of size bytes at address is within
// the window.
func (win Window) Contains(address uint64, size int) bool {
	return address >= win.Base && address-win.Base+uint64(size) <= win.Size
}

// Memory is a loopback completer. Data written to an address is returned
// by later reads of the same address.
type Memory struct {
	Verbose bool     // If set, logs every transfer.
	Windows []Window // Decoded windows. If empty, every address decodes.
	Idle    uint64   // Little-endian read data of never-written addresses.

	Reads  int // Completed read transfers.
	Writes int // Completed write transfers.

	lock   sync.Mutex
	data   map[uint64][]byte
	faults map[uint64][]error
}

var _ ral.BusDriver = (*Memory)(nil)

// Reset clears the memory contents, pending faults and counters.
func (mem *Memory) Reset() {
	mem.lock.Lock()
	defer mem.lock.Unlock()

	mem.data = nil
	mem.faults = nil
	mem.Reads = 0
	mem.Writes = 0
}

// Inject queues an error response for the next transfer at address.
func (mem *Memory) Inject(address uint64, err error) {
	mem.lock.Lock()
	defer mem.lock.Unlock()

	if mem.faults == nil {
		mem.faults = make(map[uint64][]error)
	}
	mem.faults[address] = append(mem.faults[address], err)
}

// Peek returns the data last written at address, bypassing the bus.
func (mem *Memory) Peek(address uint64) (data []byte, ok bool) {
	mem.lock.Lock()
	defer mem.lock.Unlock()

	data, ok = mem.data[address]
	if ok {
		data = append([]byte(nil), data...)
	}
	return
}

// Poke stores data at address, bypassing the bus.
func (mem *Memory) Poke(address uint64, data []byte) {
	mem.lock.Lock()
	defer mem.lock.Unlock()

	mem.store(address, data)
}

func (mem *Memory) store(address uint64, data []byte) {
	if mem.data == nil {
		mem.data = make(map[uint64][]byte)
	}
	mem.data[address] = append([]byte(nil), data...)
}

func (mem *Memory) decode(address uint64, size int) (win Window, ok bool) {
	if len(mem.Windows) == 0 {
		ok = true
		return
	}

	for _, win = range mem.Windows {
		if win.Contains(address, size) {
			ok = true
			return
		}
	}

	return
}

// Transact performs a single transfer.
func (mem *Memory) Transact(ctx context.Context, address uint64, buf []byte, dir ral.Direction) (err error) {
	err = ctx.Err()
	if err != nil {
		return
	}

	mem.lock.Lock()
	defer mem.lock.Unlock()

	defer func() {
		if mem.Verbose {
			if err != nil {
				log.Printf("apb: %v %v: %v", dir, translate.Hex(address), err)
			} else {
				log.Printf("apb: %v %v % x", dir, translate.Hex(address), buf)
			}
		}
	}()

	if faults := mem.faults[address]; len(faults) > 0 {
		err = faults[0]
		mem.faults[address] = faults[1:]
		return
	}

	win, ok := mem.decode(address, len(buf))
	if !ok {
		err = ErrDecode(address)
		return
	}

	switch dir {
	case ral.Read:
		data, ok := mem.data[address]
		if !ok {
			data = binary.LittleEndian.AppendUint64(nil, mem.Idle)
		}
		clear(buf)
		copy(buf, data)
		mem.Reads++
	case ral.Write:
		if win.ReadOnly {
			err = ErrReadOnly(address)
			return
		}
		mem.store(address, buf)
		mem.Writes++
	default:
		err = ErrSlaveError
	}

	return
}
