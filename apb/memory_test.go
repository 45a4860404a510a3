// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package apb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/apbral/ral"
)

func TestMemory_Loopback(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mem := &Memory{}

	err := mem.Transact(ctx, 0x98, []byte{1, 2, 3, 4}, ral.Write)
	assert.NoError(err)

	buf := make([]byte, 4)
	err = mem.Transact(ctx, 0x98, buf, ral.Read)
	assert.NoError(err)
	assert.Equal([]byte{1, 2, 3, 4}, buf)

	assert.Equal(1, mem.Reads)
	assert.Equal(1, mem.Writes)

	data, ok := mem.Peek(0x98)
	assert.True(ok)
	assert.Equal([]byte{1, 2, 3, 4}, data)

	_, ok = mem.Peek(0x9c)
	assert.False(ok)

	mem.Reset()
	assert.Equal(0, mem.Reads)
	_, ok = mem.Peek(0x98)
	assert.False(ok)
}

func TestMemory_Idle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mem := &Memory{Idle: 0xDEADBEEFC0FFEE}

	buf := make([]byte, 8)
	err := mem.Transact(ctx, 0x10, buf, ral.Read)
	assert.NoError(err)
	assert.Equal([]byte{0xee, 0xff, 0xc0, 0xef, 0xbe, 0xad, 0xde, 0x00}, buf)

	buf = make([]byte, 4)
	err = mem.Transact(ctx, 0x10, buf, ral.Read)
	assert.NoError(err)
	assert.Equal([]byte{0xee, 0xff, 0xc0, 0xef}, buf)
}

func TestMemory_Windows(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mem := &Memory{
		Windows: []Window{
			{Base: 0x1000, Size: 0x100},
			{Base: 0x2000, Size: 0x10, ReadOnly: true},
		},
	}

	table := [](struct {
		address uint64
		size    int
		dir     ral.Direction
		err     error
	}){
		{0x1000, 4, ral.Write, nil},
		{0x10fc, 4, ral.Write, nil},
		{0x10fc, 8, ral.Write, ErrDecode(0x10fc)},
		{0x0ffc, 4, ral.Read, ErrDecode(0x0ffc)},
		{0x2000, 4, ral.Read, nil},
		{0x2000, 4, ral.Write, ErrReadOnly(0x2000)},
		{0x3000, 4, ral.Read, ErrDecode(0x3000)},
	}

	for _, entry := range table {
		err := mem.Transact(ctx, entry.address, make([]byte, entry.size), entry.dir)
		if entry.err == nil {
			assert.NoError(err, "%x", entry.address)
			continue
		}
		assert.Equal(entry.err, err, "%x", entry.address)
		assert.ErrorIs(err, ErrSlaveError, "%x", entry.address)
	}
}

func TestMemory_Inject(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mem := &Memory{}
	timeout := errors.New("PREADY timeout")
	mem.Inject(0x98, timeout)

	err := mem.Transact(ctx, 0x98, make([]byte, 4), ral.Write)
	assert.Equal(timeout, err)
	assert.Equal(0, mem.Writes)

	err = mem.Transact(ctx, 0x98, make([]byte, 4), ral.Write)
	assert.NoError(err)
	assert.Equal(1, mem.Writes)
}

func TestMemory_Cancelled(t *testing.T) {
	assert := assert.New(t)

	mem := &Memory{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mem.Transact(ctx, 0x98, make([]byte, 4), ral.Read)
	assert.ErrorIs(err, context.Canceled)
	assert.Equal(0, mem.Reads)
}

func TestMemory_Engine(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	engine, err := ral.NewEngine([]ral.Entry{
		{Name: "INT_ENABLE", Address: 0x10000003010098, Aliases: []uint64{0x98}, Width: ral.WIDTH_32},
		{Name: "ROM_ID", Address: 0x20000000000000, Width: ral.WIDTH_32},
	})
	assert.NoError(err)

	mem := &Memory{
		Windows: []Window{
			{Base: 0x10000003010000, Size: 0x1000},
			{Base: 0x20000000000000, Size: 0x10, ReadOnly: true},
		},
	}
	mem.Poke(0x20000000000000, []byte{0x67, 0x45, 0x23, 0x01})
	engine.Connect(mem)

	st := engine.Write(ctx, "INT_ENABLE", 0x1A2B3C4D)
	assert.True(st.Success)

	value, st := engine.Read(ctx, 0x98)
	assert.True(st.Success)
	assert.Equal(uint64(0x1A2B3C4D), value)

	value, st = engine.Read(ctx, "ROM_ID")
	assert.True(st.Success)
	assert.Equal(uint64(0x01234567), value)

	// The write is refused, but the shadow keeps the attempted value.
	st = engine.Write(ctx, "ROM_ID", 0xffff)
	assert.False(st.Success)
	assert.ErrorIs(st.Err, ral.ErrDriver)
	assert.ErrorIs(st.Err, ErrSlaveError)
	shadow, _ := engine.Shadow("ROM_ID")
	assert.Equal(uint64(0xffff), shadow)

	// Reading back reconciles the shadow.
	value, st = engine.Read(ctx, "ROM_ID")
	assert.True(st.Success)
	assert.Equal(uint64(0x01234567), value)
	shadow, _ = engine.Shadow("ROM_ID")
	assert.Equal(uint64(0x01234567), shadow)
}
