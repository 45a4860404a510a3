// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package trace

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ezrec/apbral/apb"
	"github.com/ezrec/apbral/ral"
)

func TestRecorder(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	engine, err := ral.NewEngine([]ral.Entry{
		{Name: "INT_ENABLE", Address: 0x10000003010098, Aliases: []uint64{0x98}, Width: ral.WIDTH_32},
	})
	assert.NoError(err)

	mem := &apb.Memory{}
	stream := &bytes.Buffer{}
	rec := NewRecorder(mem, stream)
	assert.NotEqual(uuid.Nil, rec.Session())
	engine.Connect(rec)

	st := engine.Write(ctx, "INT_ENABLE", 0x1A2B3C4D)
	assert.True(st.Success)

	value, st := engine.Read(ctx, 0x98)
	assert.True(st.Success)
	assert.Equal(uint64(0x1A2B3C4D), value)

	mem.Inject(0x10000003010098, errors.New("PREADY timeout"))
	_, st = engine.Read(ctx, "INT_ENABLE")
	assert.False(st.Success)

	assert.NoError(rec.Err())

	recs, err := ReadAll(stream)
	assert.NoError(err)
	if !assert.Len(recs, 3) {
		return
	}

	for n, r := range recs {
		assert.Equal(rec.Session(), r.Session)
		assert.Equal(uint64(n+1), r.Seq)
		assert.Equal(uint64(0x10000003010098), r.Address)
		assert.False(r.Time.IsZero())
	}

	assert.Equal(ral.Write, recs[0].Direction)
	assert.Equal([]byte{0x4d, 0x3c, 0x2b, 0x1a}, recs[0].Data)
	assert.False(recs[0].Failed())

	assert.Equal(ral.Read, recs[1].Direction)
	assert.Equal([]byte{0x4d, 0x3c, 0x2b, 0x1a}, recs[1].Data)

	assert.True(recs[2].Failed())
	assert.Equal("PREADY timeout", recs[2].Error)
	assert.Nil(recs[2].Data)
	assert.Contains(recs[2].String(), "PREADY timeout")
	assert.Contains(recs[0].String(), "4d 3c 2b 1a")
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRecorder_WriteFailure(t *testing.T) {
	assert := assert.New(t)

	mem := &apb.Memory{}
	rec := NewRecorder(mem, failWriter{})

	// A failed trace never fails the transaction.
	err := rec.Transact(context.Background(), 0x98, []byte{1, 2, 3, 4}, ral.Write)
	assert.NoError(err)
	assert.Error(rec.Err())
	assert.Equal(1, mem.Writes)
}

func TestReader_Corrupt(t *testing.T) {
	assert := assert.New(t)

	recs, err := ReadAll(bytes.NewReader([]byte{0xff, 0xff}))
	assert.Error(err)
	assert.Empty(recs)

	recs, err = ReadAll(&bytes.Buffer{})
	assert.NoError(err)
	assert.Empty(recs)
}
