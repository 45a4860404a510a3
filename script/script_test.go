// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package script

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.starlark.net/starlark"

	"github.com/ezrec/apbral/apb"
	"github.com/ezrec/apbral/ral"
)

func newRunner(t *testing.T) (run *Runner, mem *apb.Memory, out *bytes.Buffer) {
	engine, err := ral.NewEngine([]ral.Entry{
		{Name: "INT_ENABLE", Address: 0x10000003010098, Aliases: []uint64{0x98}, Width: ral.WIDTH_32,
			Fields: []ral.Field{
				{Name: "cmd_timeout", Lsb: 1, Bits: 1},
				{Name: "cmd_data_rdy", Lsb: 8, Bits: 1},
			}},
		{Name: "TIMESTAMP", Address: 0x100000030100a0, Width: ral.WIDTH_64},
	})
	assert.NoError(t, err)

	mem = &apb.Memory{Idle: 0xDEADBEEFC0FFEE}
	engine.Connect(mem)

	out = &bytes.Buffer{}
	run = &Runner{Engine: engine, Output: out}
	return
}

func exec(run *Runner, lines ...string) (starlark.StringDict, error) {
	return run.Exec(context.Background(), "test.star", strings.Join(lines, "\n")+"\n")
}

func TestRunner_ReadWrite(t *testing.T) {
	assert := assert.New(t)

	run, mem, out := newRunner(t)

	globals, err := exec(run,
		`write("INT_ENABLE", 0x1A2B3C4D)`,
		`v = read(0x98)`,
		`print("%x" % v)`,
		`s = shadow("INT_ENABLE")`,
		`t = read("TIMESTAMP")`,
		`names = registers()`,
	)
	assert.NoError(err)
	assert.Equal("1a2b3c4d\n", out.String())
	assert.Equal(starlark.MakeUint64(0x1A2B3C4D), globals["v"])
	assert.Equal(starlark.MakeUint64(0x1A2B3C4D), globals["s"])
	assert.Equal(starlark.MakeUint64(0xDEADBEEFC0FFEE), globals["t"])
	assert.Equal(`["INT_ENABLE", "TIMESTAMP"]`, globals["names"].String())

	data, ok := mem.Peek(0x10000003010098)
	assert.True(ok)
	assert.Equal([]byte{0x4d, 0x3c, 0x2b, 0x1a}, data)
}

func TestRunner_Fields(t *testing.T) {
	assert := assert.New(t)

	run, _, _ := newRunner(t)

	globals, err := exec(run,
		`write("INT_ENABLE", 0)`,
		`write_field("INT_ENABLE", "cmd_data_rdy", 1)`,
		`write_field(0x98, "cmd_timeout", 1)`,
		`v = read("INT_ENABLE")`,
		`f = read_field("INT_ENABLE", "cmd_data_rdy")`,
	)
	assert.NoError(err)
	assert.Equal(starlark.MakeUint64(0x102), globals["v"])
	assert.Equal(starlark.MakeUint64(1), globals["f"])
}

func TestRunner_Errors(t *testing.T) {
	assert := assert.New(t)

	run, mem, _ := newRunner(t)

	table := [](struct {
		line string
		err  error
	}){
		{`read(0xFFFFFFFF)`, ral.ErrAddressNotFound},
		{`read("INT_DISABLE")`, ral.ErrNameNotFound},
		{`read(-1)`, ral.ErrInvalidIdentifier},
		{`read(1.5)`, ral.ErrInvalidIdentifier},
		{`write("INT_ENABLE", 0x100000000)`, ral.ErrValueOutOfRange},
		{`write("INT_ENABLE", -1)`, ral.ErrValueOutOfRange},
		{`write_field("INT_ENABLE", "cmd_timeout", 2)`, ral.ErrValueOutOfRange},
		{`read_field("INT_ENABLE", "resp_err")`, ral.ErrFieldNotFound},
		{`shadow(0x99)`, ral.ErrAddressNotFound},
	}

	for _, entry := range table {
		_, err := exec(run, entry.line)
		assert.ErrorIs(err, entry.err, entry.line)
	}

	assert.Equal(0, mem.Writes)
	assert.Equal(0, mem.Reads)
}

func TestRunner_Try(t *testing.T) {
	assert := assert.New(t)

	run, mem, _ := newRunner(t)

	mem.Inject(0x10000003010098, ral.ErrDriver)

	globals, err := exec(run,
		`v, e = try_read(0xFFFFFFFF)`,
		`ok = try_write("INT_ENABLE", 5)`,
		`bad = try_write("INT_ENABLE", 5)`,
		`wide = try_write("INT_ENABLE", -5)`,
	)
	assert.NoError(err)
	assert.Equal(starlark.MakeUint64(0), globals["v"])
	assert.Contains(globals["e"].String(), "not found")
	// Injected fault fails the first write.
	assert.NotEqual(starlark.None, globals["ok"])
	assert.Equal(starlark.None, globals["bad"])
	assert.NotEqual(starlark.None, globals["wide"])
}

func TestRunner_Cancel(t *testing.T) {
	assert := assert.New(t)

	run, _, _ := newRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := run.Exec(ctx, "loop.star", "while True:\n    read(0x98)\n")
	assert.Error(err)
}

func TestRunner_Predeclared(t *testing.T) {
	assert := assert.New(t)

	run, _, _ := newRunner(t)
	run.Predeclared = starlark.StringDict{
		"INT_ENABLE_OFFSET": starlark.MakeInt(0x98),
	}

	globals, err := exec(run,
		`write(INT_ENABLE_OFFSET, 7)`,
		`v = read("INT_ENABLE")`,
	)
	assert.NoError(err)
	assert.Equal(starlark.MakeUint64(7), globals["v"])
}
