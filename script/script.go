// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package script runs Starlark register sequences against a register
// engine.
//
// Registers are named by string or addressed by integer:
//
//	write("INT_ENABLE", 0x1A2B3C4D)
//	if read(0x98) != 0x1A2B3C4D:
//	    fail("readback mismatch")
//	value, err = try_read(0xFFFFFFFF)
//
// read, write, read_field and write_field fail the script when the
// transaction fails; try_read and try_write return the error text instead.
package script

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/apbral/ral"
	"github.com/ezrec/apbral/translate"
)

var f = translate.From

// ErrValue reports a script value that is not a register value.
type ErrValue string

func (err ErrValue) Error() string {
	return f("%v is not an unsigned register value", string(err))
}

func (err ErrValue) Is(target error) bool {
	return target == ral.ErrValueOutOfRange
}

// Runner executes scripts against an engine.
type Runner struct {
	Engine      *ral.Engine         // Connected engine.
	Output      io.Writer           // Destination of print(), os.Stdout if nil.
	Predeclared starlark.StringDict // Additional predeclared values.
}

// Exec runs a script. src is as for starlark.ExecFile. Cancelling ctx
// cancels the script, and is passed to every bus transaction.
func (run *Runner) Exec(ctx context.Context, filename string, src any) (globals starlark.StringDict, err error) {
	out := run.Output
	if out == nil {
		out = os.Stdout
	}

	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(out, msg)
		},
	}

	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(ctx.Err().Error())
	})
	defer stop()

	predeclared := starlark.StringDict{}
	for name, value := range run.Predeclared {
		predeclared[name] = value
	}
	for name, value := range run.builtins(ctx) {
		predeclared[name] = value
	}

	opts := syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
	}

	return starlark.ExecFileOptions(&opts, thread, filename, src, predeclared)
}

type builtinFunc func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func (run *Runner) builtins(ctx context.Context) starlark.StringDict {
	engine := run.Engine

	funcs := map[string]builtinFunc{
		"read": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id starlark.Value
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &id); err != nil {
				return nil, err
			}
			value, st := engine.Read(ctx, identifier(id))
			if !st.Success {
				return nil, st.Err
			}
			return starlark.MakeUint64(value), nil
		},
		"try_read": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id starlark.Value
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &id); err != nil {
				return nil, err
			}
			value, st := engine.Read(ctx, identifier(id))
			return starlark.Tuple{starlark.MakeUint64(value), errValue(st.Err)}, nil
		},
		"write": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id starlark.Value
			var arg starlark.Int
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &id, &arg); err != nil {
				return nil, err
			}
			value, err := registerValue(arg)
			if err != nil {
				return nil, err
			}
			st := engine.Write(ctx, identifier(id), value)
			if !st.Success {
				return nil, st.Err
			}
			return starlark.None, nil
		},
		"try_write": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id starlark.Value
			var arg starlark.Int
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &id, &arg); err != nil {
				return nil, err
			}
			value, err := registerValue(arg)
			if err != nil {
				return errValue(err), nil
			}
			st := engine.Write(ctx, identifier(id), value)
			return errValue(st.Err), nil
		},
		"read_field": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id starlark.Value
			var field string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &id, &field); err != nil {
				return nil, err
			}
			value, st := engine.ReadField(ctx, identifier(id), field)
			if !st.Success {
				return nil, st.Err
			}
			return starlark.MakeUint64(value), nil
		},
		"write_field": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id starlark.Value
			var field string
			var arg starlark.Int
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &id, &field, &arg); err != nil {
				return nil, err
			}
			value, err := registerValue(arg)
			if err != nil {
				return nil, err
			}
			st := engine.WriteField(ctx, identifier(id), field, value)
			if !st.Success {
				return nil, st.Err
			}
			return starlark.None, nil
		},
		"shadow": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id starlark.Value
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &id); err != nil {
				return nil, err
			}
			value, err := engine.Shadow(identifier(id))
			if err != nil {
				return nil, err
			}
			return starlark.MakeUint64(value), nil
		},
		"registers": func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			var names []starlark.Value
			for name := range engine.Catalog().Names() {
				names = append(names, starlark.String(name))
			}
			return starlark.NewList(names), nil
		},
	}

	dict := starlark.StringDict{}
	for name, fn := range funcs {
		dict[name] = starlark.NewBuiltin(name, fn)
	}
	return dict
}

// identifier converts a script value to a register identifier. Values
// that are neither names nor addresses are passed through, and rejected
// by the engine.
func identifier(id starlark.Value) any {
	switch v := id.(type) {
	case starlark.String:
		return string(v)
	case starlark.Int:
		if addr, ok := v.Uint64(); ok {
			return addr
		}
	}
	return id
}

func registerValue(arg starlark.Int) (value uint64, err error) {
	value, ok := arg.Uint64()
	if !ok {
		err = ErrValue(arg.String())
	}
	return
}

func errValue(err error) starlark.Value {
	if err == nil {
		return starlark.None
	}
	return starlark.String(err.Error())
}
