// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package config

import (
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ErrExpression reports an expression that is not a non-negative integer.
type ErrExpression string

func (err ErrExpression) Error() string {
	return f("'%v' is not an unsigned integer expression", string(err))
}

// ErrEquate reports an equate that failed to evaluate.
type ErrEquate struct {
	Name string
	Err  error
}

func (err *ErrEquate) Error() string {
	return f("equate %v: %v", err.Name, err.Err)
}

func (err *ErrEquate) Unwrap() error {
	return err.Err
}

// evaluator evaluates integer expressions over the equates.
type evaluator struct {
	opts   syntax.FileOptions
	equate starlark.StringDict
}

func newEvaluator(equs Equates) (ev *evaluator, err error) {
	ev = &evaluator{
		equate: starlark.StringDict{},
	}

	for _, equ := range equs {
		var value starlark.Value
		value, err = ev.exec(string(equ.Value))
		if err != nil {
			err = &ErrEquate{Name: equ.Name, Err: err}
			return nil, err
		}
		if _, ok := value.(starlark.Int); !ok {
			err = &ErrEquate{Name: equ.Name, Err: ErrExpression(equ.Value)}
			return nil, err
		}
		ev.equate[equ.Name] = value
	}

	ev.equate.Freeze()

	return
}

// exec evaluates an expression to a starlark value.
func (ev *evaluator) exec(expr string) (value starlark.Value, err error) {
	thread := starlark.Thread{Name: "config"}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&ev.opts, &thread, "expr", prog, ev.equate)
	if err != nil {
		return
	}
	value, ok := dict["rc"]
	if !ok {
		err = ErrExpression(expr)
	}
	return
}

// eval evaluates an expression to an unsigned integer. The empty
// expression is zero.
func (ev *evaluator) eval(expr Expr) (value uint64, err error) {
	if strings.TrimSpace(string(expr)) == "" {
		return
	}

	st_rc, err := ev.exec(string(expr))
	if err != nil {
		return
	}

	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrExpression(expr)
		return
	}

	value, ok = st_int.Uint64()
	if !ok {
		err = ErrExpression(expr)
		return
	}

	return
}
