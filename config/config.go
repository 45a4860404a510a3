// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package config loads register catalogs from YAML register maps.
//
// Addresses and values are integer expressions evaluated with Starlark,
// and may refer to the equates defined at the top of the map:
//
//	equates:
//	  SMN_BASE: 0x10000003010000
//	base: SMN_BASE
//	registers:
//	  - name: SMN_MST_INT_ENABLE
//	    offset: 0x98            # addr = base + offset, offset is an alias
//	    width: 4
//	    fields:
//	      - {name: cmd_timeout, lsb: 1, bits: 1}
package config

import (
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ezrec/apbral/ral"
	"github.com/ezrec/apbral/translate"
)

var f = translate.From

var (
	ErrAddressMissing = errors.New(f("addr or offset required"))
	ErrNotScalar      = errors.New(f("expected a scalar value"))
	ErrNotMapping     = errors.New(f("expected a mapping"))
)

// ErrConfig locates an error in a register map.
type ErrConfig struct {
	File     string // Source file, if loaded from a file.
	Register string // Register being loaded, if any.
	Err      error
}

func (err *ErrConfig) Error() string {
	switch {
	case err.File != "" && err.Register != "":
		return f("%v: register %v: %v", err.File, err.Register, err.Err)
	case err.File != "":
		return f("%v: %v", err.File, err.Err)
	case err.Register != "":
		return f("register %v: %v", err.Register, err.Err)
	}
	return err.Err.Error()
}

func (err *ErrConfig) Unwrap() error {
	return err.Err
}

// Expr is an integer expression.
type Expr string

// UnmarshalYAML accepts any scalar, keeping its literal text.
func (expr *Expr) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return ErrNotScalar
	}
	*expr = Expr(node.Value)
	return nil
}

// Equate is a named expression.
type Equate struct {
	Name  string
	Value Expr
}

// Equates are evaluated in document order; later equates may refer to
// earlier ones.
type Equates []Equate

// UnmarshalYAML decodes a mapping, preserving its order.
func (equs *Equates) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return ErrNotMapping
	}
	for n := 0; n+1 < len(node.Content); n += 2 {
		key, value := node.Content[n], node.Content[n+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return ErrNotScalar
		}
		*equs = append(*equs, Equate{Name: key.Value, Value: Expr(value.Value)})
	}
	return nil
}

// Field is a bit field of a register.
type Field struct {
	Name string `yaml:"name"`
	Lsb  int    `yaml:"lsb"`
	Bits int    `yaml:"bits"`
}

// Register is a single register map row.
type Register struct {
	Name    string  `yaml:"name"`
	Addr    Expr    `yaml:"addr"`    // Primary address. Defaults to base + offset.
	Offset  Expr    `yaml:"offset"`  // Block offset, resolved as an alias.
	Aliases []Expr  `yaml:"aliases"` // Further alias addresses.
	Width   int     `yaml:"width"`   // Width in bytes, 4 if omitted.
	Reset   Expr    `yaml:"reset"`   // Reset value, 0 if omitted.
	Fields  []Field `yaml:"fields"`
}

// Map is a register map document.
type Map struct {
	Equates   Equates    `yaml:"equates"`
	Base      Expr       `yaml:"base"`
	Registers []Register `yaml:"registers"`
}

// Parse decodes a register map. Unknown keys are rejected.
func Parse(r io.Reader) (rmap *Map, err error) {
	rmap = &Map{}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err = dec.Decode(rmap)
	if errors.Is(err, io.EOF) {
		// An empty document is an empty map.
		err = nil
	}
	if err != nil {
		rmap = nil
	}
	return
}

// Entries evaluates the register map into catalog entries.
func (rmap *Map) Entries() (entries []ral.Entry, err error) {
	ev, err := newEvaluator(rmap.Equates)
	if err != nil {
		return
	}

	base, err := ev.eval(rmap.Base)
	if err != nil {
		return
	}

	for _, reg := range rmap.Registers {
		var entry ral.Entry
		entry, err = reg.entry(ev, base)
		if err != nil {
			err = &ErrConfig{Register: reg.Name, Err: err}
			return
		}
		entries = append(entries, entry)
	}

	return
}

func (reg *Register) entry(ev *evaluator, base uint64) (entry ral.Entry, err error) {
	entry = ral.Entry{
		Name:  reg.Name,
		Width: reg.Width,
	}

	if entry.Width == 0 {
		entry.Width = ral.WIDTH_32
	}

	if reg.Addr == "" && reg.Offset == "" {
		err = ErrAddressMissing
		return
	}

	var offset uint64
	if reg.Offset != "" {
		offset, err = ev.eval(reg.Offset)
		if err != nil {
			return
		}
		entry.Aliases = append(entry.Aliases, offset)
	}

	if reg.Addr != "" {
		entry.Address, err = ev.eval(reg.Addr)
		if err != nil {
			return
		}
	} else {
		entry.Address = base + offset
	}

	for _, alias := range reg.Aliases {
		var addr uint64
		addr, err = ev.eval(alias)
		if err != nil {
			return
		}
		entry.Aliases = append(entry.Aliases, addr)
	}

	entry.Reset, err = ev.eval(reg.Reset)
	if err != nil {
		return
	}

	for _, fd := range reg.Fields {
		entry.Fields = append(entry.Fields, ral.Field{Name: fd.Name, Lsb: fd.Lsb, Bits: fd.Bits})
	}

	return
}

// Load a register map and evaluate it into catalog entries.
func Load(r io.Reader) (entries []ral.Entry, err error) {
	rmap, err := Parse(r)
	if err != nil {
		return
	}

	return rmap.Entries()
}

// LoadFile loads a register map from a file.
func LoadFile(path string) (entries []ral.Entry, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	entries, err = Load(inf)
	if err != nil {
		var cerr *ErrConfig
		if errors.As(err, &cerr) {
			cerr.File = path
		} else {
			err = &ErrConfig{File: path, Err: err}
		}
	}
	return
}

// NewEngine loads a register map file and builds an unconnected engine.
func NewEngine(path string) (engine *ral.Engine, err error) {
	entries, err := LoadFile(path)
	if err != nil {
		return
	}

	engine, err = ral.NewEngine(entries)
	if err != nil {
		err = &ErrConfig{File: path, Err: err}
	}
	return
}
