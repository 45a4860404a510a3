// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Command ralsh runs Starlark register sequences against an APB loopback
// model described by a YAML register map.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/ezrec/apbral/apb"
	"github.com/ezrec/apbral/config"
	"github.com/ezrec/apbral/ral"
	"github.com/ezrec/apbral/script"
	"github.com/ezrec/apbral/trace"
)

type options struct {
	regmap    string
	tracefile string
	idle      uint64
	serialize bool
	verbose   bool
	list      bool
	scripts   []string
}

func main() {
	var opt options

	flag.StringVar(&opt.regmap, "m", "", ".yaml register map to load")
	flag.StringVar(&opt.tracefile, "t", "", "CBOR transaction trace output")
	flag.Uint64Var(&opt.idle, "idle", 0, "Read data of never-written addresses")
	flag.BoolVar(&opt.serialize, "s", false, "Serialize transactions per register")
	flag.BoolVar(&opt.list, "l", false, "List the registers, do not execute")
	flag.BoolVar(&opt.verbose, "v", false, "Verbose mode")

	flag.Parse()

	if len(opt.regmap) == 0 {
		log.Fatalf("%v: -m register map required", os.Args[0])
	}

	opt.scripts = flag.Args()
	if len(opt.scripts) == 0 {
		opt.scripts = []string{"-"}
	}

	err := ralsh(&opt)
	if err != nil {
		log.Fatal(err)
	}
}

func ralsh(opt *options) (err error) {
	engine, err := config.NewEngine(opt.regmap)
	if err != nil {
		return
	}
	engine.Verbose = opt.verbose
	engine.Serialize = opt.serialize

	if opt.list {
		for desc := range engine.Catalog().All() {
			fmt.Printf("%-48s 0x%016x %d %#x\n", desc.Name(), desc.Address(), desc.Width(), desc.Aliases())
		}
		return
	}

	mem := &apb.Memory{Verbose: opt.verbose, Idle: opt.idle}

	var driver ral.BusDriver = mem
	if len(opt.tracefile) != 0 {
		var ouf *os.File
		ouf, err = os.Create(opt.tracefile)
		if err != nil {
			return
		}
		defer ouf.Close()

		rec := trace.NewRecorder(mem, ouf)
		defer func() {
			if err == nil {
				err = rec.Err()
			}
		}()
		driver = rec
	}

	engine.Connect(driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run := &script.Runner{Engine: engine}

	for _, name := range opt.scripts {
		var src any
		if name == "-" {
			src = os.Stdin
		}
		_, err = run.Exec(ctx, name, src)
		if err != nil {
			return
		}
	}

	return
}
