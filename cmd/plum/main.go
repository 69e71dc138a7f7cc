// Plum CLI - builds a bytecode chunk, disassembles it and runs it
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chain/txvm/errors"
	"github.com/tliron/commonlog"

	"github.com/chazu/plum/manifest"
	"github.com/chazu/plum/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the resolved settings: plum.toml values overridden by flags.
type options struct {
	demo     string
	disasm   bool
	lenient  bool
	exec     bool
	verify   bool
	trace    bool
	maxStack int
	listing  string
	name     string
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("plum", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configDir := fs.String("config", ".", "Directory to search upward for plum.toml")
	demoName := fs.String("demo", "jumps", "Demo program to build: "+strings.Join(demoNames(), ", "))
	disasm := fs.Bool("d", false, "Print the disassembly before running")
	lenient := fs.Bool("lenient", false, "Render unknown opcode bytes instead of failing")
	noExec := fs.Bool("no-exec", false, "Do not execute the chunk")
	verify := fs.Bool("verify", false, "Verify the chunk before running (default from plum.toml)")
	trace := fs.Bool("trace", false, "Log every executed instruction")
	listing := fs.String("listing", "", "Write the disassembly as CBOR to this file")
	verbose := fs.Bool("v", false, "Verbose output")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: plum [options]\n\n")
		fmt.Fprintf(stderr, "Builds a demo chunk, optionally disassembles it, and executes it.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  plum -d                  # Disassemble and run the jumps demo\n")
		fmt.Fprintf(stderr, "  plum -demo wide -no-exec -d  # Show the wide constant encoding\n")
		fmt.Fprintf(stderr, "  plum -demo arith -trace -v   # Trace every instruction\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if m == nil {
		m = manifest.Default()
	}

	verbosity := m.Verbosity()
	if *verbose {
		verbosity++
	}
	if *trace {
		// Trace lines are logged at debug level.
		verbosity = max(verbosity, 2)
	}
	var logPath *string
	if p := m.LogPath(); p != "" {
		logPath = &p
	}
	commonlog.Configure(verbosity, logPath)
	log := commonlog.GetLogger("plum.cli")

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts := options{
		demo:     *demoName,
		disasm:   m.Disasm.Enabled || *disasm,
		lenient:  m.Disasm.Lenient || *lenient,
		exec:     !*noExec,
		verify:   m.ShouldVerify(),
		trace:    m.VM.Trace || *trace,
		maxStack: m.VM.MaxStack,
		listing:  *listing,
		name:     m.Project.Name + "/" + *demoName,
	}
	if set["verify"] {
		opts.verify = *verify
	}
	if m.Dir != "" {
		log.Debugf("loaded %s from %s", manifest.FileName, m.Dir)
	}

	if err := execute(opts, stdout, log); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func execute(opts options, stdout io.Writer, log commonlog.Logger) error {
	chunk, err := buildDemo(opts.demo)
	if err != nil {
		return err
	}
	log.Infof("built %s: %d bytes, %d constants", opts.demo, chunk.CodeLen(), chunk.ConstantCount())

	if opts.disasm {
		d := bytecode.NewDisassembler(stdout)
		d.Lenient = opts.lenient
		if err := d.Disassemble(chunk, opts.name); err != nil {
			return err
		}
		fmt.Fprintln(stdout)
	}

	if opts.listing != "" {
		if err := writeListing(chunk, opts); err != nil {
			return err
		}
		log.Infof("wrote listing to %s", opts.listing)
	}

	if !opts.exec {
		return nil
	}

	vm := bytecode.NewVM(chunk)
	vm.SetOutput(stdout)
	vm.SetMaxStack(opts.maxStack)
	vm.Trace = opts.trace
	vm.VerifyBeforeRun = opts.verify
	log.Debugf("executing %s as run %s", opts.demo, vm.RunID())
	return vm.Execute()
}

func writeListing(chunk *bytecode.Chunk, opts options) error {
	l, err := chunk.Listing(opts.lenient)
	if err != nil {
		return err
	}
	l.Name = opts.name
	data, err := bytecode.MarshalListing(l)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.listing, data, 0644); err != nil {
		return errors.Wrapf(err, "write listing %s", opts.listing)
	}
	return nil
}
