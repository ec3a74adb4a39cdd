// Command rvtool is the CLI driver for the RISC-V toolchain: assemble,
// build, link, run/emulate, and the object-file inspection trio
// (readelf, hexdump, ascii). It owns the one "last error" boundary the
// inner packages are deliberately free of: asm and vm return structured
// error values, and only this package funnels them into a diagnostic
// line and an exit code.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lookbusy1344/rv32toolchain/asm"
	"github.com/lookbusy1344/rv32toolchain/config"
	"github.com/lookbusy1344/rv32toolchain/internal/rvlog"
	"github.com/lookbusy1344/rv32toolchain/linker"
	"github.com/lookbusy1344/rv32toolchain/memmap"
	"github.com/lookbusy1344/rv32toolchain/objfile"
	"github.com/lookbusy1344/rv32toolchain/tools"
	"github.com/lookbusy1344/rv32toolchain/vm"
	"github.com/lookbusy1344/rv32toolchain/vm/callsan"
	"github.com/lookbusy1344/rv32toolchain/vm/device"
)

var (
	flagAssemble bool
	flagBuild    bool
	flagRun      bool
	flagEmulate  bool
	flagReadelf  bool
	flagHexdump  bool
	flagAscii    bool
	flagLink     bool

	flagOutput    string
	flagSanitize  bool
	flagVerbose   bool
	flagMaxCycles uint64
	flagConfig    string
	flagTrace     bool
)

func main() {
	root := &cobra.Command{
		Use:          "rvtool [flags] FILE...",
		Short:        "Assembler, linker, and interpreter for the RV32I+M toolchain",
		SilenceUsage: true,
		RunE:         run,
	}

	flags := root.Flags()
	flags.BoolVar(&flagAssemble, "assemble", false, "assemble FILE into a relocatable object, allowing extern references")
	flags.BoolVar(&flagBuild, "build", false, "assemble FILE into a standalone executable")
	flags.BoolVar(&flagRun, "run", false, "load an already-linked executable FILE and run it")
	flags.BoolVar(&flagEmulate, "emulate", false, "assemble FILE and run it immediately")
	flags.BoolVar(&flagReadelf, "readelf", false, "print ELF header, section, and program header details for FILE")
	flags.BoolVar(&flagHexdump, "hexdump", false, "print a hex/ASCII dump of FILE")
	flags.BoolVar(&flagAscii, "ascii", false, "print an ASCII cell table of FILE")
	flags.BoolVar(&flagLink, "link", false, "link the given relocatable objects into one executable")

	flags.StringVarP(&flagOutput, "output", "o", "", "output file path (default: derived from the first input)")
	flags.BoolVar(&flagSanitize, "sanitize", false, "enable the calling-convention sanitizer during run/emulate")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "raise log verbosity to debug")
	flags.Uint64Var(&flagMaxCycles, "max-cycles", 0, "interpreter step budget (0: use config default)")
	flags.StringVar(&flagConfig, "config", "", "path to a TOML config file (default: platform config dir)")
	flags.BoolVar(&flagTrace, "trace", false, "emit a per-instruction PC and cycle-count trace to stderr")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := rvlog.New(os.Stderr, level)

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	maxCycles := cfg.Execution.MaxCycles
	if flagMaxCycles != 0 {
		maxCycles = flagMaxCycles
	}

	modes := 0
	for _, b := range []bool{flagAssemble, flagBuild, flagRun, flagEmulate, flagReadelf, flagHexdump, flagAscii, flagLink} {
		if b {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("exactly one of --assemble, --build, --run, --emulate, --readelf, --hexdump, --ascii, --link is required")
	}

	switch {
	case flagAssemble:
		return cmdAssemble(args, true)
	case flagBuild:
		return cmdAssemble(args, false)
	case flagRun:
		return cmdLoadAndRun(args, log, maxCycles)
	case flagEmulate:
		return cmdAssembleAndRun(args, log, maxCycles)
	case flagReadelf:
		return cmdReadelf(args)
	case flagHexdump:
		return cmdHexdump(args)
	case flagAscii:
		return cmdAscii(args)
	case flagLink:
		return cmdLink(args)
	}
	return nil
}

func loadConfig(log *slog.Logger) (*config.Config, error) {
	if flagConfig == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Warn("failed to load config, using defaults", "err", err)
			return config.DefaultConfig(), nil
		}
		return cfg, nil
	}
	cfg, err := config.LoadFrom(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", flagConfig, err)
	}
	return cfg, nil
}

func requireOneFile(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one input file, got %d", len(args))
	}
	return args[0], nil
}

func outputPath(input, fallbackSuffix string) string {
	if flagOutput != "" {
		return flagOutput
	}
	return input + fallbackSuffix
}

func cmdAssemble(args []string, allowExterns bool) error {
	path, err := requireOneFile(args)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	res, err := asm.Assemble(path, string(src), allowExterns)
	if err != nil {
		return err
	}

	var out []byte
	suffix := ".out"
	if allowExterns {
		globals, externs := objectSymbols(res)
		out, err = objfile.WriteObject(res.Mem, globals, externs)
		suffix = ".o"
	} else {
		out, err = objfile.WriteExecutable(res.Mem, res.EntryPC)
	}
	if err != nil {
		return fmt.Errorf("writing image: %w", err)
	}

	return os.WriteFile(outputPath(path, suffix), out, 0o644)
}

func objectSymbols(res *asm.Result) ([]objfile.GlobalSym, []objfile.ExternSym) {
	var globals []objfile.GlobalSym
	for _, g := range res.Sym.Globals() {
		if lbl, ok := res.Sym.Lookup(g.Name); ok {
			globals = append(globals, objfile.GlobalSym{Name: g.Name, Addr: lbl.Addr, Section: lbl.Section})
		}
	}
	var externs []objfile.ExternSym
	for _, e := range res.Sym.Externs() {
		externs = append(externs, objfile.ExternSym{Name: e.Name})
	}
	return globals, externs
}

func cmdLink(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("--link requires one or more object file paths")
	}
	objs := make([][]byte, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		objs[i] = data
	}

	entry := "_start"
	exe, err := linker.Link(objs, entry)
	if err != nil {
		entry = "_kernel_start"
		exe, err = linker.Link(objs, entry)
		if err != nil {
			return err
		}
	}

	return os.WriteFile(outputPath(args[0], ".exe"), exe, 0o644)
}

func cmdReadelf(args []string) error {
	path, err := requireOneFile(args)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return tools.Readelf(os.Stdout, data)
}

func cmdHexdump(args []string) error {
	path, err := requireOneFile(args)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return tools.Hexdump(os.Stdout, f)
}

func cmdAscii(args []string) error {
	path, err := requireOneFile(args)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return tools.Ascii(os.Stdout, f)
}

// cmdAssembleAndRun assembles path (allowing no externs, since a
// standalone run has nothing to link against) and executes it
// immediately, mirroring the assemble-then-run ownership transfer
// spec.md §9 describes. This backs --emulate: the original's
// assemble_from_file+emulate_safe path (original_source/ares/src/exec/cli.c).
func cmdAssembleAndRun(args []string, log *slog.Logger, maxCycles uint64) error {
	path, err := requireOneFile(args)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	res, err := asm.Assemble(path, string(src), false)
	if err != nil {
		return err
	}
	return execute(res.Mem, res.EntryPC, log, maxCycles)
}

// cmdLoadAndRun loads an already-linked executable image and runs it,
// rather than assembling source. This backs --run: the original's
// elf_load+emulate_safe path (original_source/ares/src/exec/cli.c), with
// no assembling involved.
func cmdLoadAndRun(args []string, log *slog.Logger, maxCycles uint64) error {
	path, err := requireOneFile(args)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	loaded, err := objfile.Read(data)
	if err != nil {
		return err
	}
	return execute(loaded.Mem, loaded.Entry, log, maxCycles)
}

func execute(mem *memmap.Map, entry uint32, log *slog.Logger, maxCycles uint64) error {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	c := vm.New(mem, nil)
	c.PC = entry
	c.Out = out
	if flagSanitize {
		c.Sanitizer = callsan.NewAdapter()
	}

	dev := device.New(c, func(code int) { c.Exited = true; c.ExitCode = code }, func(b byte) { out.WriteByte(b) }, c.InterruptPending)
	c.Device = dev

	for cycles := uint64(0); !c.Exited; cycles++ {
		if cycles >= maxCycles {
			return fmt.Errorf("exceeded --max-cycles budget of %d without the guest exiting", maxCycles)
		}
		if flagTrace {
			log.Info("step", "pc", fmt.Sprintf("0x%08x", c.PC), "cycles", c.Cycles)
		}
		if rerr := c.Step(); rerr != nil {
			return rerr
		}
	}

	out.Flush()
	if c.ExitCode != 0 {
		return fmt.Errorf("guest exited with code %d", c.ExitCode)
	}
	return nil
}
