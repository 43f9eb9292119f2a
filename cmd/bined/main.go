// Package main is the entry point for the bined binary editor.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/dshills/bined/internal/app"
	"github.com/dshills/bined/internal/persist"
	"github.com/dshills/bined/internal/source"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

// stdinName is the mem: entry holding stdin when FILE is "-".
const stdinName = "stdin"

// patch is one -set OFFSET=HEX edit.
type patch struct {
	offset int64
	data   []byte
}

// patchList collects repeated -set flags.
type patchList []patch

func (p *patchList) String() string {
	parts := make([]string, len(*p))
	for i, pt := range *p {
		parts[i] = fmt.Sprintf("%d=%x", pt.offset, pt.data)
	}
	return strings.Join(parts, ",")
}

func (p *patchList) Set(value string) error {
	pt, err := parsePatch(value)
	if err != nil {
		return err
	}
	*p = append(*p, pt)
	return nil
}

// parsePatch parses OFFSET=HEX. OFFSET accepts 0x and 0o prefixes.
func parsePatch(s string) (patch, error) {
	off, data, ok := strings.Cut(s, "=")
	if !ok {
		return patch{}, fmt.Errorf("patch %q: want OFFSET=HEX", s)
	}
	offset, err := strconv.ParseInt(strings.TrimSpace(off), 0, 64)
	if err != nil || offset < 0 {
		return patch{}, fmt.Errorf("patch %q: bad offset", s)
	}
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(data), "0x"))
	if err != nil || len(b) == 0 {
		return patch{}, fmt.Errorf("patch %q: bad hex data", s)
	}
	return patch{offset: offset, data: b}, nil
}

type options struct {
	configPath string
	envPath    string
	logLevel   string
	delta      bool
	deltaSet   bool
	patches    patchList
	dump       bool
	uri        string
}

func run() int {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if opts == nil {
		return 0
	}

	overrides := map[string]any{}
	if opts.deltaSet {
		overrides["persistence.delta_mode"] = opts.delta
	}
	if opts.logLevel != "" {
		overrides["logging.level"] = opts.logLevel
	}

	var mem *source.MemFS
	uri := opts.uri
	if uri == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: reading stdin: %v\n", err)
			return 1
		}
		mem = source.NewMemFS()
		if err := mem.AddFile(stdinName, data); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		uri = source.MemScheme + stdinName
	}

	application, err := app.New(app.Options{
		ConfigFile: opts.configPath,
		DotEnvFile: opts.envPath,
		Overrides:  overrides,
		MemFS:      mem,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ed, err := application.OpenEditor(uri)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "%s: %d bytes, %s, editable=%t\n",
		opts.uri, ed.Len(), ed.Strategy(), ed.IsEditable())

	if len(opts.patches) > 0 {
		if err := applyPatches(ed, opts.patches); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		saved, err := application.SaveAll(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "saved %d document(s)\n", saved)

		// Patched stdin goes back out on stdout.
		if mem != nil && !opts.dump {
			data, err := mem.ReadFile(stdinName)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
			if _, err := os.Stdout.Write(data); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
		}
	}

	if opts.dump {
		if err := hexDump(os.Stdout, ed, ed.Len(), dumpWidth()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	var showVersion bool

	fs := flag.NewFlagSet("bined", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file (TOML or YAML)")
	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.envPath, "env", "", "Path to .env file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolVar(&opts.delta, "delta", true, "Edit local files through the segment store")
	fs.Var(&opts.patches, "set", "Patch OFFSET=HEX before saving (repeatable)")
	fs.BoolVar(&opts.dump, "dump", false, "Print a hex dump of the content")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "bined - binary file editor\n\n")
		fmt.Fprintf(os.Stderr, "Usage: bined [options] FILE|-\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bined -dump image.bin               Dump a file\n")
		fmt.Fprintf(os.Stderr, "  bined -set 0x10=cafe image.bin      Patch two bytes and save\n")
		fmt.Fprintf(os.Stderr, "  bined -delta=false -set 0=00 a.bin  Patch through a memory buffer\n")
		fmt.Fprintf(os.Stderr, "  cat a.bin | bined -set 4=ff - > b   Patch a stream\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if showVersion {
		fmt.Printf("bined %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return nil, nil
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "delta" {
			opts.deltaSet = true
		}
	})

	switch opts.logLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", opts.logLevel)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("expected exactly one FILE, or - for stdin")
	}
	opts.uri = fs.Arg(0)
	return opts, nil
}

func applyPatches(ed *persist.Editor, patches patchList) error {
	for _, pt := range patches {
		if _, err := ed.WriteAt(pt.data, pt.offset); err != nil {
			return fmt.Errorf("patch at %d: %w", pt.offset, err)
		}
	}
	return nil
}

// dumpWidth picks bytes per row to fit the terminal: a multiple of 8
// between 8 and 32, or 16 when stdout is not a terminal.
func dumpWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 16
	}
	cols, _, err := term.GetSize(fd)
	if err != nil {
		return 16
	}
	return widthForColumns(cols)
}

// widthForColumns returns the widest row that fits in cols. A row of n
// bytes takes 13+4n columns.
func widthForColumns(cols int) int {
	n := (cols - 13) / 4
	n -= n % 8
	switch {
	case n < 8:
		return 8
	case n > 32:
		return 32
	}
	return n
}

// hexDump writes r as offset, hex and ASCII columns, width bytes per row.
func hexDump(w io.Writer, r io.ReaderAt, size int64, width int) error {
	row := make([]byte, width)
	var line strings.Builder
	for off := int64(0); off < size; off += int64(width) {
		n, err := r.ReadAt(row, off)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if n == 0 {
			break
		}

		line.Reset()
		fmt.Fprintf(&line, "%08x  ", off)
		for i := 0; i < width; i++ {
			if i < n {
				fmt.Fprintf(&line, "%02x ", row[i])
			} else {
				line.WriteString("   ")
			}
		}
		line.WriteString(" |")
		for _, c := range row[:n] {
			if c < 0x20 || c > 0x7e {
				c = '.'
			}
			line.WriteByte(c)
		}
		line.WriteString("|\n")

		if _, err := io.WriteString(w, line.String()); err != nil {
			return err
		}
	}
	return nil
}
