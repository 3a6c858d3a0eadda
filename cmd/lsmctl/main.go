// Command lsmctl is a thin CLI harness over the lsm engine: put, get, scan,
// and flush. It is not a daemon (spec Non-goals) and carries no protocol of
// its own — one process, one engine directory, one command. put and delete
// flush their write to an L0 sorted run before returning, so later
// invocations see it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/flashdb/lsmgo/bound"
	"github.com/flashdb/lsmgo/lsm"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "lsmctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out *os.File) error {
	fs := flag.NewFlagSet("lsmctl", flag.ContinueOnError)
	dir := fs.String("dir", "", "engine data directory")
	blockSize := fs.Int("block-size", 4096, "target block size in bytes")
	targetSSTSize := fs.Int("target-sst-size", 2<<20, "memtable freeze threshold in bytes")
	enableWAL := fs.Bool("wal", false, "enable write-ahead logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("-dir is required")
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: lsmctl -dir PATH <put|get|delete|scan|flush> [args...]")
	}

	eng, err := lsm.Open(*dir,
		lsm.WithBlockSize(*blockSize),
		lsm.WithTargetSSTSize(*targetSSTSize),
		lsm.WithEnableWAL(*enableWAL),
	)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()

	w := bufio.NewWriter(out)
	defer w.Flush()

	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "put":
		if len(rest) != 2 {
			return fmt.Errorf("usage: put KEY VALUE")
		}
		if err := eng.Put([]byte(rest[0]), []byte(rest[1])); err != nil {
			return err
		}
		return eng.ForceFlush()
	case "delete":
		if len(rest) != 1 {
			return fmt.Errorf("usage: delete KEY")
		}
		if err := eng.Delete([]byte(rest[0])); err != nil {
			return err
		}
		return eng.ForceFlush()
	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("usage: get KEY")
		}
		v, ok, err := eng.Get([]byte(rest[0]))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(w, "(not found)")
			return nil
		}
		fmt.Fprintln(w, string(v))
		return nil
	case "scan":
		lower, upper := bound.Unbounded, bound.Unbounded
		if len(rest) >= 1 && rest[0] != "" {
			lower = bound.Included([]byte(rest[0]))
		}
		if len(rest) >= 2 && rest[1] != "" {
			upper = bound.Excluded([]byte(rest[1]))
		}
		it, err := eng.Scan(lower, upper)
		if err != nil {
			return err
		}
		for it.IsValid() {
			fmt.Fprintf(w, "%s=%s\n", it.Key(), it.Value())
			if err := it.Next(); err != nil {
				return err
			}
		}
		return nil
	case "flush":
		return eng.ForceFlush()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
