// Command memscan is a thin example front end over the memscan library:
// it performs one initial value scan or one pattern scan and prints a
// summary. It is not a REPL — no interactive filtering loop, no colored
// output, no scripting bindings; those are explicitly out of scope for
// the library itself.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zk-fathom/memscan"
	"github.com/zk-fathom/memscan/hexutil"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "memscan",
		Short: "inspect and search a target process's memory",
	}
	root.AddCommand(newScanCmd(), newWatchCmd())
	return root
}

func newScanCmd() *cobra.Command {
	var pid uint32
	var typeName string
	var value string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "perform an initial value scan and print the match count",
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := parseValueType(typeName)
			if err != nil {
				return err
			}

			log := zerolog.New(os.Stderr).With().Timestamp().Logger()
			proc, err := memscan.OpenProcess(pid, memscan.WithLogger(log))
			if err != nil {
				return err
			}
			defer proc.Close()

			regions, err := interestingNonModuleRegions(proc)
			if err != nil {
				return err
			}

			scanner, err := memscan.NewScanner(proc, regions, typ, 0, memscan.WithLogger(log))
			if err != nil {
				return err
			}

			count := scanner.InitialScan()
			fmt.Printf("initial scan: %d candidate addresses across %d regions\n", count, scanner.RegionCount())

			if value != "" {
				target, err := parseValue(typ, value)
				if err != nil {
					return err
				}
				n, err := scanner.Filter(memscan.CompareEquals, &target)
				if err != nil {
					return err
				}
				fmt.Printf("filtered to %d matches equal to %s\n", n, value)
			}
			return nil
		},
	}

	cmd.Flags().Uint32Var(&pid, "pid", 0, "target process id")
	cmd.Flags().StringVar(&typeName, "type", "i32", "value type: i8,i16,i32,i64,u8,u16,u32,u64,f32,f64")
	cmd.Flags().StringVar(&value, "value", "", "optional value to filter for immediately after the initial scan")
	cmd.MarkFlagRequired("pid")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var pid uint32
	var pattern string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "run the pattern scanner against a process's memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := zerolog.New(os.Stderr).With().Timestamp().Logger()
			proc, err := memscan.OpenProcess(pid, memscan.WithLogger(log))
			if err != nil {
				return err
			}
			defer proc.Close()

			regions, err := interestingNonModuleRegions(proc)
			if err != nil {
				return err
			}

			mapper := memscan.NewRegionMapper(proc, memscan.WithLogger(log))
			for _, r := range regions {
				if _, err := mapper.MapRegion(r); err != nil {
					log.Debug().Err(err).Msg("skipping region")
				}
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-stop
				fmt.Fprintln(os.Stderr, "stopping")
				os.Exit(130)
			}()

			ps := memscan.NewPatternScanner(mapper)
			if strings.Contains(pattern, "?") {
				matches, err := ps.FindAllAOB(pattern)
				if err != nil {
					return err
				}
				printMatches(matches)
				return nil
			}

			raw, err := hexutil.ParsePattern(pattern)
			if err != nil {
				return err
			}
			printMatches(ps.FindAll(raw))
			return nil
		},
	}

	cmd.Flags().Uint32Var(&pid, "pid", 0, "target process id")
	cmd.Flags().StringVar(&pattern, "pattern", "", `byte pattern, e.g. "4D 5A 90 00" or an AOB wildcard pattern "4D ?? 90"`)
	cmd.MarkFlagRequired("pid")
	cmd.MarkFlagRequired("pattern")
	return cmd
}

func printMatches(matches []memscan.Match) {
	fmt.Printf("found %d matches\n", len(matches))
	for i, m := range matches {
		if i >= 20 {
			fmt.Printf("... (%d more)\n", len(matches)-20)
			break
		}
		fmt.Printf("  %s: % X\n", m.Address, m.Data)
	}
}

func interestingNonModuleRegions(proc *memscan.ProcessHandle) ([]memscan.MemoryRegion, error) {
	sys, err := memscan.QuerySystemInfo()
	if err != nil {
		return nil, err
	}
	modules, err := proc.ModuleRegions()
	if err != nil {
		return nil, err
	}

	var out []memscan.MemoryRegion
	it := proc.NewRegionIterator(sys)
	for {
		r, ok := it.Next()
		if !ok {
			break
		}
		if isModuleRegion(r, modules) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func isModuleRegion(r memscan.MemoryRegion, modules []memscan.MemoryRegion) bool {
	for _, m := range modules {
		if m.IsSupersetOf(r) {
			return true
		}
	}
	return false
}

func parseValueType(name string) (memscan.ValueType, error) {
	switch name {
	case "i8":
		return memscan.TypeI8, nil
	case "i16":
		return memscan.TypeI16, nil
	case "i32":
		return memscan.TypeI32, nil
	case "i64":
		return memscan.TypeI64, nil
	case "u8":
		return memscan.TypeU8, nil
	case "u16":
		return memscan.TypeU16, nil
	case "u32":
		return memscan.TypeU32, nil
	case "u64":
		return memscan.TypeU64, nil
	case "f32":
		return memscan.TypeF32, nil
	case "f64":
		return memscan.TypeF64, nil
	default:
		return 0, fmt.Errorf("unknown value type %q", name)
	}
}

func parseValue(typ memscan.ValueType, text string) (memscan.Value, error) {
	var i int64
	var u uint64
	var f float64

	switch typ {
	case memscan.TypeF32, memscan.TypeF64:
		if _, err := fmt.Sscanf(text, "%g", &f); err != nil {
			return memscan.Value{}, fmt.Errorf("invalid float %q: %w", text, err)
		}
	case memscan.TypeU8, memscan.TypeU16, memscan.TypeU32, memscan.TypeU64:
		if _, err := fmt.Sscanf(text, "%d", &u); err != nil {
			return memscan.Value{}, fmt.Errorf("invalid unsigned integer %q: %w", text, err)
		}
	default:
		if _, err := fmt.Sscanf(text, "%d", &i); err != nil {
			return memscan.Value{}, fmt.Errorf("invalid integer %q: %w", text, err)
		}
	}

	switch typ {
	case memscan.TypeI8:
		return memscan.I8(int8(i)), nil
	case memscan.TypeI16:
		return memscan.I16(int16(i)), nil
	case memscan.TypeI32:
		return memscan.I32(int32(i)), nil
	case memscan.TypeI64:
		return memscan.I64(i), nil
	case memscan.TypeU8:
		return memscan.U8(uint8(u)), nil
	case memscan.TypeU16:
		return memscan.U16(uint16(u)), nil
	case memscan.TypeU32:
		return memscan.U32(uint32(u)), nil
	case memscan.TypeU64:
		return memscan.U64(u), nil
	case memscan.TypeF32:
		return memscan.F32(float32(f)), nil
	default:
		return memscan.F64(f), nil
	}
}
