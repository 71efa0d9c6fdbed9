// Command delundef removes calls to undefined functions from an LLVM
// assembly module so that symbolic executors and verifiers never see a
// call without a body behind it.
//
// Usage:
//
//	delundef module.ll
//	delundef --pass delete-undefined-nosym -o out.ll module.ll
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/llir/llvm/asm"
	"github.com/spf13/cobra"

	"github.com/mpyw/delundef"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "delundef:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		opts          delundef.Options
		passName      string
		outputPath    string
		whitelistPath string
		quiet         bool
	)

	cmd := &cobra.Command{
		Use:           "delundef [flags] module.ll",
		Short:         "delete calls to undefined functions from an LLVM IR module",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctor, ok := delundef.Passes[passName]
			if !ok {
				return fmt.Errorf("unknown pass %q (available: %s)", passName, passNames())
			}
			if whitelistPath != "" {
				cfg, err := delundef.LoadWhitelist(whitelistPath)
				if err != nil {
					return err
				}
				opts.Leave = append(opts.Leave, cfg.Leave...)
				opts.LeavePrefixes = append(opts.LeavePrefixes, cfg.Prefixes...)
			}
			if quiet {
				opts.Diag = io.Discard
			} else {
				opts.Diag = cmd.ErrOrStderr()
			}

			module, err := asm.ParseFile(args[0])
			if err != nil {
				return err
			}
			if _, err := ctor(opts).Run(module); err != nil {
				return err
			}

			out := module.String()
			if outputPath == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			}
			return os.WriteFile(outputPath, []byte(out), 0o644)
		},
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.Flags().StringVar(&passName, "pass", "delete-undefined", "pass identity to run ("+passNames()+")")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write rewritten module to file instead of stdout")
	cmd.Flags().StringVar(&opts.Entry, "entry", "main", "entry function receiving cell initializers")
	cmd.Flags().StringVar(&whitelistPath, "whitelist", "", "YAML file with extra names/prefixes to leave untouched")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress per-symbol diagnostics")

	_ = cmd.MarkFlagFilename("output", "ll")
	_ = cmd.MarkFlagFilename("whitelist", "yaml", "yml")

	return cmd
}

func passNames() string {
	names := make([]string, 0, len(delundef.Passes))
	for name := range delundef.Passes {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
