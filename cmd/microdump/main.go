// Command microdump parses a micro-instruction text file, runs it through
// the full pass pipeline for a chosen calling convention, and prints the
// resulting machine code and relocations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var callConv string
	var preservePersistent bool

	cmd := &cobra.Command{
		Use:   "microdump [file]",
		Short: "Compile a micro-instruction text file to x86-64 machine code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], callConv, preservePersistent, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&callConv, "callconv", "sysv", "calling convention: sysv or cdecl32")
	flags.BoolVar(&preservePersistent, "preserve-persistent-regs", false,
		"enable the prolog/epilog pass: save and restore the callee-saved registers the code uses")
	return cmd
}
