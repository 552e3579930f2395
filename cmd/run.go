package cmd

import (
	"fmt"
	"os"

	"github.com/mabhi256/jrun/internal/disasm"
	"github.com/mabhi256/jrun/internal/vm"
	"github.com/mabhi256/jrun/utils"
	"github.com/spf13/cobra"
)

var (
	traceExecution bool
	entryClass     string
)

var runCmd = &cobra.Command{
	Use:   "run [class-file]",
	Short: "Execute a class file's main method",
	Long: `Load a compiled class file, link it, and interpret its main method.

The process exits 0 on a clean return from the main frame and non-zero on
any linking or execution error.

Examples:
  jrun run Main.class            # Execute Main.class
  jrun run Main.class --trace    # Dump the linked code and trace execution
  jrun run Main.class -e Main    # Name the entry class explicitly (only the file's own class is loaded)`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension([]string{".class"}),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateClassFileArg(args[0])
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runClassFile(args[0]); err != nil {
			fmt.Println(utils.CriticalStyle.Render(fmt.Sprintf("Error: %v", err)))
			os.Exit(1)
		}
	},
}

func runClassFile(path string) error {
	cf, err := loadClassFile(path)
	if err != nil {
		return err
	}

	rt, err := vm.NewRuntime(cf)
	if err != nil {
		return err
	}

	mainClass := entryClass
	if mainClass == "" {
		if mainClass, err = cf.ClassName(); err != nil {
			return err
		}
	}

	thread, err := rt.Start(mainClass)
	if err != nil {
		return err
	}

	if traceExecution {
		fmt.Println(disasm.Render(disasm.Decode(rt.Instructions(), 0)))
		thread.Tracer = func(pc int, op byte, stackDepth int) {
			fmt.Printf("%6d  %-14s depth=%d\n", pc, vm.Mnemonic(op), stackDepth)
		}
	}

	return thread.Run()
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&traceExecution, "trace", false, "Dump linked code and trace each instruction")
	runCmd.Flags().StringVarP(&entryClass, "entry", "e", "", "Entry class name (defaults to the file's own class)")
}
