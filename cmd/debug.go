package cmd

import (
	"fmt"
	"os"

	"github.com/mabhi256/jrun/internal/debugger"
	"github.com/mabhi256/jrun/internal/vm"
	"github.com/mabhi256/jrun/utils"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug [class-file]",
	Short: "Step through a class file in an interactive debugger",
	Long: `Load and link a class file, then open a terminal UI that executes one
instruction per keypress, with live views of the operand stack, locals,
frames, static fields, and a stack-depth chart.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension([]string{".class"}),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateClassFileArg(args[0])
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := debugClassFile(args[0]); err != nil {
			fmt.Println(utils.CriticalStyle.Render(fmt.Sprintf("Error: %v", err)))
			os.Exit(1)
		}
	},
}

func debugClassFile(path string) error {
	cf, err := loadClassFile(path)
	if err != nil {
		return err
	}

	rt, err := vm.NewRuntime(cf)
	if err != nil {
		return err
	}

	className, err := cf.ClassName()
	if err != nil {
		return err
	}

	thread, err := rt.Start(className)
	if err != nil {
		return err
	}

	return debugger.StartDebugger(thread, className)
}

func init() {
	rootCmd.AddCommand(debugCmd)
}
