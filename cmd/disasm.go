package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/mabhi256/jrun/internal/disasm"
	"github.com/mabhi256/jrun/internal/vm"
	"github.com/mabhi256/jrun/utils"
	"github.com/spf13/cobra"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [class-file]",
	Short: "Disassemble a class file's linked code",
	Long: `Parse and link a class file, then print every method's bytecode as a
styled listing. Program counters are absolute indices into the linked code
region, exactly as the interpreter sees them.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension([]string{".class"}),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateClassFileArg(args[0])
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := disasmClassFile(args[0]); err != nil {
			fmt.Println(utils.CriticalStyle.Render(fmt.Sprintf("Error: %v", err)))
			os.Exit(1)
		}
	},
}

func disasmClassFile(path string) error {
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
	if err := rt.LinkClass(className); err != nil {
		return err
	}

	class, _ := rt.Class(className)
	names := make([]string, 0, len(class.Methods))
	for name := range class.Methods {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Println(disasm.RenderMethod(className, name, class.Methods[name], rt.Instructions()))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(disasmCmd)
}
