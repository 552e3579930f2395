package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jrun",
	Short: "A bytecode virtual machine for Java class files",
	Long: `jrun loads a compiled Java class file, links it into an executable
code region, and interprets its bytecode. It also ships a disassembler and
an interactive step debugger for the linked code.`,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Name() == "install" || cmd.Name() == "version" || cmd.Name() == "help" {
			return
		}

		if !isShellSupported() {
			return // Skip auto-setup for unsupported shells
		}

		if !completionsExist() {
			fmt.Println("🔧 First run detected, setting up jrun...")
			if installCompletions(cmd.Root()) == nil {
				fmt.Println("✅ Shell completions installed")
				fmt.Println("💡 Restart your shell to enable tab completion")
			} else {
				fmt.Println("⚠️  Auto-setup failed. Run 'jrun install' to try again.")
			}
		}
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install shell completions",
	Run: func(cmd *cobra.Command, args []string) {
		if !isShellSupported() {
			fmt.Printf("❌ Shell completion not supported for: %s\n", detectShell())
			fmt.Println("Supported shells: bash, zsh, fish, powershell")
			return
		}

		if completionsExist() {
			fmt.Println("✅ Already configured!")
			return
		}

		fmt.Println("📦 Installing completions...")
		if err := installCompletions(cmd.Root()); err != nil {
			fmt.Printf("❌ Failed: %v\n", err)
		} else {
			fmt.Println("✅ Done! Restart your shell to enable tab completion.")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func completionsExist() bool {
	home, _ := os.UserHomeDir()

	paths := map[string]string{
		"bash":       filepath.Join(home, ".local/share/bash-completion/completions/jrun"),
		"zsh":        filepath.Join(home, ".zsh/completions/_jrun"),
		"fish":       filepath.Join(home, ".config/fish/completions/jrun.fish"),
		"powershell": filepath.Join(home, "jrun_completion.ps1"),
	}

	path := paths[detectShell()]
	_, err := os.Stat(path)
	return err == nil
}

func isShellSupported() bool {
	return slices.Contains([]string{"bash", "zsh", "fish", "powershell"}, detectShell())
}

func detectShell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}

	shell := filepath.Base(os.Getenv("SHELL"))
	if shell == "" {
		return "bash"
	}
	return shell
}

type completionConfig struct {
	dir     string
	file    string
	genFunc func(io.Writer) error
}

func installCompletions(rootCmd *cobra.Command) error {
	home, _ := os.UserHomeDir()
	shell := detectShell()

	configs := map[string]completionConfig{
		"bash": {
			dir:     filepath.Join(home, ".local/share/bash-completion/completions"),
			file:    "jrun",
			genFunc: rootCmd.GenBashCompletion,
		},
		"zsh": {
			dir:     filepath.Join(home, ".zsh/completions"),
			file:    "_jrun",
			genFunc: rootCmd.GenZshCompletion,
		},
		"fish": {
			dir:     filepath.Join(home, ".config/fish/completions"),
			file:    "jrun.fish",
			genFunc: func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
		},
		"powershell": {
			dir:     home,
			file:    "jrun_completion.ps1",
			genFunc: rootCmd.GenPowerShellCompletionWithDesc,
		},
	}

	config, ok := configs[shell]
	if !ok {
		return fmt.Errorf("unsupported shell: %s", shell)
	}

	os.MkdirAll(config.dir, 0755)

	file, err := os.Create(filepath.Join(config.dir, config.file))
	if err != nil {
		return err
	}
	defer file.Close()

	return config.genFunc(file)
}

func isClassFile(filename string) bool {
	return strings.HasSuffix(filename, ".class")
}

func init() {
	rootCmd.AddCommand(installCmd)
}
