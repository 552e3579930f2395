package cmd

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/mabhi256/jrun/internal/classfile"
)

// loadClassFile maps a class file into memory, parses it, and returns the
// decoded form. The mapping is copied before unmapping so the parsed class
// owns its bytes for the rest of the run.
func loadClassFile(path string) (*classfile.ClassFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open class file: %w", err)
	}
	defer file.Close()

	mapped, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to map class file: %w", err)
	}
	defer mapped.Unmap()

	data := make([]byte, len(mapped))
	copy(data, mapped)

	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cf, nil
}

// validateClassFileArg is the shared PreRunE check for commands taking a
// class-file positional argument.
func validateClassFileArg(path string) error {
	if !isClassFile(path) {
		return fmt.Errorf("not a class file: %s", path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	return nil
}
