//go:build windows

package win32

import (
	"context"
	"fmt"

	"github.com/aescanero/launchorch/pkg/domain"
	"golang.org/x/sys/windows"
)

// StrategyShellExecute is the name of the shell fallback strategy
const StrategyShellExecute = "shell-execute"

// Shell opens URIs and AppsFolder entries through the Windows shell
type Shell struct{}

// NewShell creates a shell dispatcher
func NewShell() *Shell {
	return &Shell{}
}

// OpenURI hands a URI to its registered protocol handler
func (s *Shell) OpenURI(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return shellOpen(uri, "")
}

// Name returns the strategy name
func (s *Shell) Name() string { return StrategyShellExecute }

// Activate opens a protocol identifier directly and an AUMID through the
// AppsFolder shell namespace. The shell reports no process id.
func (s *Shell) Activate(ctx context.Context, identifier, arguments string) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	target := identifier
	if !domain.IsProtocolIdentifier(identifier) {
		target = `shell:AppsFolder\` + identifier
	}
	if err := shellOpen(target, arguments); err != nil {
		return 0, err
	}
	return 0, nil
}

func shellOpen(target, arguments string) error {
	verb, err := windows.UTF16PtrFromString("open")
	if err != nil {
		return err
	}
	file, err := windows.UTF16PtrFromString(target)
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", target, err)
	}

	var args *uint16
	if arguments != "" {
		if args, err = windows.UTF16PtrFromString(arguments); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
	}

	if err := windows.ShellExecute(0, verb, file, args, nil, windows.SW_SHOWNORMAL); err != nil {
		return fmt.Errorf("ShellExecute %s: %w", target, err)
	}
	return nil
}
