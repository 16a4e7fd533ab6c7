//go:build windows

package win32

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/aescanero/launchorch/pkg/domain"
	"golang.org/x/sys/windows"
)

// StrategyAppActivation is the name of the activation manager strategy
const StrategyAppActivation = "app-activation"

var (
	clsidApplicationActivationManager = windows.GUID{
		Data1: 0x45BA127D, Data2: 0x10A8, Data3: 0x46EA,
		Data4: [8]byte{0x8A, 0xB7, 0x56, 0xEA, 0x90, 0x78, 0x94, 0x3C},
	}
	iidApplicationActivationManager = windows.GUID{
		Data1: 0x2E941141, Data2: 0x7F97, Data3: 0x4756,
		Data4: [8]byte{0xBA, 0x1D, 0x9D, 0xEC, 0xDE, 0x89, 0x4A, 0x3D},
	}
)

const (
	activateOptionsNone = 0

	sFalse          = syscall.Errno(0x1)
	rpcEChangedMode = syscall.Errno(0x80010106)
)

// applicationActivationManager mirrors the IApplicationActivationManager vtable layout
type applicationActivationManager struct {
	vtbl *applicationActivationManagerVtbl
}

type applicationActivationManagerVtbl struct {
	QueryInterface      uintptr
	AddRef              uintptr
	Release             uintptr
	ActivateApplication uintptr
	ActivateForFile     uintptr
	ActivateForProtocol uintptr
}

// HRESULTError is a failed COM call
type HRESULTError struct {
	Op string
	HR uint32
}

func (e *HRESULTError) Error() string {
	return fmt.Sprintf("%s failed: HRESULT 0x%08X", e.Op, e.HR)
}

// AppActivator starts packaged applications through the activation manager
type AppActivator struct{}

// NewAppActivator creates the activation manager strategy
func NewAppActivator() *AppActivator {
	return &AppActivator{}
}

// Name returns the strategy name
func (a *AppActivator) Name() string { return StrategyAppActivation }

// Activate calls ActivateApplication and returns the root PID. Protocol
// identifiers are left to the shell.
func (a *AppActivator) Activate(ctx context.Context, identifier, arguments string) (uint32, error) {
	if domain.IsProtocolIdentifier(identifier) {
		return 0, domain.ErrStrategyNotApplicable
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// COM apartments are per OS thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	switch err := windows.CoInitializeEx(0, windows.COINIT_APARTMENTTHREADED); {
	case err == nil, errors.Is(err, sFalse):
		defer windows.CoUninitialize()
	case errors.Is(err, rpcEChangedMode):
	default:
		return 0, fmt.Errorf("CoInitializeEx: %w", err)
	}

	var manager *applicationActivationManager
	hr, _, _ := procCoCreateInstance.Call(
		uintptr(unsafe.Pointer(&clsidApplicationActivationManager)),
		0,
		clsctxLocalServer,
		uintptr(unsafe.Pointer(&iidApplicationActivationManager)),
		uintptr(unsafe.Pointer(&manager)),
	)
	if int32(hr) < 0 {
		return 0, &HRESULTError{Op: "CoCreateInstance", HR: uint32(hr)}
	}
	defer syscall.SyscallN(manager.vtbl.Release, uintptr(unsafe.Pointer(manager)))

	appID, err := windows.UTF16PtrFromString(identifier)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier %q: %w", identifier, err)
	}
	args, err := windows.UTF16PtrFromString(arguments)
	if err != nil {
		return 0, fmt.Errorf("invalid arguments: %w", err)
	}

	var pid uint32
	hr, _, _ = syscall.SyscallN(manager.vtbl.ActivateApplication,
		uintptr(unsafe.Pointer(manager)),
		uintptr(unsafe.Pointer(appID)),
		uintptr(unsafe.Pointer(args)),
		activateOptionsNone,
		uintptr(unsafe.Pointer(&pid)),
	)
	if int32(hr) < 0 {
		return 0, &HRESULTError{Op: "ActivateApplication", HR: uint32(hr)}
	}

	return pid, nil
}
