//go:build windows

package win32

import (
	"fmt"
	"unsafe"

	"github.com/aescanero/launchorch/pkg/domain"
	"golang.org/x/sys/windows"
)

// Attributes changes process priority and affinity
type Attributes struct{}

// NewAttributes creates an attribute setter
func NewAttributes() *Attributes {
	return &Attributes{}
}

// SetPriorityClass sets the priority class of a process
func (a *Attributes) SetPriorityClass(pid uint32, class uint32) error {
	h, err := windows.OpenProcess(processSetAttrs, false, pid)
	if err != nil {
		return fmt.Errorf("OpenProcess %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	if err := windows.SetPriorityClass(h, class); err != nil {
		return fmt.Errorf("SetPriorityClass %d: %w", pid, err)
	}
	return nil
}

// SetAffinityMask sets the CPU affinity mask of a process
func (a *Attributes) SetAffinityMask(pid uint32, mask uint64) error {
	if unsafe.Sizeof(uintptr(0)) < 8 && mask>>32 != 0 {
		return fmt.Errorf("affinity mask %#x exceeds the 32-bit address width", mask)
	}

	h, err := windows.OpenProcess(processSetAttrs, false, pid)
	if err != nil {
		return fmt.Errorf("OpenProcess %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	ok, _, callErr := procSetProcessAffinityMask.Call(uintptr(h), uintptr(mask))
	if ok == 0 {
		return fmt.Errorf("SetProcessAffinityMask %d: %w", pid, callErr)
	}
	return nil
}

// System reports host facts
type System struct{}

// NewSystem creates a system info source
func NewSystem() *System {
	return &System{}
}

// LogicalProcessors returns the number of active logical processors across
// all groups, capped at what one affinity mask can address
func (s *System) LogicalProcessors() int {
	n := int(windows.GetActiveProcessorCount(allProcessorGroups))
	if n <= 0 {
		return 1
	}
	if n > domain.MaxAffinityProcessors {
		return domain.MaxAffinityProcessors
	}
	return n
}
