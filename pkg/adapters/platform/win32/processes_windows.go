//go:build windows

package win32

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/aescanero/launchorch/pkg/domain"
	"golang.org/x/sys/windows"
)

// ProcessTable reads the OS process table
type ProcessTable struct{}

// NewProcessTable creates a process table reader
func NewProcessTable() *ProcessTable {
	return &ProcessTable{}
}

// Snapshot lists running processes. Start times are left zero for
// processes this user cannot query.
func (t *ProcessTable) Snapshot(ctx context.Context) ([]domain.ProcessInfo, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snapshot, &entry); err != nil {
		return nil, fmt.Errorf("Process32First: %w", err)
	}

	var procs []domain.ProcessInfo
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if entry.ProcessID != 0 {
			procs = append(procs, domain.ProcessInfo{
				PID:       entry.ProcessID,
				ParentPID: entry.ParentProcessID,
				ImageName: windows.UTF16ToString(entry.ExeFile[:]),
				StartTime: processStartTime(entry.ProcessID),
			})
		}

		if err := windows.Process32Next(snapshot, &entry); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, fmt.Errorf("Process32Next: %w", err)
		}
	}

	return procs, nil
}

func processStartTime(pid uint32) time.Time {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return time.Time{}
	}
	defer windows.CloseHandle(h)

	var creation, exit, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &creation, &exit, &kernel, &user); err != nil {
		return time.Time{}
	}
	return time.Unix(0, creation.Nanoseconds())
}
