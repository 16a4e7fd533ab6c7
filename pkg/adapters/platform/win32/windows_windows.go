//go:build windows

package win32

import (
	"context"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// enumWindowsCallback is created once; Windows callbacks are a limited resource
var (
	enumMu              sync.Mutex
	enumVisit           func(hwnd windows.HWND) bool
	enumWindowsCallback = windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		if enumVisit(hwnd) {
			return 1
		}
		return 0
	})
)

// WindowTitles samples the titles of the game client's visible windows
type WindowTitles struct {
	table        *ProcessTable
	clientPrefix string
}

// NewWindowTitles creates a title source for processes whose image name
// starts with clientPrefix, such as "steam"
func NewWindowTitles(table *ProcessTable, clientPrefix string) *WindowTitles {
	return &WindowTitles{table: table, clientPrefix: strings.ToLower(clientPrefix)}
}

// Titles returns the titles of visible top-level windows owned by client processes
func (w *WindowTitles) Titles(ctx context.Context) ([]string, error) {
	procs, err := w.table.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	clientPIDs := make(map[uint32]struct{})
	for _, p := range procs {
		if strings.HasPrefix(strings.ToLower(p.ImageName), w.clientPrefix) {
			clientPIDs[p.PID] = struct{}{}
		}
	}
	if len(clientPIDs) == 0 {
		return nil, nil
	}

	var titles []string

	enumMu.Lock()
	defer enumMu.Unlock()

	enumVisit = func(hwnd windows.HWND) bool {
		if !windows.IsWindowVisible(hwnd) {
			return true
		}
		var pid uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
			return true
		}
		if _, ok := clientPIDs[pid]; !ok {
			return true
		}
		if title := windowText(hwnd); title != "" {
			titles = append(titles, title)
		}
		return true
	}
	defer func() { enumVisit = nil }()

	if err := windows.EnumWindows(enumWindowsCallback, unsafe.Pointer(nil)); err != nil {
		return nil, err
	}

	return titles, nil
}

func windowText(hwnd windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	copied, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:copied])
}
