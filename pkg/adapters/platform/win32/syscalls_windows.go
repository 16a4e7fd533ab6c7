//go:build windows

package win32

import (
	"golang.org/x/sys/windows"
)

var (
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")
	user32   = windows.NewLazySystemDLL("user32.dll")
	ole32    = windows.NewLazySystemDLL("ole32.dll")

	procSetProcessAffinityMask = kernel32.NewProc("SetProcessAffinityMask")
	procGetWindowTextLengthW   = user32.NewProc("GetWindowTextLengthW")
	procGetWindowTextW         = user32.NewProc("GetWindowTextW")
	procCoCreateInstance       = ole32.NewProc("CoCreateInstance")
)

const (
	allProcessorGroups = 0xFFFF
	clsctxLocalServer  = 0x4
	processSetAttrs    = windows.PROCESS_SET_INFORMATION | windows.PROCESS_QUERY_LIMITED_INFORMATION
)
