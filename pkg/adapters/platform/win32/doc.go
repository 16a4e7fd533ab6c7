// Package win32 implements the platform ports on Windows.
//
// Implementations:
//   - ProcessTable: Toolhelp32 process snapshot with process creation times
//   - WindowTitles: visible top-level windows of the game client
//   - Shell: ShellExecute for URIs and the AppsFolder fallback activation
//   - AppActivator: IApplicationActivationManager::ActivateApplication
//   - Attributes: SetPriorityClass and SetProcessAffinityMask
//
// Every file except this one builds on Windows only.
package win32
