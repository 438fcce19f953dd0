//go:build windows

package spawn

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// swShowMinNoActive shows the window minimized without activating it.
const swShowMinNoActive = 7

func start(spec Spec) (int, error) {
	cmdLine := windows.ComposeCommandLine(append([]string{spec.Path}, spec.Args...))
	cmdLinePtr, err := windows.UTF16PtrFromString(cmdLine)
	if err != nil {
		return 0, fmt.Errorf("encode command line: %w", err)
	}
	appName, err := windows.UTF16PtrFromString(spec.Path)
	if err != nil {
		return 0, fmt.Errorf("encode path: %w", err)
	}

	var dir *uint16
	if spec.Dir != "" {
		if dir, err = windows.UTF16PtrFromString(spec.Dir); err != nil {
			return 0, fmt.Errorf("encode dir: %w", err)
		}
	}

	si := windows.StartupInfo{
		Flags:      windows.STARTF_USESHOWWINDOW,
		ShowWindow: swShowMinNoActive,
	}
	si.Cb = uint32(unsafe.Sizeof(si))
	if spec.Title != "" {
		if si.Title, err = windows.UTF16PtrFromString(spec.Title); err != nil {
			return 0, fmt.Errorf("encode title: %w", err)
		}
	}

	var pi windows.ProcessInformation
	// A nil environment block makes the child inherit ours, including TEMP/TMP.
	err = windows.CreateProcess(appName, cmdLinePtr, nil, nil, false,
		windows.CREATE_NEW_CONSOLE|windows.CREATE_UNICODE_ENVIRONMENT, nil, dir, &si, &pi)
	if err != nil {
		return 0, fmt.Errorf("create process %s: %w", spec.Path, err)
	}
	_ = windows.CloseHandle(pi.Thread)
	_ = windows.CloseHandle(pi.Process)
	return int(pi.ProcessId), nil
}
