//go:build windows

package pathres

import (
	"fmt"
	"reflect"
	"unsafe"

	"golang.org/x/sys/windows"
)

const maxModulePath = 32768

// anchor exists so its address can be mapped back to the module containing it.
func anchor() {}

// ModulePath asks the loader which module owns a code address inside this
// package. When the launcher is built as a DLL this is the DLL, not the host exe.
func ModulePath() (string, error) {
	var mod windows.Handle
	addr := reflect.ValueOf(anchor).Pointer()
	err := windows.GetModuleHandleEx(
		windows.GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS|windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT,
		// With FLAG_FROM_ADDRESS the name argument is a code address, not a string.
		(*uint16)(unsafe.Pointer(addr)),
		&mod,
	)
	if err != nil {
		return "", fmt.Errorf("GetModuleHandleEx: %w", err)
	}

	for size := uint32(windows.MAX_PATH); size <= maxModulePath; size *= 2 {
		buf := make([]uint16, size)
		n, err := windows.GetModuleFileName(mod, &buf[0], size)
		if err != nil {
			return "", fmt.Errorf("GetModuleFileName: %w", err)
		}
		if n < size {
			return windows.UTF16ToString(buf[:n]), nil
		}
	}
	return "", fmt.Errorf("GetModuleFileName: path longer than %d characters", maxModulePath)
}
