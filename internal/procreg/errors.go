package procreg

import "errors"

var errClosed = errors.New("process handle closed")
