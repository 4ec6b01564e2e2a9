// SPDX-License-Identifier: GPL-3.0-or-later

// Package errclass maps errors observed on network connections to short,
// platform-independent classification strings (e.g. "econnrefused",
// "etimedout") suitable for structured logging and for the error taxonomy
// of [obs.ErrClassifier].
//
// The per-platform errno tables in unix.go and windows.go enumerate the
// syscall-level error codes this package recognizes; Classify walks the
// error chain looking for a matching errno before falling back to a small
// set of well-known stdlib sentinel errors (context deadline/cancellation,
// io.EOF, net.Error timeouts).
package errclass

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Classify returns a short classification string for err: "" if err is
// nil, and "unknown" if err does not match any recognized class.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if name := classifyErrno(err); name != "" {
		return name
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "ecanceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "etimedout"
	case errors.Is(err, io.EOF):
		return "eof"
	case errors.Is(err, net.ErrClosed):
		return "econnaborted"
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return "etimedout"
	}
	return "unknown"
}

// classifyErrno walks err's chain for a [syscall.Errno] and maps it to a
// classification string using the platform-specific errno table.
func classifyErrno(err error) string {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return ""
	}
	switch uintptr(errno) {
	case uintptr(errEADDRNOTAVAIL):
		return "eaddrnotavail"
	case uintptr(errEADDRINUSE):
		return "eaddrinuse"
	case uintptr(errECONNABORTED):
		return "econnaborted"
	case uintptr(errECONNREFUSED):
		return "econnrefused"
	case uintptr(errECONNRESET):
		return "econnreset"
	case uintptr(errEHOSTUNREACH):
		return "ehostunreach"
	case uintptr(errEINVAL):
		return "einval"
	case uintptr(errEINTR):
		return "eintr"
	case uintptr(errENETDOWN):
		return "enetdown"
	case uintptr(errENETUNREACH):
		return "enetunreach"
	case uintptr(errENOBUFS):
		return "enobufs"
	case uintptr(errENOTCONN):
		return "enotconn"
	case uintptr(errEPROTONOSUPPORT):
		return "eprotonosupport"
	case uintptr(errETIMEDOUT):
		return "etimedout"
	default:
		return ""
	}
}
