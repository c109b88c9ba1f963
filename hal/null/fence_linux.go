// Copyright 2023 Gustavo C. Viegas. All rights reserved.

//go:build linux

package null

import (
	"encoding/binary"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gviegas/wsishim/hal"
)

// nativeFence implements hal.NativeFence over an eventfd.
// The descriptor itself is what a real backend would hand to
// the compositor, so waits go through poll(2) rather than any
// API-level primitive.
type nativeFence struct {
	fd int
}

func newNativeFence() (hal.NativeFence, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, os.NewSyscallError("eventfd", err)
	}
	return &nativeFence{fd: fd}, nil
}

func (f *nativeFence) signal() {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], 1)
	for {
		if _, err := unix.Write(f.fd, b[:]); err != unix.EINTR {
			return
		}
	}
}

func (f *nativeFence) Wait(timeout time.Duration) error {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if timeout > 0 && ms == 0 {
			ms = 1
		}
	}
	pfd := []unix.PollFd{{Fd: int32(f.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(pfd, ms)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return os.NewSyscallError("poll", err)
		case n == 0:
			return hal.ErrTimeout
		default:
			return nil
		}
	}
}

func (f *nativeFence) Reset() error {
	var b [8]byte
	for {
		_, err := unix.Read(f.fd, b[:])
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN, nil:
			// Unsignaled either way.
			return nil
		default:
			return os.NewSyscallError("read", err)
		}
	}
}

func (f *nativeFence) Destroy() {
	unix.Close(f.fd)
	f.fd = -1
}
