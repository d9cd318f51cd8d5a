// Package utils collects small stream, retry and collection helpers shared
// by the connection layer and the command-line front end.
package utils

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

type RetryOptions[T any] struct {
	Delay       time.Duration
	MaxAttempts int
	Operation   func() (T, error)
}

func FileExists(filepath string) bool {
	_, err := os.Stat(filepath)

	return !errors.Is(err, os.ErrNotExist)
}

// ConnReadFull reads exactly len(buffer) bytes from conn into buffer. If a
// non-zero deadline is provided, it sets the read deadline before reading
// and clears it afterward; a zero deadline blocks indefinitely.
func ConnReadFull(conn net.Conn, buffer []byte, deadline time.Time) (int, error) {
	if !deadline.IsZero() {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return 0, err
		}

		defer conn.SetReadDeadline(time.Time{})
	}

	return io.ReadFull(conn, buffer)
}

// ConnWriteFull writes all of buffer to conn. If a non-zero deadline is
// provided, it sets the write deadline before writing and clears it
// afterward; a zero deadline blocks indefinitely.
func ConnWriteFull(conn net.Conn, buffer []byte, deadline time.Time) (int, error) {
	if !deadline.IsZero() {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return 0, err
		}

		defer conn.SetWriteDeadline(time.Time{})
	}

	return conn.Write(buffer)
}

func Retry[T any](options RetryOptions[T]) (T, error) {
	var res T
	var err error

	for range options.MaxAttempts {
		res, err = options.Operation()

		if err == nil {
			break
		}

		time.Sleep(options.Delay)
	}

	return res, err
}
