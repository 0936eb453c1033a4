// Package io implements the line-oriented transport used by the SMTP server:
// bounded CRLF line reads and single-line reply writes.
package io

import (
	"bufio"
	"errors"
)

var (
	ErrLineTooLong   = errors.New("smtp: line too long")
	ErrBadLineEnding = errors.New("smtp: line not terminated by CRLF")
)

// ReadLine reads a single SMTP line and returns it without its CRLF.
//
// max bounds the line length including the CRLF. A longer line is consumed
// entirely and reported as ErrLineTooLong, so the next call starts at the
// following line. A line ending in a bare LF yields ErrBadLineEnding.
func ReadLine(reader *bufio.Reader, max int) (string, error) {
	// FAST PATH: the whole line fits in the bufio buffer.
	line, err := reader.ReadSlice('\n')
	if err == nil {
		return validateAndConvert(line, max)
	}
	if err != bufio.ErrBufferFull {
		return "", err
	}

	// SLOW PATH: accumulate chunks. ReadSlice reuses its buffer, so the first
	// chunk is copied before the next read.
	if len(line) > max {
		drainLine(reader)
		return "", ErrLineTooLong
	}
	buf := append([]byte(nil), line...)

	for {
		line, err = reader.ReadSlice('\n')

		if len(buf)+len(line) > max {
			if err == bufio.ErrBufferFull {
				drainLine(reader)
			}
			return "", ErrLineTooLong
		}

		buf = append(buf, line...)

		if err == nil {
			break
		}
		if err != bufio.ErrBufferFull {
			return "", err
		}
	}

	return validateAndConvert(buf, max)
}

// validateAndConvert checks length and CRLF of a complete line.
func validateAndConvert(b []byte, max int) (string, error) {
	if len(b) > max {
		return "", ErrLineTooLong
	}
	if len(b) < 2 || b[len(b)-2] != '\r' {
		return "", ErrBadLineEnding
	}
	return string(b[:len(b)-2]), nil
}

// drainLine discards the rest of the current line to recover protocol synchronization.
func drainLine(reader *bufio.Reader) {
	for {
		_, err := reader.ReadSlice('\n')
		if err != bufio.ErrBufferFull {
			return
		}
	}
}
