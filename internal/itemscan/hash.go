package itemscan

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

// hashChunk is how much of each end of a file enters the unique hash.
const hashChunk = 100 * 1024

// UniqueHash fingerprints a file of the given size from its first and last
// 100 KiB plus its size. The chunks overlap for files under 200 KiB.
// r is read to the tail by seeking when it supports it.
func UniqueHash(r io.Reader, size int64) (string, error) {
	h := md5.New()

	head := make([]byte, min(size, hashChunk))
	if _, err := io.ReadFull(r, head); err != nil {
		return "", fmt.Errorf("reading head: %w", err)
	}
	h.Write(head)

	if size > hashChunk {
		tail, err := readTail(r, head, size)
		if err != nil {
			return "", err
		}
		h.Write(tail)
	}

	h.Write([]byte(strconv.FormatInt(size, 10)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readTail(r io.Reader, head []byte, size int64) ([]byte, error) {
	tail := make([]byte, hashChunk)
	if s, ok := r.(io.Seeker); ok {
		if _, err := s.Seek(size-hashChunk, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seeking to tail: %w", err)
		}
		if _, err := io.ReadFull(r, tail); err != nil {
			return nil, fmt.Errorf("reading tail: %w", err)
		}
		return tail, nil
	}

	read := int64(len(head))
	if size-hashChunk >= read {
		if _, err := io.CopyN(io.Discard, r, size-hashChunk-read); err != nil {
			return nil, fmt.Errorf("skipping to tail: %w", err)
		}
		if _, err := io.ReadFull(r, tail); err != nil {
			return nil, fmt.Errorf("reading tail: %w", err)
		}
		return tail, nil
	}

	// The tail starts inside the head.
	rest := make([]byte, size-read)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, fmt.Errorf("reading tail: %w", err)
	}
	whole := append(append([]byte{}, head...), rest...)
	return whole[size-hashChunk:], nil
}
