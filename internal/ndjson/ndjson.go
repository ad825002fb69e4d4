// Package ndjson reads and writes line-delimited JSON: one value per line.
package ndjson

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
)

// Encode writes each item as a single JSON line.
func Encode[T any](w io.Writer, items []T) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encoding line %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}

// Decode lazily yields the values in r, one per line.
// Decoding stops at the first error.
func Decode[T any](r io.Reader) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		dec := json.NewDecoder(r)
		for line := 1; ; line++ {
			var v T
			err := dec.Decode(&v)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var zero T
				yield(zero, fmt.Errorf("decoding line %d: %w", line, err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Read lazily yields the values stored in the file at path.
// The file stays open until the sequence is exhausted or the consumer stops.
func Read[T any](path string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			var zero T
			yield(zero, fmt.Errorf("opening %s: %w", path, err))
			return
		}
		defer f.Close()

		for v, err := range Decode[T](f) {
			if err != nil {
				err = fmt.Errorf("%s: %w", path, err)
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll collects every value in the file at path.
func ReadAll[T any](path string) ([]T, error) {
	var out []T
	for v, err := range Read[T](path) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
