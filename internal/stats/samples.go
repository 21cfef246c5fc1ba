package stats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SampleHeader is the first line of a v1 sample file. Every file must carry
// it; the reader never guesses whether the first line is data.
const SampleHeader = "ns"

var ErrMalformedSamples = errors.New("malformed sample series")

// ReadSamples parses a v1 sample stream: the header line followed by one
// non-negative base-10 integer per line. Blank lines are skipped. Any other
// content aborts the read; values are never coerced or dropped.
func ReadSamples(r io.Reader) ([]int64, error) {
	scanner := bufio.NewScanner(r)
	line := 0
	headerSeen := false
	var out []int64

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if !headerSeen {
			if text != SampleHeader {
				return nil, fmt.Errorf("%w: line %d: expected header %q, got %q", ErrMalformedSamples, line, SampleHeader, text)
			}
			headerSeen = true
			continue
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q is not an integer", ErrMalformedSamples, line, text)
		}
		if v < 0 {
			return nil, fmt.Errorf("%w: line %d: negative latency %d", ErrMalformedSamples, line, v)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan samples: %w", err)
	}
	if !headerSeen {
		return nil, fmt.Errorf("%w: missing header %q", ErrMalformedSamples, SampleHeader)
	}
	if len(out) == 0 {
		return nil, ErrEmptySeries
	}
	return out, nil
}

// ReadSampleFile opens path and parses it with ReadSamples.
func ReadSampleFile(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample file: %w", err)
	}
	defer func() { _ = f.Close() }()

	samples, err := ReadSamples(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// WriteSamples writes samples in the v1 format. It is what a conforming
// benchmark emits and is used to produce fixtures.
func WriteSamples(w io.Writer, samples []int64) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(SampleHeader + "\n"); err != nil {
		return err
	}
	for _, v := range samples {
		if _, err := bw.WriteString(strconv.FormatInt(v, 10)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
