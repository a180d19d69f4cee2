package runtime

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadTrace decodes a JSON-lines trace, one event per line.
func ReadTrace(r io.Reader) ([]Event, error) {
	var trace []Event
	dec := json.NewDecoder(bufio.NewReader(r))
	for dec.More() {
		var e Event
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode event %d: %w", len(trace), err)
		}
		trace = append(trace, e)
	}
	return trace, nil
}

// WriteTrace encodes trace as JSON lines.
func WriteTrace(w io.Writer, trace []Event) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, e := range trace {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return bw.Flush()
}

// LoadTrace reads a trace file written by SaveTrace.
func LoadTrace(filename string) ([]Event, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()
	return ReadTrace(f)
}

// SaveTrace writes a trace to a JSON-lines file.
func SaveTrace(filename string, trace []Event) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := WriteTrace(f, trace); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
