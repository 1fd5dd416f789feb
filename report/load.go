package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"unicode"
)

// LoadRuns reads runs encoded as newline-delimited JSON or a JSON array.
func LoadRuns(path string) ([]Run, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadRuns(file)
}

// ReadRuns is LoadRuns for an open reader.
func ReadRuns(r io.Reader) ([]Run, error) {
	reader := bufio.NewReader(r)

	for {
		b, err := reader.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}

		if unicode.IsSpace(rune(b[0])) {
			if _, err := reader.ReadByte(); err != nil {
				return nil, err
			}
			continue
		}

		if b[0] == '[' {
			var runs []Run
			decoder := json.NewDecoder(reader)
			if err := decoder.Decode(&runs); err != nil {
				return nil, err
			}
			return runs, nil
		}

		break
	}

	decoder := json.NewDecoder(reader)
	runs := make([]Run, 0)
	for {
		var run Run
		if err := decoder.Decode(&run); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, nil
}
