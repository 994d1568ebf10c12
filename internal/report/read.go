package report

import (
	"encoding/json"
	"fmt"
	"os"
)

// excerptLen bounds how much of a malformed file is echoed into errors.
const excerptLen = 200

// ReadLight decodes the report at path into its light form.
func ReadLight(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("report: reading %s: %w", path, err)
	}
	return DecodeLight(data)
}

// DecodeLight decodes a light report from raw JSON. Unknown fields, including
// the time series of the full report, are ignored.
func DecodeLight(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("%w: %v (content: %s)", ErrInvalidReport, err, excerpt(data))
	}
	return r, nil
}

// ReadFull returns the complete report document at path, time series included.
// The content is checked to be JSON but is otherwise passed through untouched.
func ReadFull(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: reading %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON (content: %s)", ErrInvalidReport, path, excerpt(data))
	}
	return data, nil
}

func excerpt(data []byte) string {
	if len(data) > excerptLen {
		return string(data[:excerptLen]) + "... (truncated)"
	}
	return string(data)
}
