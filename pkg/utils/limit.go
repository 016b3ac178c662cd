package utils

import (
	"io"

	"github.com/juju/errors"
)

func ReadAllLimit(r io.Reader, max int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if int64(len(b)) > max {
		return nil, errors.NewNotValid(nil, "file too large")
	}
	return b, nil
}
