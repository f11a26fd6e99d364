package store

import (
	"errors"
	"strconv"
)

var errNotAnInteger = errors.New("ERR value is not an integer or out of range")

func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, errNotAnInteger
	}
	return n, nil
}

func formatInt64(n int64) []byte {
	return strconv.AppendInt(nil, n, 10)
}
