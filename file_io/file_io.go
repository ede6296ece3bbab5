package file_io

import (
	"fmt"
	"os"
)

func Exists(inputFilePath string) bool {
	_, err := os.Stat(inputFilePath)
	return err == nil
}

type WriteMode uint8

const (
	WRITE_APPEND WriteMode = iota
	WRITE_OVERWRITE
)

func WriteToFile(filePath string, data []byte, mode WriteMode) (int, error) {
	var flags int
	switch mode {
	case WRITE_APPEND:
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	case WRITE_OVERWRITE:
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	default:
		return 0, fmt.Errorf("file_io: unknown write mode: %d", mode)
	}
	file, err := os.OpenFile(filePath, flags, 0o644)
	if err != nil {
		return 0, fmt.Errorf("file_io: could not open %s for writing: %w", filePath, err)
	}
	defer file.Close()
	n, err := file.Write(data)
	if err != nil {
		return n, fmt.Errorf("file_io: could not write to %s: %w", filePath, err)
	}
	return n, nil
}
