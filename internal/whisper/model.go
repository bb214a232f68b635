package whisper

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

var modelMagics = [][]byte{
	[]byte("lmgg"), // ggml, 0x67676d6c little-endian
	[]byte("GGUF"),
}

// CheckModel reports whether path looks like a loadable whisper model, with
// a reason when it does not.
func CheckModel(path string) (bool, string) {
	if path == "" {
		return false, "no model path configured"
	}
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Sprintf("model not installed: %s", path)
		}
		return false, fmt.Sprintf("model not readable: %v", err)
	}
	if fi.IsDir() {
		return false, fmt.Sprintf("model path is a directory: %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Sprintf("model not readable: %v", err)
	}
	defer f.Close()
	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil {
		return false, fmt.Sprintf("model file truncated: %s", path)
	}
	for _, m := range modelMagics {
		if bytes.Equal(head, m) {
			return true, "ok"
		}
	}
	return false, fmt.Sprintf("unrecognized model format: %s", path)
}
