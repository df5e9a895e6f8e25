package trim

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// Artifact describes one produced output file.
type Artifact struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	Uncompressed int64  `json:"uncompressed,omitempty"`
	Problem      string `json:"problem,omitempty"`
}

// inspectArtifact stats path and, for gzip outputs, checks the stream decodes to the end.
func inspectArtifact(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{Path: path}, err
	}

	art := Artifact{Path: path, Size: info.Size()}
	if !strings.HasSuffix(path, ".gz") {
		return art, nil
	}

	n, err := gunzipLength(path)
	art.Uncompressed = n
	if err != nil {
		art.Problem = err.Error()
	}
	return art, nil
}

func gunzipLength(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	gr, err := pgzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("gzip header: %w", err)
	}
	defer gr.Close()

	n, err := io.Copy(io.Discard, gr)
	if err != nil {
		return n, fmt.Errorf("gzip stream: %w", err)
	}
	return n, nil
}
