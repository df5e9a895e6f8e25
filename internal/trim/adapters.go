package trim

import (
	"fmt"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// CountAdapters returns the number of records in an adapter FASTA file.
func CountAdapters(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open adapter fasta %q: %w", path, err)
	}
	defer f.Close()

	template := linear.NewSeq("", nil, alphabet.DNAredundant)
	sc := seqio.NewScanner(fasta.NewReader(f, template))

	n := 0
	for sc.Next() {
		n++
	}
	if err := sc.Error(); err != nil {
		return n, fmt.Errorf("read adapter fasta %q: %w", path, err)
	}
	return n, nil
}
