package trim

import (
	"path/filepath"
	"strconv"

	"fastp-batch/internal/domain"
)

// Outputs are the artifact paths the trimmer writes for one sample.
type Outputs struct {
	Out1 string
	Out2 string
	JSON string
	HTML string
}

// Files lists every expected artifact, reads first.
func (o Outputs) Files() []string {
	files := []string{o.Out1}
	if o.Out2 != "" {
		files = append(files, o.Out2)
	}
	return append(files, o.JSON, o.HTML)
}

// LocalFiles are input references already resolved to local paths.
type LocalFiles struct {
	Read1        string
	Read2        string
	AdapterFasta string
}

// OutputPaths names the artifacts of sample name inside dir.
func OutputPaths(dir, name string, readType domain.ReadType) Outputs {
	prefix := filepath.Join(dir, name)
	out := Outputs{
		JSON: prefix + ".fastp.json",
		HTML: prefix + ".fastp.html",
	}
	if readType == domain.ReadTypePaired {
		out.Out1 = prefix + "_1.trim.fastq.gz"
		out.Out2 = prefix + "_2.trim.fastq.gz"
	} else {
		out.Out1 = prefix + ".trim.fastq.gz"
	}
	return out
}

// BuildArgs assembles the trimmer argument list for one job. autoDetect
// reports that no adapter was configured and the trimmer will look for one.
func BuildArgs(job domain.JobInput, local LocalFiles, out Outputs, threads int) (args []string, autoDetect bool) {
	args = []string{
		"--in1", local.Read1,
		"--out1", out.Out1,
		"--json", out.JSON,
		"--html", out.HTML,
		"--thread", strconv.Itoa(threads),
		"--qualified_quality_phred", strconv.Itoa(job.QualityThreshold),
	}

	paired := job.ReadType() == domain.ReadTypePaired
	if paired {
		args = append(args, "--in2", local.Read2, "--out2", out.Out2)
	}

	switch a := job.AdapterOrAuto().(type) {
	case domain.FastaAdapter:
		args = append(args, "--adapter_fasta", local.AdapterFasta)
	case domain.LiteralAdapter:
		args = append(args, "--adapter_sequence", a.Sequence)
	case domain.AutoDetect:
		autoDetect = true
		if paired {
			args = append(args, "--detect_adapter_for_pe")
		}
	}

	return args, autoDetect
}
