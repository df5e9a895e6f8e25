package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fastp-batch/internal/domain"
	"fastp-batch/internal/storage"
	"fastp-batch/internal/trim"
)

func pairedSamples(n int) []domain.PairedEnd {
	out := make([]domain.PairedEnd, n)
	for i := range out {
		name := fmt.Sprintf("SRR57929%d", i)
		out[i] = domain.PairedEnd{
			Name:  name,
			Read1: domain.FileRef(name + "_1.fastq"),
			Read2: domain.FileRef(name + "_2.fastq"),
		}
	}
	return out
}

func TestOrganizePairedPreservesOrder(t *testing.T) {
	paired := pairedSamples(3)
	inputs, err := Organize(Request{QualityThreshold: 30, PairedEnd: paired})
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	for i, in := range inputs {
		assert.Equal(t, domain.ReadTypePaired, in.ReadType())
		assert.Equal(t, paired[i].Name, in.Name())
		assert.Equal(t, 30, in.QualityThreshold)
		assert.Equal(t, domain.AutoDetect{}, in.Adapter)
	}
}

func TestOrganizeSingleIgnoresPaired(t *testing.T) {
	inputs, err := Organize(Request{
		QualityThreshold: 25,
		SingleEnd:        []domain.SingleEnd{{Name: "testSRR_single", Read1: "r1.fastq"}},
		PairedEnd:        pairedSamples(2),
	})
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, domain.ReadTypeSingle, inputs[0].ReadType())
}

func TestOrganizeEmptySingleListStillWins(t *testing.T) {
	inputs, err := Organize(Request{
		QualityThreshold: 30,
		SingleEnd:        []domain.SingleEnd{},
		PairedEnd:        pairedSamples(2),
	})
	require.NoError(t, err)
	assert.Empty(t, inputs)
}

func TestOrganizeSharesAdapterWithFastaPrecedence(t *testing.T) {
	fasta := domain.FileRef("adapters.fa")
	literal := "AGATCGGAAGAGC"
	inputs, err := Organize(Request{
		QualityThreshold: 30,
		PairedEnd:        pairedSamples(2),
		AdapterFasta:     &fasta,
		AdapterString:    &literal,
	})
	require.NoError(t, err)
	for _, in := range inputs {
		assert.Equal(t, domain.FastaAdapter{File: fasta}, in.Adapter)
	}
}

func TestResolveAdapter(t *testing.T) {
	fasta := domain.FileRef("a.fa")
	literal := "ACGT"
	assert.Equal(t, domain.FastaAdapter{File: fasta}, ResolveAdapter(&fasta, &literal))
	assert.Equal(t, domain.LiteralAdapter{Sequence: literal}, ResolveAdapter(nil, &literal))
	assert.Equal(t, domain.AutoDetect{}, ResolveAdapter(nil, nil))
}

func TestOrganizeRejectsDuplicateNames(t *testing.T) {
	paired := pairedSamples(2)
	paired[1].Name = paired[0].Name
	_, err := Organize(Request{QualityThreshold: 30, PairedEnd: paired})
	require.True(t, errors.Is(err, ErrDuplicateSample), "err = %v", err)
}

// fakeJobRunner runs an injected function per job.
type fakeJobRunner struct {
	run func(ctx context.Context, req trim.Request) (trim.Result, error)
}

func (f *fakeJobRunner) Run(ctx context.Context, req trim.Request) (trim.Result, error) {
	return f.run(ctx, req)
}

func TestExecutorKeepsOrderAndIsolatesFailures(t *testing.T) {
	inputs, err := Organize(Request{QualityThreshold: 30, PairedEnd: pairedSamples(4)})
	require.NoError(t, err)

	runner := &fakeJobRunner{run: func(ctx context.Context, req trim.Request) (trim.Result, error) {
		name := req.Job.Name()
		// finish out of order
		if name == "SRR579290" {
			time.Sleep(20 * time.Millisecond)
		}
		switch name {
		case "SRR579291":
			return trim.Result{Sample: name, Log: trim.CommandLog{ExitCode: 1}}, nil
		case "SRR579292":
			return trim.Result{Sample: name}, errors.New("staging failed")
		}
		return trim.Result{Sample: name, Output: storage.DirRef{Remote: "fastp_results/" + name}}, nil
	}}

	var done int32
	outcomes := NewExecutor(runner, 4).Run(context.Background(), inputs, Hooks{
		Done: func(int, Outcome) { atomic.AddInt32(&done, 1) },
	})

	require.Len(t, outcomes, 4)
	assert.Equal(t, int32(4), done)
	for i, o := range outcomes {
		assert.Equal(t, inputs[i].Name(), o.Job.Name())
	}
	assert.True(t, outcomes[0].OK())
	assert.False(t, outcomes[1].OK())
	assert.Error(t, outcomes[2].Err)
	assert.True(t, outcomes[3].OK())

	refs := Outputs(outcomes)
	assert.Equal(t, "fastp_results/SRR579290", refs[0].Remote)
	assert.Equal(t, "", refs[2].Remote)
	assert.Equal(t, "fastp_results/SRR579293", refs[3].Remote)
}

func TestExecutorRespectsLimit(t *testing.T) {
	inputs, err := Organize(Request{QualityThreshold: 30, PairedEnd: pairedSamples(6)})
	require.NoError(t, err)

	var mu sync.Mutex
	active, peak := 0, 0
	runner := &fakeJobRunner{run: func(ctx context.Context, req trim.Request) (trim.Result, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return trim.Result{}, nil
	}}

	NewExecutor(runner, 2).Run(context.Background(), inputs, Hooks{})
	assert.LessOrEqual(t, peak, 2)
}

func TestExecutorAppliesRequestHook(t *testing.T) {
	inputs, err := Organize(Request{QualityThreshold: 30, PairedEnd: pairedSamples(2)})
	require.NoError(t, err)

	var seen sync.Map
	runner := &fakeJobRunner{run: func(ctx context.Context, req trim.Request) (trim.Result, error) {
		req.OnStage("staging")
		return trim.Result{}, nil
	}}
	NewExecutor(runner, 1).Run(context.Background(), inputs, Hooks{
		Request: func(i int, job domain.JobInput) trim.Request {
			return trim.Request{OnStage: func(stage string) { seen.Store(job.Name(), stage) }}
		},
	})

	for _, in := range inputs {
		v, ok := seen.Load(in.Name())
		require.True(t, ok)
		assert.Equal(t, "staging", v)
	}
}

func TestExecutorCancelledContextSkipsJobs(t *testing.T) {
	inputs, err := Organize(Request{QualityThreshold: 30, PairedEnd: pairedSamples(2)})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeJobRunner{run: func(context.Context, trim.Request) (trim.Result, error) {
		t.Error("runner should not be called")
		return trim.Result{}, nil
	}}
	outcomes := NewExecutor(runner, 2).Run(ctx, inputs, Hooks{})
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}
