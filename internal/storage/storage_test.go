package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fastp-batch/internal/domain"
)

func TestResolveLocalPathPassesThrough(t *testing.T) {
	root := t.TempDir()
	reads := filepath.Join(root, "SRR579292_1.fastq")
	require.NoError(t, os.WriteFile(reads, []byte("@r\nA\n+\nI\n"), 0o644))

	s := NewStager(filepath.Join(root, "cache"))

	got, err := s.Resolve(context.Background(), domain.FileRef(reads))
	require.NoError(t, err)
	assert.Equal(t, reads, got)

	got, err = s.Resolve(context.Background(), domain.FileRef("file://"+reads))
	require.NoError(t, err)
	assert.Equal(t, reads, got)
}

func TestResolveMissingLocalPathFails(t *testing.T) {
	s := NewStager(t.TempDir())
	_, err := s.Resolve(context.Background(), domain.FileRef("/does/not/exist.fq"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestResolveRejectsUnknownScheme(t *testing.T) {
	s := NewStager(t.TempDir())
	_, err := s.Resolve(context.Background(), domain.FileRef("ftp://host/reads.fq"))
	require.ErrorContains(t, err, "unsupported file reference scheme")
}

func TestResolveDownloadsRemoteOnce(t *testing.T) {
	cache := t.TempDir()
	var calls int32
	var opened string
	s := NewStagerForTests(cache, func(location string) (io.ReadCloser, error) {
		atomic.AddInt32(&calls, 1)
		opened = location
		return io.NopCloser(strings.NewReader(">a1\nAGATCGGAAGAGC\n")), nil
	})

	ref := domain.FileRef("s3://latch-public/test-data/4318/sample_adapters.fa")
	first, err := s.Resolve(context.Background(), ref)
	require.NoError(t, err)
	second, err := s.Resolve(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "https://latch-public.s3.amazonaws.com/test-data/4318/sample_adapters.fa", opened)
	assert.True(t, strings.HasSuffix(first, "-sample_adapters.fa"), first)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, ">a1\nAGATCGGAAGAGC\n", string(data))
}

func TestResolveRemoteFailureLeavesNoCacheEntry(t *testing.T) {
	cache := t.TempDir()
	s := NewStagerForTests(cache, func(string) (io.ReadCloser, error) {
		return nil, errors.New("network down")
	})

	_, err := s.Resolve(context.Background(), domain.FileRef("https://example.org/r1.fastq.gz"))
	require.ErrorContains(t, err, "network down")

	entries, err := os.ReadDir(cache)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCacheNameDropsCompressionSuffix(t *testing.T) {
	name := cacheName("https://example.org/data/r1.fastq.gz")
	assert.True(t, strings.HasSuffix(name, "-r1.fastq"), name)
	assert.NotEqual(t, name, cacheName("https://example.org/other/r1.fastq.gz"))
}

func TestStorePublishCopiesFiles(t *testing.T) {
	root := t.TempDir()
	work := filepath.Join(root, "fastp_results")
	require.NoError(t, os.MkdirAll(work, 0o755))
	files := []string{
		filepath.Join(work, "s1.fastp.json"),
		filepath.Join(work, "s1.fastp.html"),
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(f, []byte(filepath.Base(f)), 0o644))
	}

	store := NewStore(filepath.Join(root, "store"))
	ref, err := store.Publish(context.Background(), work, "fastp_results/s1", files)
	require.NoError(t, err)

	assert.Equal(t, "fastp_results/s1", ref.Remote)
	assert.Equal(t, work, ref.Local)
	assert.Equal(t, []string{"s1.fastp.json", "s1.fastp.html"}, ref.Files)
	assert.True(t, strings.HasPrefix(ref.URI, "file://"))

	data, err := os.ReadFile(filepath.Join(root, "store", "fastp_results", "s1", "s1.fastp.html"))
	require.NoError(t, err)
	assert.Equal(t, "s1.fastp.html", string(data))

	// idempotent republish
	_, err = store.Publish(context.Background(), work, "fastp_results/s1", files)
	require.NoError(t, err)
}

func TestStorePublishRejectsEmptyRemote(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Publish(context.Background(), "", "  ", nil)
	require.Error(t, err)
}

func TestStorePublishConfinesTraversal(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "store"))
	ref, err := store.Publish(context.Background(), "", "../../escape", nil)
	require.NoError(t, err)
	assert.Equal(t, "escape", ref.Remote)
	_, statErr := os.Stat(filepath.Join(root, "store", "escape"))
	assert.NoError(t, statErr)
}
