package ops

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"

	"github.com/harrison/filebatch/internal/executor"
	"github.com/harrison/filebatch/internal/filelock"
	"github.com/harrison/filebatch/internal/models"
)

// DefaultHashAlgo is used when no algorithm is configured.
const DefaultHashAlgo = "blake3"

var hashers = map[string]func() hash.Hash{
	"blake3": func() hash.Hash { return blake3.New() },
	"sha256": sha256.New,
	"md5":    md5.New,
}

// DuplicateGroup is a set of files sharing one digest.
type DuplicateGroup struct {
	Digest string
	Size   int64
	Paths  []string
}

// Reclaimable is the number of bytes freed by keeping a single copy.
func (g DuplicateGroup) Reclaimable() int64 {
	return g.Size * int64(len(g.Paths)-1)
}

// DuplicateIndex groups paths by digest. It is safe for concurrent use.
type DuplicateIndex struct {
	mu       sync.Mutex
	byDigest map[string][]string
	sizes    map[string]int64
}

// NewDuplicateIndex creates an empty index.
func NewDuplicateIndex() *DuplicateIndex {
	return &DuplicateIndex{
		byDigest: make(map[string][]string),
		sizes:    make(map[string]int64),
	}
}

// Add records path under digest.
func (d *DuplicateIndex) Add(digest, path string, size int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byDigest[digest] = append(d.byDigest[digest], path)
	d.sizes[digest] = size
}

// Groups returns digests seen on more than one path, largest reclaimable
// space first. Paths within a group are sorted.
func (d *DuplicateIndex) Groups() []DuplicateGroup {
	d.mu.Lock()
	defer d.mu.Unlock()

	var groups []DuplicateGroup
	for digest, paths := range d.byDigest {
		if len(paths) < 2 {
			continue
		}
		sorted := append([]string(nil), paths...)
		sort.Strings(sorted)
		groups = append(groups, DuplicateGroup{Digest: digest, Size: d.sizes[digest], Paths: sorted})
	}

	sort.Slice(groups, func(i, j int) bool {
		ri, rj := groups[i].Reclaimable(), groups[j].Reclaimable()
		if ri != rj {
			return ri > rj
		}
		return groups[i].Digest < groups[j].Digest
	})
	return groups
}

type hashOp struct {
	algo     string
	manifest string
	dryRun   bool
	index    *DuplicateIndex

	// manifestMu serializes this process's appends; the file lock covers
	// other processes sharing the manifest.
	manifestMu sync.Mutex
}

func newHash(o Options) *hashOp {
	algo := strings.ToLower(strings.TrimSpace(o.Algo))
	if algo == "" {
		algo = DefaultHashAlgo
	}
	return &hashOp{
		algo:     algo,
		manifest: o.Manifest,
		dryRun:   o.DryRun,
		index:    NewDuplicateIndex(),
	}
}

func (o *hashOp) Name() string { return "hash" }
func (o *hashOp) Description() string {
	return "Digest files (blake3, sha256, md5), write an optional manifest and report duplicates"
}
func (o *hashOp) DefaultInclude() []string { return nil }

func (o *hashOp) Preflight() error {
	if _, ok := hashers[o.algo]; !ok {
		return executor.NewConfigurationError("algo", "unsupported hash algorithm %q (use blake3, sha256 or md5)", o.algo)
	}
	return nil
}

// Index exposes the duplicate index filled by Apply.
func (o *hashOp) Index() *DuplicateIndex {
	return o.index
}

func (o *hashOp) Apply(ctx context.Context, entry models.PathEntry) (models.TaskResult, error) {
	newHasher, ok := hashers[o.algo]
	if !ok {
		return models.TaskResult{}, fmt.Errorf("unsupported hash algorithm %q", o.algo)
	}

	f, err := os.Open(entry.Path)
	if err != nil {
		return models.TaskResult{}, err
	}
	defer f.Close()

	h := newHasher()
	n, err := io.Copy(h, f)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("read %s: %w", entry.Path, err)
	}
	digest := hex.EncodeToString(h.Sum(nil))

	o.index.Add(digest, entry.Path, n)

	if o.manifest != "" && !o.dryRun {
		if err := o.appendManifest(ctx, digest, entry.Path); err != nil {
			return models.TaskResult{}, fmt.Errorf("write manifest: %w", err)
		}
	}

	return models.Success(entry, n, n).WithDetail(digest), nil
}

func (o *hashOp) appendManifest(ctx context.Context, digest, path string) error {
	o.manifestMu.Lock()
	defer o.manifestMu.Unlock()
	return filelock.LockAndAppend(ctx, o.manifest, []byte(fmt.Sprintf("%s  %s\n", digest, path)))
}

// Report prints duplicate groups found during the run.
func (o *hashOp) Report(w io.Writer) error {
	groups := o.index.Groups()
	if len(groups) == 0 {
		_, err := fmt.Fprintln(w, "No duplicate files found")
		return err
	}

	var reclaimable int64
	for _, g := range groups {
		reclaimable += g.Reclaimable()
	}

	if _, err := fmt.Fprintf(w, "Duplicates: %d groups, %s reclaimable\n",
		len(groups), humanize.Bytes(uint64(reclaimable))); err != nil {
		return err
	}
	for _, g := range groups {
		fmt.Fprintf(w, "  %s (%s x %d)\n", shortDigest(g.Digest), humanize.Bytes(uint64(g.Size)), len(g.Paths))
		for _, p := range g.Paths {
			fmt.Fprintf(w, "    %s\n", p)
		}
	}
	return nil
}

func shortDigest(digest string) string {
	if len(digest) > 16 {
		return digest[:16]
	}
	return digest
}
