// Package descriptor reads and writes the nexus-maven-repository-index
// properties descriptor (spec §6): the small UTF-8 key=value sidecar file
// that records a context's identity and incremental publication state.
package descriptor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Well-known descriptor keys (spec §6).
const (
	KeyIndexID         = "nexus.index.id"
	KeyTimestamp       = "nexus.index.timestamp"
	KeyLegacyTimestamp = "nexus.index.legacy-timestamp"
	KeyChainID         = "nexus.index.chain-id"
	KeyChunkCounter    = "nexus.index.chunk-counter"
	chunkKeyPrefix     = "nexus.index.incremental-chunk-"
)

// TimestampLayout is the GMT, millisecond-precision layout spec §6 mandates
// for nexus.index.timestamp and nexus.index.legacy-timestamp.
const TimestampLayout = "20060102150405.000"

// Descriptor is the parsed form of the properties sidecar. Unknown keys
// are preserved verbatim so a round trip never loses operator-added data.
type Descriptor struct {
	IndexID         string
	Timestamp       string
	LegacyTimestamp string
	ChainID         string
	ChunkCounter    int

	// Chunks maps chunk number to its recorded chain-id, i.e. the
	// "incremental-chunk-<k>" markers, kept only for the retained window.
	Chunks map[int]string

	// Extra carries any other key=value pair found in the file untouched.
	Extra map[string]string
}

// New returns an empty descriptor with its maps initialized.
func New() *Descriptor {
	return &Descriptor{Chunks: make(map[int]string), Extra: make(map[string]string)}
}

// FormatTimestamp renders t in the descriptor's GMT millisecond layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Load reads and parses the descriptor at path. A missing file is reported
// via os.IsNotExist on the returned error so callers can distinguish
// "initialize fresh" from a genuine I/O failure.
func Load(path string) (*Descriptor, error) {
	f, err := os.Open(path) //nolint:gosec // path is an operator-supplied descriptor location
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads descriptor properties from r. Malformed lines (no '=') are
// skipped, since a corrupt descriptor must be treated as "missing" by the
// caller (spec §4.5), not fail outright.
func Parse(r io.Reader) (*Descriptor, error) {
	d := New()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])

		switch {
		case key == KeyIndexID:
			d.IndexID = value
		case key == KeyTimestamp:
			d.Timestamp = value
		case key == KeyLegacyTimestamp:
			d.LegacyTimestamp = value
		case key == KeyChainID:
			d.ChainID = value
		case key == KeyChunkCounter:
			n, err := strconv.Atoi(value)
			if err == nil {
				d.ChunkCounter = n
			}
		case strings.HasPrefix(key, chunkKeyPrefix):
			kStr := strings.TrimPrefix(key, chunkKeyPrefix)
			k, err := strconv.Atoi(kStr)
			if err == nil {
				d.Chunks[k] = value
			}
		default:
			d.Extra[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("descriptor: parse: %w", err)
	}
	return d, nil
}

// Save writes d to path atomically (temp-file + rename), matching the
// packer's file-level atomicity contract (spec §7).
func (d *Descriptor) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := d.WriteTo(tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// WriteTo serializes d as UTF-8 key=value lines, sorted for deterministic
// output (a stable serialization is what makes the checksum-correctness
// property testable across re-packs of identical state).
func (d *Descriptor) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	writeLine := func(k, v string) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}

	if d.IndexID != "" {
		writeLine(KeyIndexID, d.IndexID)
	}
	if d.Timestamp != "" {
		writeLine(KeyTimestamp, d.Timestamp)
	}
	if d.LegacyTimestamp != "" {
		writeLine(KeyLegacyTimestamp, d.LegacyTimestamp)
	}
	if d.ChainID != "" {
		writeLine(KeyChainID, d.ChainID)
	}
	writeLine(KeyChunkCounter, strconv.Itoa(d.ChunkCounter))

	chunkKeys := make([]int, 0, len(d.Chunks))
	for k := range d.Chunks {
		chunkKeys = append(chunkKeys, k)
	}
	sort.Ints(chunkKeys)
	for _, k := range chunkKeys {
		writeLine(fmt.Sprintf("%s%d", chunkKeyPrefix, k), d.Chunks[k])
	}

	extraKeys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		writeLine(k, d.Extra[k])
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// EvictOldest removes the oldest retained chunk marker, keeping at most
// retain entries. Callers invoke this after recording a new chunk marker
// so the descriptor never grows unbounded (spec §4.5).
func (d *Descriptor) EvictOldest(retain int) {
	for len(d.Chunks) > retain {
		oldest := -1
		for k := range d.Chunks {
			if oldest == -1 || k < oldest {
				oldest = k
			}
		}
		if oldest == -1 {
			return
		}
		delete(d.Chunks, oldest)
	}
}
