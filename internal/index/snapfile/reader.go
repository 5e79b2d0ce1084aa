package snapfile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stackseek/stackseek/internal/index"
)

// Load reads a snapshot file back into a sealed in-memory Snapshot. The
// dictionary and stats checksums are verified before anything is trusted.
func Load(path string) (*index.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading snapshot header: %w", err)
	}
	h := decodeHeader(headerBytes)
	if h.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid snapshot file: bad magic bytes %x", h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot format version %d", h.Version)
	}

	dictData := make([]byte, h.DictSize)
	if _, err := f.ReadAt(dictData, h.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	statsData := make([]byte, h.StatsSize)
	if _, err := f.ReadAt(statsData, h.StatsOffset); err != nil {
		return nil, fmt.Errorf("reading stats section: %w", err)
	}
	if err := verifyFooter(f, h, dictData, statsData); err != nil {
		return nil, err
	}

	var dict []dictEntry
	if err := json.Unmarshal(dictData, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	postings := make(map[string]index.PostingList, len(dict))
	for _, entry := range dict {
		block := make([]byte, entry.PostLen)
		if _, err := f.ReadAt(block, int64(HeaderSize)+entry.PostOffset); err != nil {
			return nil, fmt.Errorf("reading postings for term %q: %w", entry.Term, err)
		}
		var list index.PostingList
		if err := json.Unmarshal(block, &list); err != nil {
			return nil, fmt.Errorf("parsing postings for term %q: %w", entry.Term, err)
		}
		postings[entry.Term] = list
	}

	var section statsSection
	if err := json.Unmarshal(statsData, &section); err != nil {
		return nil, fmt.Errorf("parsing stats section: %w", err)
	}
	stats := make(map[int64]index.DocStats, len(section.Docs))
	meta := make(map[int64]index.DocMeta, len(section.Docs))
	for _, rec := range section.Docs {
		stats[rec.ID] = rec.Stats
		meta[rec.ID] = rec.Meta
	}

	snap := index.Assemble(
		h.Generation,
		time.Unix(h.BuiltAtUnix, 0).UTC(),
		postings,
		stats,
		meta,
		section.AvgDocLength,
	)
	return snap, nil
}

func verifyFooter(f *os.File, h header, dictData, statsData []byte) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stating snapshot file: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, info.Size()-int64(FooterSize)); err != nil {
		return fmt.Errorf("reading footer: %w", err)
	}
	wantDict := binary.LittleEndian.Uint32(footer[0:4])
	wantStats := binary.LittleEndian.Uint32(footer[4:8])
	if got := crc32.ChecksumIEEE(dictData); got != wantDict {
		return fmt.Errorf("dictionary checksum mismatch: got %x want %x", got, wantDict)
	}
	if got := crc32.ChecksumIEEE(statsData); got != wantStats {
		return fmt.Errorf("stats checksum mismatch: got %x want %x", got, wantStats)
	}
	return nil
}

// Latest returns the path of the newest snapshot file in dir, or "" when
// none exists.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading snapshot directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".ssk" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	// Generation is zero-padded in the name, so lexicographic order is
	// generation order.
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}
