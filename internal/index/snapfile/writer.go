// Package snapfile persists index snapshots to disk in a single-file
// format: a fixed binary header, JSON posting blocks addressed by a term
// dictionary, a document statistics section carrying the generation and
// avgdl record, and a crc32-protected footer. Files are written to a .tmp
// path and renamed, so a crash never leaves a half-written snapshot behind.
package snapfile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/stackseek/stackseek/internal/index"
)

const (
	// MagicBytes identifies a valid .ssk snapshot file.
	MagicBytes    uint32 = 0x53534B53
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// header is the fixed-size block at the start of every snapshot file.
type header struct {
	Magic       uint32
	Version     uint32
	TermCount   uint32
	DocCount    uint32
	Generation  uint64
	BuiltAtUnix int64
	DictOffset  int64
	DictSize    int64
	StatsOffset int64
	StatsSize   int64
}

// dictEntry maps a term to its posting block within the file.
type dictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// docRecord carries one document's stats and metadata in the stats section.
type docRecord struct {
	ID    int64          `json:"id"`
	Stats index.DocStats `json:"stats"`
	Meta  index.DocMeta  `json:"meta"`
}

// statsSection is the JSON payload holding everything that is not a
// posting list: per-document records plus the avgdl record.
type statsSection struct {
	AvgDocLength float64     `json:"avg_doc_length"`
	Docs         []docRecord `json:"docs"`
}

// Write serializes the snapshot into dir and returns the file name. The
// on-disk content round-trips exactly: every term, field, frequency, and
// position survives a Write/Load cycle.
func Write(dir string, snap *index.Snapshot) (string, error) {
	if snap == nil || snap.DocCount() == 0 {
		return "", fmt.Errorf("cannot write empty snapshot")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	name := fmt.Sprintf("snap_%016d.ssk", snap.Generation())
	finalPath := filepath.Join(dir, name)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("reserving header: %w", err)
	}

	postingsStart := int64(HeaderSize)
	offset := postingsStart
	terms := snap.Terms()
	dict := make([]dictEntry, 0, len(terms))
	for _, term := range terms {
		postings := snap.Postings(term)
		block, err := json.Marshal(postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", term, err)
		}
		if _, err := f.Write(block); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", term, err)
		}
		dict = append(dict, dictEntry{
			Term:       term,
			PostOffset: offset - postingsStart,
			PostLen:    len(block),
			DocFreq:    postings.DocFreq(),
		})
		offset += int64(len(block))
	}

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	dictOffset := offset
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	offset += int64(len(dictData))

	section := statsSection{AvgDocLength: snap.AvgDocLength()}
	for _, id := range snap.DocIDs() {
		stats, _ := snap.Stats(id)
		meta, _ := snap.Meta(id)
		section.Docs = append(section.Docs, docRecord{ID: id, Stats: stats, Meta: meta})
	}
	statsData, err := json.Marshal(section)
	if err != nil {
		return "", fmt.Errorf("marshaling stats section: %w", err)
	}
	statsOffset := offset
	if _, err := f.Write(statsData); err != nil {
		return "", fmt.Errorf("writing stats section: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(statsData))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictOffset))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(len(statsData)))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	h := header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		TermCount:   uint32(len(dict)),
		DocCount:    uint32(snap.DocCount()),
		Generation:  snap.Generation(),
		BuiltAtUnix: snap.BuiltAt().Unix(),
		DictOffset:  dictOffset,
		DictSize:    int64(len(dictData)),
		StatsOffset: statsOffset,
		StatsSize:   int64(len(statsData)),
	}
	encodeHeader(headerBytes, h)
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming snapshot file: %w", err)
	}
	return name, nil
}

func encodeHeader(buf []byte, h header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(buf[16:24], h.Generation)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.BuiltAtUnix))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.StatsOffset))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(h.StatsSize))
}

func decodeHeader(buf []byte) header {
	return header{
		Magic:       binary.LittleEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint32(buf[4:8]),
		TermCount:   binary.LittleEndian.Uint32(buf[8:12]),
		DocCount:    binary.LittleEndian.Uint32(buf[12:16]),
		Generation:  binary.LittleEndian.Uint64(buf[16:24]),
		BuiltAtUnix: int64(binary.LittleEndian.Uint64(buf[24:32])),
		DictOffset:  int64(binary.LittleEndian.Uint64(buf[32:40])),
		DictSize:    int64(binary.LittleEndian.Uint64(buf[40:48])),
		StatsOffset: int64(binary.LittleEndian.Uint64(buf[48:56])),
		StatsSize:   int64(binary.LittleEndian.Uint64(buf[56:64])),
	}
}

// Prune removes all snapshot files in dir except the named one. Called
// after a successful write so only the freshest generation survives.
func Prune(dir, keep string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading snapshot directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == keep || filepath.Ext(e.Name()) != ".ssk" {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("removing stale snapshot %s: %w", e.Name(), err)
		}
	}
	return nil
}
