package tagstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// APEv2 support has no pack-grounded library (see DESIGN.md); this is a
// minimal reader/writer for the footer + flat key/value item layout used by
// WavPack's APEv2 tag dialect, built directly against the format
// described in the original Python implementation's tag handling
// (src/libguard/lgfile.py) rather than any Go example.

const (
	apePreamble   = "APETAGEX"
	apeFooterSize = 32
	apeVersion    = 2000
	// apeFlagHasHeader / apeFlagIsHeader mark bits in the 32-bit tag flags
	// field (footer-only tags, the common case, set neither).
	apeFlagHasHeader = 1 << 31
	apeFlagIsHeader  = 1 << 29
)

type apeItem struct {
	key   string
	value string
}

type apeHandle struct {
	path     string
	items    []apeItem
	audioEnd int64  // offset where audio data ends and the tag block begins
	trailer  []byte // bytes after the tag block (e.g. an ID3v1 tag), preserved verbatim
}

func openAPEv2(path string) (Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	items, audioEnd, trailer, err := parseAPEv2(data)
	if err != nil {
		// No existing tag (or unreadable one): start fresh, appending at
		// end-of-file with no trailer.
		return &apeHandle{path: path, items: nil, audioEnd: int64(len(data)), trailer: nil}, nil
	}
	return &apeHandle{path: path, items: items, audioEnd: audioEnd, trailer: trailer}, nil
}

// parseAPEv2 locates a footer either at true end-of-file or immediately
// before a trailing 128-byte ID3v1 tag, and parses its items.
func parseAPEv2(data []byte) ([]apeItem, int64, []byte, error) {
	if len(data) < apeFooterSize {
		return nil, 0, nil, fmt.Errorf("tagstore: file too small for an APEv2 footer")
	}

	trailer := []byte(nil)
	footerEnd := len(data)
	if len(data) >= 128 && bytes.Equal(data[len(data)-128:len(data)-125], []byte("TAG")) {
		trailer = append([]byte(nil), data[len(data)-128:]...)
		footerEnd = len(data) - 128
	}

	if footerEnd < apeFooterSize {
		return nil, 0, nil, fmt.Errorf("tagstore: no room for an APEv2 footer")
	}
	footer := data[footerEnd-apeFooterSize : footerEnd]
	if string(footer[0:8]) != apePreamble {
		return nil, 0, nil, fmt.Errorf("tagstore: no APEv2 footer present")
	}

	tagSize := binary.LittleEndian.Uint32(footer[12:16])
	itemCount := binary.LittleEndian.Uint32(footer[16:20])

	tagStart := footerEnd - int(tagSize)
	if tagStart < 0 || tagStart > footerEnd-apeFooterSize {
		return nil, 0, nil, fmt.Errorf("tagstore: corrupt APEv2 tag size")
	}

	itemsBlock := data[tagStart : footerEnd-apeFooterSize]
	items := make([]apeItem, 0, itemCount)
	off := 0
	for i := 0; i < int(itemCount); i++ {
		if off+8 > len(itemsBlock) {
			break
		}
		valueSize := int(binary.LittleEndian.Uint32(itemsBlock[off : off+4]))
		off += 8 // skip value size + flags
		nul := bytes.IndexByte(itemsBlock[off:], 0)
		if nul < 0 {
			break
		}
		key := string(itemsBlock[off : off+nul])
		off += nul + 1
		if off+valueSize > len(itemsBlock) {
			break
		}
		value := string(itemsBlock[off : off+valueSize])
		off += valueSize
		items = append(items, apeItem{key: key, value: value})
	}

	return items, int64(tagStart), trailer, nil
}

func (h *apeHandle) indexOf(key string) int {
	for i, it := range h.items {
		if strings.EqualFold(it.key, key) {
			return i
		}
	}
	return -1
}

func (h *apeHandle) Get(key string) (string, bool) {
	if i := h.indexOf(key); i >= 0 {
		return h.items[i].value, true
	}
	return "", false
}

func (h *apeHandle) Set(key, value string) {
	if i := h.indexOf(key); i >= 0 {
		h.items[i].value = value
		return
	}
	h.items = append(h.items, apeItem{key: key, value: value})
}

func (h *apeHandle) Remove(key string) {
	if i := h.indexOf(key); i >= 0 {
		h.items = append(h.items[:i], h.items[i+1:]...)
	}
}

func (h *apeHandle) Save() error {
	audio, err := readAudioPrefix(h.path, h.audioEnd)
	if err != nil {
		return err
	}

	var itemsBlock bytes.Buffer
	for _, it := range h.items {
		var sizeAndFlags [8]byte
		binary.LittleEndian.PutUint32(sizeAndFlags[0:4], uint32(len(it.value)))
		// flags left at 0: UTF-8 text, read/write, item-level.
		itemsBlock.Write(sizeAndFlags[:])
		itemsBlock.WriteString(it.key)
		itemsBlock.WriteByte(0)
		itemsBlock.WriteString(it.value)
	}

	tagSize := itemsBlock.Len() + apeFooterSize
	footer := make([]byte, apeFooterSize)
	copy(footer[0:8], apePreamble)
	binary.LittleEndian.PutUint32(footer[8:12], apeVersion)
	binary.LittleEndian.PutUint32(footer[12:16], uint32(tagSize))
	binary.LittleEndian.PutUint32(footer[16:20], uint32(len(h.items)))
	binary.LittleEndian.PutUint32(footer[20:24], apeFlagIsHeader^apeFlagIsHeader) // footer-only: no header bit set
	// footer[24:32] reserved, left zero.

	var out bytes.Buffer
	out.Write(audio)
	out.Write(itemsBlock.Bytes())
	out.Write(footer)
	out.Write(h.trailer)

	tmp := h.path + ".lguard-tmp"
	if err := os.WriteFile(tmp, out.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, h.path)
}

func (h *apeHandle) Close() error {
	return nil
}

func readAudioPrefix(path string, n int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, 0); err != nil && n > 0 {
		// A short read is only an error if we actually expected bytes.
		if !isEOFAtExactEnd(f, n, err) {
			return nil, err
		}
	}
	return buf, nil
}

func isEOFAtExactEnd(f *os.File, n int64, err error) bool {
	info, statErr := f.Stat()
	if statErr != nil {
		return false
	}
	return info.Size() == n
}
