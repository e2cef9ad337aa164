package tagstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// Ogg Vorbis comment read/write has no pack-grounded library either (the
// go-flac family only covers the FLAC container); this is a minimal but
// RFC 3533-faithful Ogg page demuxer/muxer that rewrites only the second
// header packet (the Vorbis comment header) and re-pages everything after
// it, leaving the identification header page and every audio packet's
// payload and granule position untouched. See DESIGN.md.

// oggCRC computes the Ogg page checksum: CRC-32 with polynomial 0x04c11db7,
// MSB-first, zero initial value and no final XOR (RFC 3533).
func oggCRC(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc ^= uint32(b) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04c11db7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// oggPage is one demuxed Ogg page.
type oggPage struct {
	granule  int64
	serial   uint32
	sequence uint32
	headerType byte
	segments []byte
	payload  []byte
}

func readOggPages(data []byte) ([]oggPage, error) {
	var pages []oggPage
	off := 0
	for off < len(data) {
		if off+27 > len(data) || string(data[off:off+4]) != "OggS" {
			return nil, fmt.Errorf("tagstore: not a valid Ogg stream at offset %d", off)
		}
		headerType := data[off+5]
		granule := int64(binary.LittleEndian.Uint64(data[off+6 : off+14]))
		serial := binary.LittleEndian.Uint32(data[off+14 : off+18])
		sequence := binary.LittleEndian.Uint32(data[off+18 : off+22])
		segCount := int(data[off+26])
		segTableStart := off + 27
		if segTableStart+segCount > len(data) {
			return nil, fmt.Errorf("tagstore: truncated Ogg segment table")
		}
		segments := data[segTableStart : segTableStart+segCount]

		payloadLen := 0
		for _, s := range segments {
			payloadLen += int(s)
		}
		payloadStart := segTableStart + segCount
		if payloadStart+payloadLen > len(data) {
			return nil, fmt.Errorf("tagstore: truncated Ogg page payload")
		}
		payload := data[payloadStart : payloadStart+payloadLen]

		pages = append(pages, oggPage{
			granule: granule, serial: serial, sequence: sequence,
			headerType: headerType,
			segments:   append([]byte(nil), segments...),
			payload:    append([]byte(nil), payload...),
		})
		off = payloadStart + payloadLen
	}
	return pages, nil
}

// demuxPackets reassembles packets from pages using the lacing rule: a
// segment value of 255 means "more of this packet follows"; any value < 255
// ends the packet. Returns each packet's bytes and the granule of the page
// that completed it.
func demuxPackets(pages []oggPage) ([][]byte, []int64) {
	var packets [][]byte
	var granules []int64
	var cur bytes.Buffer

	for _, p := range pages {
		off := 0
		for _, segLen := range p.segments {
			cur.Write(p.payload[off : off+int(segLen)])
			off += int(segLen)
			if segLen < 255 {
				packets = append(packets, append([]byte(nil), cur.Bytes()...))
				granules = append(granules, p.granule)
				cur.Reset()
			}
		}
	}
	return packets, granules
}

// paginatePacket splits a single packet into 255-byte lacing segments,
// terminating with a value < 255 (0 if the packet length is an exact
// multiple of 255, per RFC 3533).
func paginatePacket(packet []byte) []byte {
	n := len(packet)
	segs := n / 255
	var table bytes.Buffer
	for i := 0; i < segs; i++ {
		table.WriteByte(255)
	}
	table.WriteByte(byte(n % 255))
	return table.Bytes()
}

func writeOggPage(w *bytes.Buffer, serial, sequence uint32, granule int64, headerType byte, segments, payload []byte) {
	var hdr bytes.Buffer
	hdr.WriteString("OggS")
	hdr.WriteByte(0) // version
	hdr.WriteByte(headerType)
	var granuleBuf [8]byte
	binary.LittleEndian.PutUint64(granuleBuf[:], uint64(granule))
	hdr.Write(granuleBuf[:])
	var serialBuf, seqBuf [4]byte
	binary.LittleEndian.PutUint32(serialBuf[:], serial)
	binary.LittleEndian.PutUint32(seqBuf[:], sequence)
	hdr.Write(serialBuf[:])
	hdr.Write(seqBuf[:])
	hdr.Write([]byte{0, 0, 0, 0}) // CRC placeholder
	hdr.WriteByte(byte(len(segments)))
	hdr.Write(segments)
	hdr.Write(payload)

	page := hdr.Bytes()
	crc := oggCRC(page)
	binary.LittleEndian.PutUint32(page[22:26], crc)
	w.Write(page)
}

type oggHandle struct {
	path    string
	packets [][]byte
	granules []int64
	serial  uint32
	comment map[string][]string // uppercased key -> ordered values
	order   []string            // insertion order of uppercased keys
}

func openOggVorbis(path string) (Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pages, err := readOggPages(data)
	if err != nil {
		return nil, err
	}
	if len(pages) < 2 {
		return nil, fmt.Errorf("tagstore: ogg stream missing comment header page")
	}
	packets, granules := demuxPackets(pages)
	if len(packets) < 2 {
		return nil, fmt.Errorf("tagstore: ogg stream missing comment header packet")
	}

	comment, order, err := parseVorbisCommentPacket(packets[1])
	if err != nil {
		return nil, err
	}

	return &oggHandle{
		path: path, packets: packets, granules: granules, serial: pages[0].serial,
		comment: comment, order: order,
	}, nil
}

func parseVorbisCommentPacket(packet []byte) (map[string][]string, []string, error) {
	if len(packet) < 7 || packet[0] != 3 || string(packet[1:7]) != "vorbis" {
		return nil, nil, fmt.Errorf("tagstore: not a Vorbis comment packet")
	}
	off := 7
	read32 := func() (uint32, error) {
		if off+4 > len(packet) {
			return 0, fmt.Errorf("tagstore: truncated vorbis comment header")
		}
		v := binary.LittleEndian.Uint32(packet[off : off+4])
		off += 4
		return v, nil
	}

	vendorLen, err := read32()
	if err != nil {
		return nil, nil, err
	}
	off += int(vendorLen) // vendor string, not preserved verbatim

	count, err := read32()
	if err != nil {
		return nil, nil, err
	}

	comment := make(map[string][]string)
	var order []string
	for i := uint32(0); i < count; i++ {
		l, err := read32()
		if err != nil {
			return nil, nil, err
		}
		if off+int(l) > len(packet) {
			return nil, nil, fmt.Errorf("tagstore: truncated vorbis comment item")
		}
		entry := string(packet[off : off+int(l)])
		off += int(l)
		eq := strings.IndexByte(entry, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToUpper(entry[:eq])
		val := entry[eq+1:]
		if _, seen := comment[key]; !seen {
			order = append(order, key)
		}
		comment[key] = append(comment[key], val)
	}
	return comment, order, nil
}

func (h *oggHandle) Get(key string) (string, bool) {
	values, ok := h.comment[strings.ToUpper(key)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (h *oggHandle) Set(key, value string) {
	k := strings.ToUpper(key)
	if _, seen := h.comment[k]; !seen {
		h.order = append(h.order, k)
	}
	h.comment[k] = []string{value}
}

func (h *oggHandle) Remove(key string) {
	k := strings.ToUpper(key)
	if _, ok := h.comment[k]; !ok {
		return
	}
	delete(h.comment, k)
	for i, existing := range h.order {
		if existing == k {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

const vendorString = "libguard"

func (h *oggHandle) buildCommentPacket() []byte {
	var buf bytes.Buffer
	buf.WriteByte(3)
	buf.WriteString("vorbis")
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(vendorString)))
	buf.Write(lenBuf[:])
	buf.WriteString(vendorString)

	var entries []string
	for _, key := range h.order {
		for _, v := range h.comment[key] {
			entries = append(entries, key+"="+v)
		}
	}
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(entries)))
	buf.Write(lenBuf[:])
	for _, e := range entries {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(e)))
		buf.Write(lenBuf[:])
		buf.WriteString(e)
	}
	buf.WriteByte(1) // framing bit per the Vorbis comment header spec
	return buf.Bytes()
}

func (h *oggHandle) Save() error {
	h.packets[1] = h.buildCommentPacket()

	var out bytes.Buffer
	for i, packet := range h.packets {
		segments := paginatePacket(packet)
		headerType := byte(0)
		if i == 0 {
			headerType = 2 // beginning-of-stream
		}
		if i == len(h.packets)-1 {
			headerType |= 4 // end-of-stream
		}
		writeOggPage(&out, h.serial, uint32(i), h.granules[i], headerType, segments, packet)
	}

	tmp := h.path + ".lguard-tmp"
	if err := os.WriteFile(tmp, out.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, h.path)
}

func (h *oggHandle) Close() error {
	return nil
}
