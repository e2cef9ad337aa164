package tagstore

import (
	"strings"

	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
)

type flacHandle struct {
	path         string
	file         *goflac.File
	comment      *flacvorbis.MetaDataBlockVorbisComment
	commentIndex int // -1 if the block did not exist in the source file
}

func openFLACVorbis(path string) (Handle, error) {
	f, err := goflac.ParseFile(path)
	if err != nil {
		return nil, err
	}

	var comment *flacvorbis.MetaDataBlockVorbisComment
	idx := -1
	for i, m := range f.Meta {
		if m.Type == goflac.VorbisComment {
			comment, err = flacvorbis.ParseFromMetaDataBlock(*m)
			if err != nil {
				return nil, err
			}
			idx = i
			break
		}
	}
	if comment == nil {
		comment = flacvorbis.New()
	}

	return &flacHandle{path: path, file: f, comment: comment, commentIndex: idx}, nil
}

// fieldName normalizes a Vorbis comment field lookup to uppercase: field
// names are case-insensitive per the Vorbis comment spec, and legacy
// lowercase variants are explicitly accepted on read.
func fieldName(key string) string {
	return strings.ToUpper(key)
}

func (h *flacHandle) Get(key string) (string, bool) {
	values, err := h.comment.Get(fieldName(key))
	if err != nil || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (h *flacHandle) Set(key, value string) {
	field := fieldName(key)
	_ = h.comment.Del(field)
	h.comment.Add(field, value)
}

func (h *flacHandle) Remove(key string) {
	_ = h.comment.Del(fieldName(key))
}

func (h *flacHandle) Save() error {
	block := h.comment.Marshal()
	if h.commentIndex >= 0 {
		h.file.Meta[h.commentIndex] = &block
	} else {
		h.file.Meta = append(h.file.Meta, &block)
	}
	return h.file.Save(h.path)
}

func (h *flacHandle) Close() error {
	return nil
}
