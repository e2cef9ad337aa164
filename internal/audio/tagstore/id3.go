package tagstore

import (
	"strings"

	"github.com/bogem/id3v2/v2"
)

type id3Handle struct {
	tag *id3v2.Tag
}

func openID3(path string) (Handle, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, err
	}
	tag.SetVersion(4)
	return &id3Handle{tag: tag}, nil
}

func (h *id3Handle) Get(key string) (string, bool) {
	if strings.HasPrefix(key, "TXXX:") {
		description := strings.TrimPrefix(key, "TXXX:")
		return h.getTXXX(description)
	}
	frames := h.tag.GetFrames(key)
	if len(frames) == 0 {
		return "", false
	}
	if tf, ok := frames[0].(id3v2.TextFrame); ok {
		return tf.Text, true
	}
	return "", false
}

// getTXXX matches description case-insensitively so legacy lowercase
// variants are accepted on read ("legacy lowercase variants
// accepted on read").
func (h *id3Handle) getTXXX(description string) (string, bool) {
	for _, frame := range h.tag.GetFrames("TXXX") {
		txxx, ok := frame.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}
		if strings.EqualFold(txxx.Description, description) {
			return txxx.Value, true
		}
	}
	return "", false
}

func (h *id3Handle) Set(key, value string) {
	if strings.HasPrefix(key, "TXXX:") {
		description := strings.TrimPrefix(key, "TXXX:")
		h.deleteTXXX(description)
		h.tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: description,
			Value:       value,
		})
		return
	}
	h.tag.AddTextFrame(key, id3v2.EncodingUTF8, value)
}

func (h *id3Handle) Remove(key string) {
	if strings.HasPrefix(key, "TXXX:") {
		h.deleteTXXX(strings.TrimPrefix(key, "TXXX:"))
		return
	}
	h.tag.DeleteFrames(key)
}

func (h *id3Handle) deleteTXXX(description string) {
	remaining := make([]id3v2.Framer, 0)
	for _, frame := range h.tag.GetFrames("TXXX") {
		txxx, ok := frame.(id3v2.UserDefinedTextFrame)
		if ok && strings.EqualFold(txxx.Description, description) {
			continue
		}
		remaining = append(remaining, frame)
	}
	h.tag.DeleteFrames("TXXX")
	for _, frame := range remaining {
		h.tag.AddFrame("TXXX", frame)
	}
}

func (h *id3Handle) Save() error {
	return h.tag.Save()
}

func (h *id3Handle) Close() error {
	return h.tag.Close()
}
