package playground

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"tattty/internal/storage"
	"tattty/pkg/zip"
)

// SlotFile is one decoded slot image ready to be written out.
type SlotFile struct {
	Slot     int
	Filename string
	MIME     string
	Data     []byte
}

// DecodeSlots decodes every populated slot of s. Empty slots are skipped.
func DecodeSlots(s State, prefix string) ([]SlotFile, error) {
	var files []SlotFile
	for i, slot := range s.Images {
		if slot.Image == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(*slot.Image)
		if err != nil {
			return nil, fmt.Errorf("slot %d: decode image: %w", i+1, err)
		}
		mime := http.DetectContentType(data)
		files = append(files, SlotFile{
			Slot:     i,
			Filename: fmt.Sprintf("%sslot-%d-%s%s", prefix, i+1, slot.Provider, extensionFor(mime)),
			MIME:     mime,
			Data:     data,
		})
	}
	return files, nil
}

// SaveSlots writes the decoded images into store and returns their keys.
func SaveSlots(ctx context.Context, store *storage.FileStore, files []SlotFile) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key, err := store.Write(ctx, f.Filename, f.Data)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ArchiveSlots bundles the decoded images into a zip archive.
func ArchiveSlots(files []SlotFile, modified time.Time) ([]byte, error) {
	assets := make([]zip.Asset, 0, len(files))
	for _, f := range files {
		assets = append(assets, zip.Asset{Filename: f.Filename, Data: f.Data})
	}
	return zip.ArchiveAssets(assets, modified)
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
