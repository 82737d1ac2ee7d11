package model

import (
	"fmt"
	"strings"
)

const OriginalsPrefix = "originals/"

// ThumbnailKey - derived-key convention for thumbnails: thumbnails/{ownerId}/{baseName}.jpg
func ThumbnailKey(ownerID, storageKey string) string {
	return fmt.Sprintf("thumbnails/%s/%s.jpg", ownerID, baseName(storageKey))
}

// RenditionKey - derived-key convention for renditions: processed/{ownerId}/{baseName}-{width}.webp
func RenditionKey(ownerID, storageKey string, width int) string {
	return fmt.Sprintf("processed/%s/%s-%d.webp", ownerID, baseName(storageKey), width)
}

// baseName - имя исходного файла без расширения
func baseName(storageKey string) string {
	parts := strings.Split(storageKey, "/")
	name := parts[len(parts)-1]
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}
