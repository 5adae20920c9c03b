package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeFilename makes a client file name safe for use in a storage key.
// "Café Photo (1).JPG" becomes "cafe_photo__1_.jpg".
func SanitizeFilename(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	cleaned := strings.ToLower(unsafeKeyChars.ReplaceAllString(stripped, "_"))
	if cleaned == "" {
		return "image"
	}
	return cleaned
}

func inputKey(now time.Time, filename string) string {
	return fmt.Sprintf("input-%d-%s", now.UnixMilli(), SanitizeFilename(filename))
}

func outputKey(now time.Time, data []byte) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("output-%d-%s%s", now.UnixMilli(), hex.EncodeToString(suffix), mimetype.Detect(data).Extension())
}

// detectContentType prefers the client's declared type and falls back to sniffing.
func detectContentType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

// keyFromURL recovers a blob key from its public location (the last path segment).
func keyFromURL(location string) string {
	if location == "" {
		return ""
	}
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	return path.Base(location)
}
