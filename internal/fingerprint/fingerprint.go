// Package fingerprint derives content hashes and document identifiers.
package fingerprint

import (
	"crypto/md5" //nolint:gosec // identifier derivation, not security
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ContentHash returns the hex SHA-256 of content. It is used only for
// equality checks between versions of a document.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Stem returns the base name of source without its extension. Both slash
// styles are treated as separators.
//
//	"docs/2024/policy.txt" -> "policy"
//	"https://x/y/notice.html" -> "notice"
func Stem(source string) string {
	base := path.Base(strings.ReplaceAll(source, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// DocID builds a version identifier: 16 hex chars of md5(stem), the version,
// and 8 random hex chars so repeated ingestions never collide.
//
//	3f2a9c0d41b7e8aa_v2_9b1c7e04
func DocID(source string, version int) string {
	sum := md5.Sum([]byte(Stem(source))) //nolint:gosec
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return hex.EncodeToString(sum[:])[:16] + "_v" + strconv.Itoa(version) + "_" + suffix
}

// ChunkID identifies chunk index of docID.
func ChunkID(docID string, index int) string {
	return docID + "_" + strconv.Itoa(index)
}
