// internal/filestore/filetype.go
package filestore

import (
	"bytes"
	"mime"
	"path"
	"strings"
)

// isTextName classifies a path by its extension alone. The second
// return is false when the extension is unknown and the caller should
// fall back to sniffing the content.
func isTextName(name string) (isText, known bool) {
	mt := mime.TypeByExtension(path.Ext(name))
	if mt == "" {
		return false, false
	}
	return strings.HasPrefix(mt, "text/"), true
}

// isTextContent sniffs content the simple way: anything with a NUL byte
// is binary.
func isTextContent(content []byte) bool {
	return bytes.IndexByte(content, 0) < 0
}

// isText decides whether a file takes part in line merging. The
// extension wins when it is a registered type; otherwise the content
// decides.
func isText(name string, content []byte) bool {
	if text, known := isTextName(name); known {
		return text
	}
	return isTextContent(content)
}
