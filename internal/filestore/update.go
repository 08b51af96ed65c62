// internal/filestore/update.go
package filestore

import (
	"bytes"

	"vellum/internal/errors"
	"vellum/internal/merge"
	shared "vellum/shared/types"
)

// newFileContent prepares the stored form of a brand-new file. Text
// gets its line endings normalized to \n and exactly one trailing
// newline enforced; binary content is kept verbatim.
func newFileContent(p string, content []byte) []byte {
	if !isText(p, content) {
		return content
	}
	out := merge.Normalize(content, "\n")
	if !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	return out
}

// mergeUpdate reconciles incoming content with the current state of an
// existing file. basis is the file's content at the revision the caller
// based its edit on, and currentRev is the revision that actually last
// modified the file; a conflicting merge fails with
// UpdateConflictsError carrying both. The incoming bytes are otherwise
// stored as given: no ending normalization (unless asked for) and no
// trailing-newline enforcement on updates.
func mergeUpdate(p string, current, incoming, basis []byte, currentRev shared.RevisionID, o shared.UpdateOptions) ([]byte, error) {
	if !isText(p, current) || !isTextContent(incoming) {
		// Binary content is replaced wholesale; lines mean nothing here.
		return incoming, nil
	}

	currentLines := merge.SplitLines(current)
	ending := merge.LineEnding(currentLines)

	incomingLines := merge.SplitLines(incoming)
	if o.MatchLineEndings && merge.LineEnding(incomingLines) != ending {
		incomingLines = merge.SplitLines(merge.Normalize(incoming, ending))
	}

	merged, conflicted := merge.Merge3(merge.SplitLines(basis), incomingLines, currentLines, ending)
	if conflicted {
		return nil, &errors.UpdateConflictsError{Path: p, Content: merged, BasisRev: currentRev}
	}
	return merged, nil
}
