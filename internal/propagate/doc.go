package propagate

import "github.com/starford/elrelease/internal/parser"

// rewriteDoc replaces the version in a manual's subtitle and in its
// "This manual is for ... version X." sentence.
func rewriteDoc(src []byte, ver string) []byte {
	var edits []edit
	for _, find := range []func([]byte) (string, parser.Span, bool){parser.SubtitleVersion, parser.ManualVersion} {
		if _, span, ok := find(src); ok {
			edits = append(edits, edit{span.Start, span.End, ver})
		}
	}
	return applyEdits(src, edits)
}
