package parser

import (
	"bytes"
	"regexp"
)

var (
	subtitleRe = regexp.MustCompile(`(?mi)^#\+subtitle:[ \t]+for version[ \t]+(\S+)`)
	manualRe   = regexp.MustCompile(`This manual is for [^.]*?version[ \t\r\n]+(\S+?)\.(?:\s|$)`)
)

// LineEnding returns "\r\n" when src uses CRLF line endings, else "\n".
func LineEnding(src []byte) string {
	if bytes.Contains(src, []byte("\r\n")) {
		return "\r\n"
	}
	return "\n"
}

func submatch(re *regexp.Regexp, src []byte) (string, Span, bool) {
	m := re.FindSubmatchIndex(src)
	if m == nil {
		return "", Span{}, false
	}
	return string(src[m[2]:m[3]]), Span{m[2], m[3]}, true
}

// VersionConstant finds the string value of the first
// (defconst|defvar|defcustom MODULE-version "X") form.
func VersionConstant(src []byte, module string) (string, Span, bool) {
	re := regexp.MustCompile(`(?m)^\(def(?:const|var|custom)[ \t\r\n]+` + regexp.QuoteMeta(module) + `-version[ \t\r\n]+"([^"]*)"`)
	return submatch(re, src)
}

// SubtitleVersion finds X in a "#+subtitle: for version X" line.
func SubtitleVersion(src []byte) (string, Span, bool) {
	return submatch(subtitleRe, src)
}

// ManualVersion finds X in a "This manual is for ... version X." sentence.
func ManualVersion(src []byte) (string, Span, bool) {
	return submatch(manualRe, src)
}
