// Package sleuth validates and decodes Sleuth coordinate text files.
//
// A file starts with a reference line (// Reference=MNI) followed by study
// blocks separated by blank lines. Each block lists DOI/PubMedId lines, one or
// more "<author info>: <experiment name>" lines, a Subjects= line and then
// tab-separated x/y/z coordinates. Subjects= is always the last metadata line.
package sleuth

import (
	"regexp"
	"strconv"
	"strings"
)

const numberPattern = `-?(?:\d+(?:\.\d*)?|\.\d+)`

var (
	numberRe         = regexp.MustCompile(`^` + numberPattern + `$`)
	coordinateLineRe = regexp.MustCompile(`^` + numberPattern + `\t` + numberPattern + `\t` + numberPattern + `$`)
)

// CoordinateParse is the result of parsing one coordinate line.
type CoordinateParse struct {
	Coords  []float64
	IsValid bool
}

// ParseCoordinateLine splits line on tabs and parses every field as a
// decimal number. Any bad field invalidates the whole line.
func ParseCoordinateLine(line string) CoordinateParse {
	fields := strings.Split(line, "\t")
	coords := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if !numberRe.MatchString(f) {
			return CoordinateParse{Coords: []float64{}}
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return CoordinateParse{Coords: []float64{}}
		}
		coords = append(coords, v)
	}
	return CoordinateParse{Coords: coords, IsValid: true}
}

// IsCoordinateLine reports whether line is exactly three numbers separated
// by exactly two tabs.
func IsCoordinateLine(line string) bool {
	return coordinateLineRe.MatchString(strings.TrimSpace(line))
}

// StripCommentMarkers normalizes line endings and removes the conventional
// leading "//" marker from every line.
func StripCommentMarkers(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "//") {
			t = strings.TrimSpace(strings.TrimPrefix(t, "//"))
		}
		lines[i] = t
	}
	return strings.Join(lines, "\n")
}

// SplitBlocks splits text on runs of blank lines. Whitespace-only lines count
// as blank.
func SplitBlocks(text string) []string {
	var (
		blocks  []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" {
			flush()
			continue
		}
		current = append(current, l)
	}
	flush()
	return blocks
}

type lineKind int

const (
	lineExperiment lineKind = iota
	lineSubjects
	lineDOI
	linePMID
	lineCoordinate
)

// taggedLine is a block line classified once, before validation or
// extraction look at it.
type taggedLine struct {
	kind  lineKind
	raw   string
	value string // subjects, doi and pmid lines

	author string // experiment lines
	name   string
	colon  bool

	coords []float64 // coordinate lines
	ok     bool
}

// classifyBlock tags every non-empty line of a block. Before the Subjects=
// line, lines are matched by case-insensitive substring in the order
// subjects=, doi=, pubmedid=, falling back to an experiment line. Every line
// after Subjects= is a coordinate line.
func classifyBlock(block string) []taggedLine {
	var (
		tagged   []taggedLine
		inCoords bool
	)
	for _, raw := range strings.Split(block, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if inCoords {
			tl := taggedLine{kind: lineCoordinate, raw: line}
			if IsCoordinateLine(line) {
				if p := ParseCoordinateLine(line); p.IsValid {
					tl.coords, tl.ok = p.Coords, true
				}
			}
			tagged = append(tagged, tl)
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "subjects="):
			tagged = append(tagged, taggedLine{kind: lineSubjects, raw: line, value: valueAfterEquals(line)})
			inCoords = true
		case strings.Contains(lower, "doi="):
			tagged = append(tagged, taggedLine{kind: lineDOI, raw: line, value: valueAfterEquals(line)})
		case strings.Contains(lower, "pubmedid="):
			tagged = append(tagged, taggedLine{kind: linePMID, raw: line, value: valueAfterEquals(line)})
		default:
			author, name, found := strings.Cut(line, ":")
			tagged = append(tagged, taggedLine{
				kind:   lineExperiment,
				raw:    line,
				author: strings.TrimSpace(author),
				name:   strings.TrimSpace(name),
				colon:  found,
			})
		}
	}
	return tagged
}

func valueAfterEquals(line string) string {
	_, v, _ := strings.Cut(line, "=")
	return strings.TrimSpace(v)
}

// referenceSpace returns the value of a "Reference=<space>" line.
func referenceSpace(line string) (string, bool) {
	if !strings.Contains(strings.ToLower(line), "reference") {
		return "", false
	}
	v := valueAfterEquals(line)
	return v, v != ""
}
