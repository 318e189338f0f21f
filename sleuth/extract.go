package sleuth

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sleuth-ingest/models"
)

var (
	yearRe   = regexp.MustCompile(`\d{4}`)
	digitsRe = regexp.MustCompile(`\d`)
)

// ExtractStubs decodes a Sleuth file into one stub per block. The text is
// validated first; invalid text yields a *FormatError.
func ExtractStubs(text string) (string, []models.SleuthStub, error) {
	space, blocks, res := splitFile(text)
	if !res.IsValid {
		return "", nil, &FormatError{Message: res.ErrorMessage}
	}
	stubs := make([]models.SleuthStub, 0, len(blocks))
	for _, b := range blocks {
		if r := ValidateBlock(b); !r.IsValid {
			return "", nil, &FormatError{Message: r.ErrorMessage}
		}
		stubs = append(stubs, foldStub(classifyBlock(b)))
	}
	return space, stubs, nil
}

// foldStub accumulates the tagged lines of one validated block. Additional
// experiment lines share the coordinates and append their names.
func foldStub(lines []taggedLine) models.SleuthStub {
	stub := models.SleuthStub{Coordinates: []models.Coordinate{}}
	var names []string
	for _, l := range lines {
		switch l.kind {
		case lineSubjects:
			stub.Subjects, _ = strconv.Atoi(l.value)
		case lineDOI:
			stub.DOI = l.value
		case linePMID:
			stub.PMID = l.value
		case lineCoordinate:
			if len(l.coords) == 3 {
				stub.Coordinates = append(stub.Coordinates, models.Coordinate{X: l.coords[0], Y: l.coords[1], Z: l.coords[2]})
			}
		case lineExperiment:
			if stub.AuthorYearString == "" {
				stub.AuthorYearString = l.author
			}
			names = append(names, l.name)
		}
	}
	stub.AnalysisName = strings.Join(names, ", ")
	return stub
}

// ParseUpload validates and decodes one uploaded file.
func ParseUpload(fileName, text string) (*models.SleuthFileUpload, ValidationResult) {
	if r := ValidateFile(text); !r.IsValid {
		return nil, r
	}
	space, stubs, err := ExtractStubs(text)
	if err != nil {
		return nil, ValidationResult{ErrorMessage: err.Error()}
	}
	return &models.SleuthFileUpload{FileName: fileName, Space: space, SleuthStubs: stubs}, valid()
}

// ToBaseStudy projects a stub onto a base study record. Name, description,
// publication and PMCID are left for identifier resolution to fill.
func ToBaseStudy(stub models.SleuthStub) models.BaseStudyRecord {
	rec := models.BaseStudyRecord{
		DOI:     stub.DOI,
		PMID:    stub.PMID,
		Authors: strings.TrimSpace(digitsRe.ReplaceAllString(stub.AuthorYearString, "")),
	}
	if m := yearRe.FindString(stub.AuthorYearString); m != "" {
		if y, err := strconv.Atoi(m); err == nil {
			rec.Year = &y
		}
	}
	return rec
}

// ToBaseStudies projects every stub of every upload, in order.
func ToBaseStudies(uploads []*models.SleuthFileUpload) []models.BaseStudyRecord {
	var out []models.BaseStudyRecord
	for _, u := range uploads {
		for _, s := range u.SleuthStubs {
			out = append(out, ToBaseStudy(s))
		}
	}
	return out
}

// SanitizeFileKey turns a file name into an annotation note key. Periods are
// not allowed in keys.
func SanitizeFileKey(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, ".", ""))
}

// IncludedNoteKey is the annotation key every note sets to true.
const IncludedNoteKey = "included"

// ErrFileKeyConflict is returned when two files share an annotation key.
var ErrFileKeyConflict = errors.New("file names map to the same annotation key")

// CheckFileKeys makes sure every file name yields its own annotation key and
// none of them shadows IncludedNoteKey.
func CheckFileKeys(names []string) error {
	owner := map[string]string{IncludedNoteKey: IncludedNoteKey}
	for _, name := range names {
		key := SanitizeFileKey(name)
		if key == "" {
			return fmt.Errorf("%w: %q has an empty key", ErrFileKeyConflict, name)
		}
		if prev, ok := owner[key]; ok {
			return fmt.Errorf("%w: %q and %q both become %q", ErrFileKeyConflict, prev, name, key)
		}
		owner[key] = name
	}
	return nil
}
