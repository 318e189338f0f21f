package sleuth

import (
	"fmt"
	"strconv"
	"strings"
)

// excerptLen is how much of a block is quoted in block-wide errors.
const excerptLen = 80

// ValidationResult is the verdict of a file or block validation. Format
// problems are reported here and never as Go errors.
type ValidationResult struct {
	IsValid      bool   `json:"is_valid"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// FormatError is returned by the extractor when handed invalid text.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string { return e.Message }

func valid() ValidationResult { return ValidationResult{IsValid: true} }

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{ErrorMessage: fmt.Sprintf(format, args...)}
}

func excerpt(block string) string {
	flat := strings.Join(strings.Fields(block), " ")
	r := []rune(flat)
	if len(r) <= excerptLen {
		return flat
	}
	return string(r[:excerptLen]) + "..."
}

// ValidateBlock checks a single study block whose comment markers have been
// stripped already.
func ValidateBlock(block string) ValidationResult {
	var sawDOI, sawPMID, sawExperiment bool

	for _, l := range classifyBlock(block) {
		switch l.kind {
		case lineCoordinate:
			if !l.ok {
				return invalid("Expected three tab separated coordinates but got: %q", l.raw)
			}
		case lineSubjects:
			n, err := strconv.Atoi(l.value)
			if err != nil || n < 0 {
				return invalid("Could not parse the number of subjects in line: %q", l.raw)
			}
		case lineDOI:
			if sawDOI {
				return invalid("Encountered multiple DOIs in block: %q", excerpt(block))
			}
			if l.value == "" {
				return invalid("Encountered an empty DOI in line: %q", l.raw)
			}
			sawDOI = true
		case linePMID:
			if sawPMID {
				return invalid("Encountered multiple PMIDs in block: %q", excerpt(block))
			}
			if l.value == "" {
				return invalid("Encountered an empty PubMedId in line: %q", l.raw)
			}
			sawPMID = true
		case lineExperiment:
			if !l.colon || l.name == "" {
				return invalid("Expected <author info>: <experiment name> but found no experiment name in line: %q. Is there a semi colon where a colon should be?", l.raw)
			}
			if l.author == "" {
				return invalid("Unexpected format in line: %q. Expected <author info>: <experiment name>", l.raw)
			}
			sawExperiment = true
		}
	}

	if !sawDOI && !sawPMID {
		return invalid("Every study block needs a DOI or PMID, none found in block: %q", excerpt(block))
	}
	if !sawExperiment {
		return invalid("No experiment name found in block: %q", excerpt(block))
	}
	return valid()
}

// ValidateFile checks the reference line and every block of a Sleuth file.
// The first failing block decides the result.
func ValidateFile(text string) ValidationResult {
	_, blocks, res := splitFile(text)
	if !res.IsValid {
		return res
	}
	for _, b := range blocks {
		if r := ValidateBlock(b); !r.IsValid {
			return r
		}
	}
	return valid()
}

// splitFile strips comment markers, checks the reference line and returns the
// declared space and the raw blocks.
func splitFile(text string) (string, []string, ValidationResult) {
	text = strings.TrimSpace(StripCommentMarkers(text))
	if text == "" {
		return "", nil, invalid("The file contains no data")
	}
	first, rest, _ := strings.Cut(text, "\n")
	if !strings.Contains(strings.ToLower(first), "reference") {
		return "", nil, invalid("Expected the first line to declare the reference space (e.g. // Reference=MNI) but got: %q", first)
	}
	space, ok := referenceSpace(first)
	if !ok {
		return "", nil, invalid("The reference space is empty in line: %q", first)
	}
	blocks := SplitBlocks(rest)
	if len(blocks) == 0 {
		return "", nil, invalid("The file contains no data, only a reference line was found")
	}
	return space, blocks, valid()
}
