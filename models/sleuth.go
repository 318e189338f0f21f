package models

// Coordinate is a single focus in the file's declared reference space.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SleuthStub is one experiment/contrast decoded from a Sleuth block.
// At least one of DOI or PMID is set.
type SleuthStub struct {
	DOI              string       `json:"doi,omitempty"`
	PMID             string       `json:"pmid,omitempty"`
	AuthorYearString string       `json:"author_year_string"`
	AnalysisName     string       `json:"analysis_name"`
	Subjects         int          `json:"subjects"`
	Coordinates      []Coordinate `json:"coordinates"`
}

// SleuthFileUpload is one uploaded Sleuth file. Every stub shares Space.
type SleuthFileUpload struct {
	FileName    string       `json:"file_name"`
	Space       string       `json:"space"`
	SleuthStubs []SleuthStub `json:"sleuth_stubs"`
}

// CoordinateCount returns the number of coordinates across all stubs.
func (u *SleuthFileUpload) CoordinateCount() int {
	n := 0
	for _, s := range u.SleuthStubs {
		n += len(s.Coordinates)
	}
	return n
}
