package export

import "fmt"

// Section is one titled block of rows, e.g. every student in a class.
type Section struct {
	Title   string
	Rows    [][]string
	Summary string
}

// Report is a grouped table sharing one header row across sections.
type Report struct {
	Title       string
	GroupHeader string
	Headers     []string
	Sections    []Section
}

func (r Report) validate() error {
	if len(r.Headers) == 0 {
		return fmt.Errorf("report requires at least one header")
	}
	for _, section := range r.Sections {
		for i, row := range section.Rows {
			if len(row) != len(r.Headers) {
				return fmt.Errorf("section %q row %d has %d cells, want %d", section.Title, i, len(row), len(r.Headers))
			}
		}
	}
	return nil
}
