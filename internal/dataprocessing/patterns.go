package dataprocessing

import (
	"regexp"
	"strings"
)

// Field names reported by parse failures.
const (
	FieldDate               = "date"
	FieldHeadline           = "new_cases_deaths"
	FieldCasesByDepartment  = "cases_by_department"
	FieldDeathsByDepartment = "deaths_by_department"
)

var (
	reReleaseDate = regexp.MustCompile(`For\s+Immediate\s+Release:\s+([A-Z][a-z]+\s+\d{1,2},\s+20\d\d)`)

	reHeadlineSentence = regexp.MustCompile(`([\d,]+|[a-z]+)\s+new\s+deaths?\s+and\s+([\d,]+)\s+new\s+cases`)
	reHeadlineDaily    = regexp.MustCompile(`Daily\s+(?:new\s+)?cases:\s+([\d,]+)\*?\s+Daily\s+(?:new\s+)?deaths:\s+([\d,]+)`)

	reHospitalized = regexp.MustCompile(`Hospitalized\s+\(Ever\)[^\d\n]*([\d,]+)`)

	reUnderInvestigation = regexp.MustCompile(`Under\s+Investigation`)
	reBlankLine          = regexp.MustCompile(`\n[ \t]*\n`)

	reAgeHeader        = regexp.MustCompile(`Age\s+Group\s+\(Los\s+Angeles`)
	reGenderHeader     = regexp.MustCompile(`Gender\s+\(Los\s+Angeles`)
	reRaceHeader       = regexp.MustCompile(`Race/Ethnicity\s+\(Los\s+Angeles`)
	reRaceDeathsHeader = regexp.MustCompile(`Deaths\s+Race/Ethnicity\s+\(Los\s+Angeles`)
	reDeathsPrefix     = regexp.MustCompile(`Deaths\s+$`)

	reAgeEntry    = regexp.MustCompile(`(\d+\s+to\s+\d+|over\s+\d{2,})[^\d\n]*?([\d,]+)`)
	reGenderEntry = regexp.MustCompile(`\b(Female|Male|Other)\b[^\d\n]*?([\d,]+)`)
	reRaceEntry   = regexp.MustCompile(`(` + strings.Join([]string{
		regexp.QuoteMeta("American Indian/Alaska Native"),
		"Asian",
		"Black",
		regexp.QuoteMeta("Hispanic/Latino"),
		regexp.QuoteMeta("Native Hawaiian/Pacific Islander"),
		"White",
		"Other",
	}, "|") + `)[^\d\n]*?([\d,]+)`)

	reAreaBlock = regexp.MustCompile(`(?s)City\s+of\s+Agoura\s+Hills.+?Under\s+Investigation`)
	reAreaEntry = regexp.MustCompile(
		`(City\s+of\s[^\n]+?|Los\s+Angeles[^\n]*?|Unincorporated[^\n]+?)` +
			`(\*?)[ \t]+([\d,]+|--)[ \t]+\(?[ \t]*([\d,]+(?:\.\d+)?|--)[ \t]*\)?`)
)

// departmentLine matches a department total on a line of its own, ending in
// the figure.
func departmentLine(name string) *regexp.Regexp {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?m)^[ \t\-*]*` + strings.Join(words, `\s+`) + `\b[^\d\n]*?([\d,]+)[ \t]*$`)
}
