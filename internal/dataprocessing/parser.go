package dataprocessing

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"lacphcli/internal/corrections"
	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

const releaseDateLayout = "January 2, 2006"

// ParseStats records which corrections touched a parsed report.
type ParseStats struct {
	Substitutions    int  `json:"substitutions"`
	FieldOverrides   int  `json:"field_overrides"`
	HeadlineOverride bool `json:"headline_override"`
	AreaRowsPatched  int  `json:"area_rows_patched"`
}

// Corrections returns the total number of corrections applied.
func (s ParseStats) Corrections() int {
	n := s.Substitutions + s.FieldOverrides + s.AreaRowsPatched
	if s.HeadlineOverride {
		n++
	}
	return n
}

// Parser extracts daily reports from bulletin text. It holds no mutable
// state and is safe for concurrent use.
type Parser struct {
	rules       *corrections.RuleSet
	eras        EraTable
	departments map[string]*regexp.Regexp
	logger      *slog.Logger
}

// NewParser creates a parser bound to a rule set and era table.
func NewParser(rules *corrections.RuleSet, eras EraTable, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = corrections.Empty("none")
	}
	if len(eras) == 0 {
		eras = DefaultEras()
	}
	departments := make(map[string]*regexp.Regexp, 3)
	for _, dept := range domain.Departments() {
		departments[dept] = departmentLine(dept)
	}
	return &Parser{
		rules:       rules,
		eras:        eras,
		departments: departments,
		logger:      logger.With(slog.String("component", "bulletin_parser")),
	}
}

// RuleVersion returns the version of the rule set reports are stamped with.
func (p *Parser) RuleVersion() string {
	return p.rules.Version()
}

// Parse extracts the report for expected from text.
func (p *Parser) Parse(ctx context.Context, text string, expected domain.Date) (*domain.DailyReport, error) {
	report, _, err := p.ParseWithStats(ctx, text, expected)
	return report, err
}

// ParseWithStats is like Parse and also reports the corrections applied.
func (p *Parser) ParseWithStats(ctx context.Context, text string, expected domain.Date) (*domain.DailyReport, ParseStats, error) {
	var stats ParseStats

	text, stats.Substitutions = p.rules.Substitute(expected, normalizeText(text))

	date, err := parseReleaseDate(text, expected)
	if err != nil {
		return nil, stats, err
	}
	layout := p.eras.Resolve(date)
	report := domain.NewDailyReport(date)

	if h, ok := p.rules.Headline(date); ok {
		report.NewCases, report.NewDeaths = h.Cases, h.Deaths
		stats.HeadlineOverride = true
	} else {
		cases, deaths, ok := parseHeadline(text)
		if !ok {
			return nil, stats, apperrors.NewParseFailure(date, FieldHeadline, reHeadlineSentence.String())
		}
		report.NewCases, report.NewDeaths = cases, deaths
	}

	if err := p.parseDepartments(text, report); err != nil {
		return nil, stats, err
	}

	report.Hospitalizations = parseHospitalizations(text)
	if !report.Hospitalizations.IsKnown() {
		p.logger.WarnContext(ctx, "hospitalizations not reported",
			slog.String("date", date.String()))
	}

	report.CasesByAge = parseGroup(text, findSection(text, reAgeHeader, layout, nil), reAgeEntry)
	report.CasesByGender = parseGroup(text, findSection(text, reGenderHeader, layout, nil), reGenderEntry)
	report.CasesByRace = parseGroup(text, findSection(text, reRaceHeader, layout, precededByDeaths), reRaceEntry)
	report.DeathsByRace = parseGroup(text, findSection(text, reRaceDeathsHeader, layout, nil), reRaceEntry)

	report.Areas = parseAreas(text, layout)
	if rows, ok := p.rules.AreaOverride(date); ok {
		report.Areas = mergeAreas(report.Areas, rows)
		stats.AreaRowsPatched = len(rows)
	}

	stats.FieldOverrides = p.rules.ApplyOverrides(report)
	report.RuleVersion = p.rules.Version()

	p.logger.DebugContext(ctx, "bulletin parsed",
		slog.String("date", date.String()),
		slog.String("nesting", string(layout.Nesting)),
		slog.Int("areas", len(report.Areas)),
		slog.Int("corrections", stats.Corrections()))

	return report, stats, nil
}

// normalizeText unifies line endings and non-breaking spaces produced by the
// HTML conversion.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\u00a0", " ")
}

func parseReleaseDate(text string, expected domain.Date) (domain.Date, error) {
	m := reReleaseDate.FindStringSubmatch(text)
	if m == nil {
		return domain.Date{}, apperrors.NewParseFailure(expected, FieldDate, reReleaseDate.String())
	}
	t, err := time.Parse(releaseDateLayout, normalizeLabel(m[1]))
	if err != nil {
		return domain.Date{}, apperrors.NewParseFailure(expected, FieldDate, reReleaseDate.String())
	}
	date := domain.DateOf(t)
	if date != expected {
		return domain.Date{}, &apperrors.DateMismatch{Expected: expected, Parsed: date}
	}
	return date, nil
}

// parseHeadline reads the daily new cases and deaths, trying the prose
// sentence first and the dashboard style summary second.
func parseHeadline(text string) (cases, deaths domain.Count, ok bool) {
	if m := reHeadlineSentence.FindStringSubmatch(text); m != nil {
		d, errD := parseCount(m[1])
		c, errC := parseCount(m[2])
		if errD == nil && errC == nil {
			return c, d, true
		}
	}
	if m := reHeadlineDaily.FindStringSubmatch(text); m != nil {
		c, errC := parseCount(m[1])
		d, errD := parseCount(m[2])
		if errD == nil && errC == nil {
			return c, d, true
		}
	}
	return domain.Unknown(), domain.Unknown(), false
}

// parseDepartments reads the per-department totals. Each department is
// listed twice, cases first and deaths second.
func (p *Parser) parseDepartments(text string, report *domain.DailyReport) error {
	for _, dept := range domain.Departments() {
		re := p.departments[dept]
		matches := re.FindAllStringSubmatch(text, 2)
		if len(matches) < 1 {
			return apperrors.NewParseFailure(report.Date, FieldCasesByDepartment+"."+dept, re.String())
		}
		if len(matches) < 2 {
			return apperrors.NewParseFailure(report.Date, FieldDeathsByDepartment+"."+dept, re.String())
		}
		cases, err := parseCount(matches[0][1])
		if err != nil {
			return apperrors.NewParseFailure(report.Date, FieldCasesByDepartment+"."+dept, re.String())
		}
		deaths, err := parseCount(matches[1][1])
		if err != nil {
			return apperrors.NewParseFailure(report.Date, FieldDeathsByDepartment+"."+dept, re.String())
		}
		report.Cases[dept] = cases
		report.Deaths[dept] = deaths
	}
	return nil
}

func parseHospitalizations(text string) domain.Count {
	m := reHospitalized.FindStringSubmatch(text)
	if m == nil {
		return domain.Unknown()
	}
	c, err := parseCount(m[1])
	if err != nil {
		return domain.Unknown()
	}
	return c
}

// span is a half-open byte range of the document.
type span struct {
	start, end int
	found      bool
}

// findSection locates the entry list of the first header match not rejected
// by skip. The list boundary depends on the era's nesting.
func findSection(text string, header *regexp.Regexp, layout Layout, skip func(text string, at int) bool) span {
	for _, loc := range header.FindAllStringIndex(text, -1) {
		if skip != nil && skip(text, loc[0]) {
			continue
		}
		start := loc[1]
		rest := text[start:]
		end := -1
		if m := reUnderInvestigation.FindStringIndex(rest); m != nil {
			end = m[0]
		}
		if layout.Nesting == NestingFlat {
			lead := firstEntryLine(rest)
			if m := reBlankLine.FindStringIndex(rest[lead:]); m != nil && (end < 0 || lead+m[0] < end) {
				end = lead + m[0]
			}
			if end < 0 {
				end = len(rest)
			}
		}
		if end < 0 {
			return span{}
		}
		return span{start: start, end: start + end, found: true}
	}
	return span{}
}

// firstEntryLine returns the offset of the first non-blank line after the
// header line, so blank lines between a header and its list do not end a
// flat section.
func firstEntryLine(rest string) int {
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return len(rest)
	}
	i := nl + 1
	for i < len(rest) && strings.IndexByte(" \t\r\n", rest[i]) >= 0 {
		i++
	}
	for i > nl+1 && rest[i-1] != '\n' {
		i--
	}
	return i
}

// precededByDeaths rejects the case race header when it is the tail of the
// deaths race header.
func precededByDeaths(text string, at int) bool {
	from := at - 16
	if from < 0 {
		from = 0
	}
	return reDeathsPrefix.MatchString(text[from:at])
}

// parseGroup extracts label and count pairs from a located section. The
// first occurrence of a label wins.
func parseGroup(text string, s span, entry *regexp.Regexp) map[string]domain.Count {
	out := map[string]domain.Count{}
	if !s.found {
		return out
	}
	for _, m := range entry.FindAllStringSubmatch(text[s.start:s.end], -1) {
		label := normalizeLabel(m[1])
		if _, seen := out[label]; seen {
			continue
		}
		c, err := parseCount(m[2])
		if err != nil {
			continue
		}
		out[label] = c
	}
	return out
}

// parseAreas reads the city and community table. The county total line and
// the under investigation line are not areas.
func parseAreas(text string, layout Layout) []domain.AreaRow {
	block := text
	if loc := reAreaBlock.FindStringIndex(text); loc != nil {
		block = text[loc[0]:loc[1]]
	}

	rows := []domain.AreaRow{}
	seen := map[string]struct{}{}
	for _, m := range reAreaEntry.FindAllStringSubmatch(block, -1) {
		name := strings.TrimRight(normalizeLabel(m[1]), "*")
		if excludedAreaName(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		row := domain.AreaRow{Name: name}
		if c, err := parseCount(m[3]); err == nil {
			row.Cases = c
		}
		if r, err := parseRate(m[4]); err == nil {
			row.CaseRate = r
		}
		if layout.RecordsOutbreak {
			row.Outbreak = domain.FlagOf(m[2] != "" || strings.HasSuffix(normalizeLabel(m[1]), "*"))
		}
		rows = append(rows, row)
	}
	return rows
}

func excludedAreaName(name string) bool {
	switch {
	case name == domain.LabelLosAngeles, name == domain.LabelUnderInvestigation:
		return true
	case strings.HasPrefix(name, domain.LabelLosAngeles+","):
		return true
	case strings.HasPrefix(name, domain.LabelLosAngeles+" County"):
		return true
	}
	return false
}

// mergeAreas overlays supplied rows on parsed rows by name.
func mergeAreas(parsed, supplied []domain.AreaRow) []domain.AreaRow {
	out := append([]domain.AreaRow(nil), parsed...)
	index := make(map[string]int, len(out))
	for i, row := range out {
		index[row.Name] = i
	}
	for _, row := range supplied {
		if i, ok := index[row.Name]; ok {
			out[i] = row
			continue
		}
		index[row.Name] = len(out)
		out = append(out, row)
	}
	return out
}
