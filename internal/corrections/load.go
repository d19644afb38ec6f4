package corrections

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

//go:embed defaults.yaml
var defaultRules []byte

// ruleFile is the on-disk layout of a rule table.
type ruleFile struct {
	Version          string              `yaml:"version" validate:"required"`
	Substitutions    []substitutionEntry `yaml:"substitutions" validate:"dive"`
	FieldOverrides   []overrideEntry     `yaml:"field_overrides" validate:"dive"`
	Headlines        []headlineEntry     `yaml:"headlines" validate:"dive"`
	NoReports        []noReportEntry     `yaml:"no_reports" validate:"dive"`
	Exclusions       []exclusionEntry    `yaml:"exclusions" validate:"dive"`
	AreaOverrides    []areaOverrideEntry `yaml:"area_overrides" validate:"dive"`
	OutbreakOutliers []string            `yaml:"outbreak_outliers" validate:"dive,required"`
}

type substitutionEntry struct {
	Date  string             `yaml:"date" validate:"required,iso8601"`
	Rules []substitutionRule `yaml:"rules" validate:"required,min=1,dive"`
}

type substitutionRule struct {
	Find    string `yaml:"find" validate:"required"`
	Replace string `yaml:"replace"`
}

type overrideEntry struct {
	Date   string      `yaml:"date" validate:"required,iso8601"`
	Fields []fieldRule `yaml:"fields" validate:"required,min=1,dive"`
}

type fieldRule struct {
	Group string `yaml:"group" validate:"required,reportgroup"`
	Key   string `yaml:"key" validate:"required"`
	Value *int64 `yaml:"value" validate:"required,min=0"`
}

type headlineEntry struct {
	Date   string `yaml:"date" validate:"required,iso8601"`
	Cases  *int64 `yaml:"cases" validate:"required,min=0"`
	Deaths *int64 `yaml:"deaths" validate:"required,min=0"`
}

type noReportEntry struct {
	Date   string `yaml:"date" validate:"required,iso8601"`
	Cases  *int64 `yaml:"cases" validate:"required,min=0"`
	Deaths *int64 `yaml:"deaths" validate:"omitempty,min=0"`
}

type exclusionEntry struct {
	Date string `yaml:"date" validate:"required,iso8601"`
	Area string `yaml:"area" validate:"required"`
}

type areaOverrideEntry struct {
	Date  string    `yaml:"date" validate:"required,iso8601"`
	Areas []areaRow `yaml:"areas" validate:"required,min=1,dive"`
}

type areaRow struct {
	Name     string   `yaml:"name" validate:"required"`
	Cases    *int64   `yaml:"cases" validate:"omitempty,min=0"`
	Rate     *float64 `yaml:"rate" validate:"omitempty,min=0"`
	Outbreak *bool    `yaml:"outbreak"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func ruleValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("iso8601", isISO8601)
		validate.RegisterValidation("reportgroup", isReportGroup)
	})
	return validate
}

func isISO8601(fl validator.FieldLevel) bool {
	_, err := time.Parse(domain.DateLayout, fl.Field().String())
	return err == nil
}

func isReportGroup(fl validator.FieldLevel) bool {
	return domain.ReportGroup(fl.Field().String()).Valid()
}

var loadDefault = sync.OnceValues(func() (*RuleSet, error) {
	return Parse(defaultRules)
})

// Default returns the curated rule set shipped with the binary.
func Default() (*RuleSet, error) {
	return loadDefault()
}

// Load reads and compiles a rule table from a YAML file.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewRulesError("read rule table", err).WithContext("path", path)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load rules %s: %w", path, err)
	}
	return rs, nil
}

// Parse compiles a YAML rule table. Every rule of every listed date must be
// valid or the whole table is rejected. The resulting version carries a
// digest of the table so edited tables never share cached reports.
func Parse(data []byte) (*RuleSet, error) {
	var f ruleFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, apperrors.NewRulesError("decode rule table", err)
	}
	if err := ruleValidator().Struct(f); err != nil {
		return nil, apperrors.NewRulesError("validate rule table", err)
	}

	sum := sha256.Sum256(data)
	rs := Empty(strings.TrimSpace(f.Version) + "+" + hex.EncodeToString(sum[:4]))

	for _, e := range f.Substitutions {
		date := domain.MustParseDate(e.Date)
		if _, dup := rs.substitutions[date]; dup {
			return nil, duplicateDate("substitutions", e.Date)
		}
		subs := make([]Substitution, 0, len(e.Rules))
		for i, r := range e.Rules {
			re, err := regexp.Compile(r.Find)
			if err != nil {
				return nil, apperrors.NewRulesError("compile substitution", err).
					WithContext("date", e.Date).
					WithContext("index", i)
			}
			subs = append(subs, Substitution{Pattern: re, Replacement: r.Replace})
		}
		rs.substitutions[date] = subs
	}

	for _, e := range f.FieldOverrides {
		date := domain.MustParseDate(e.Date)
		if _, dup := rs.overrides[date]; dup {
			return nil, duplicateDate("field_overrides", e.Date)
		}
		fields := make([]FieldOverride, 0, len(e.Fields))
		for _, r := range e.Fields {
			fields = append(fields, FieldOverride{
				Group: domain.ReportGroup(r.Group),
				Key:   r.Key,
				Value: *r.Value,
			})
		}
		rs.overrides[date] = fields
	}

	for _, e := range f.Headlines {
		date := domain.MustParseDate(e.Date)
		if _, dup := rs.headlines[date]; dup {
			return nil, duplicateDate("headlines", e.Date)
		}
		rs.headlines[date] = Headline{Cases: domain.Known(*e.Cases), Deaths: domain.Known(*e.Deaths)}
	}

	for _, e := range f.NoReports {
		date := domain.MustParseDate(e.Date)
		if _, dup := rs.noReports[date]; dup {
			return nil, duplicateDate("no_reports", e.Date)
		}
		h := Headline{Cases: domain.Known(*e.Cases)}
		if e.Deaths != nil {
			h.Deaths = domain.Known(*e.Deaths)
		}
		rs.noReports[date] = h
	}

	for _, e := range f.Exclusions {
		date := domain.MustParseDate(e.Date)
		if rs.exclusions[date] == nil {
			rs.exclusions[date] = map[string]struct{}{}
		}
		rs.exclusions[date][e.Area] = struct{}{}
	}

	for _, e := range f.AreaOverrides {
		date := domain.MustParseDate(e.Date)
		if _, dup := rs.areaOverrides[date]; dup {
			return nil, duplicateDate("area_overrides", e.Date)
		}
		rows := make([]domain.AreaRow, 0, len(e.Areas))
		for _, a := range e.Areas {
			row := domain.AreaRow{Name: a.Name}
			if a.Cases != nil {
				row.Cases = domain.Known(*a.Cases)
			}
			if a.Rate != nil {
				row.CaseRate = domain.KnownMeasure(*a.Rate)
			}
			if a.Outbreak != nil {
				row.Outbreak = domain.FlagOf(*a.Outbreak)
			}
			rows = append(rows, row)
		}
		rs.areaOverrides[date] = rows
	}

	for _, area := range f.OutbreakOutliers {
		rs.outliers[area] = struct{}{}
	}

	return rs, nil
}

func duplicateDate(table, date string) error {
	return apperrors.NewRulesError(fmt.Sprintf("date %s listed twice in %s", date, table), nil)
}
