// Package regions rolls area series up to service planning areas.
package regions

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	apperrors "lacphcli/internal/errors"
)

//go:embed areas.csv
var defaultAreas []byte

// Map assigns areas to regions. Regions carry their official service
// planning area number, which is also their output order.
type Map struct {
	areas map[string]string
	spa   map[string]int
}

var loadDefault = sync.OnceValues(func() (*Map, error) {
	return ParseMap(bytes.NewReader(defaultAreas))
})

// DefaultMap returns the area map embedded in the binary.
func DefaultMap() (*Map, error) {
	return loadDefault()
}

// LoadMap reads an area map from a CSV file.
func LoadMap(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewConfigError("open region map", err).WithContext("path", path)
	}
	defer f.Close()

	m, err := ParseMap(f)
	if err != nil {
		return nil, fmt.Errorf("load region map %s: %w", path, err)
	}
	return m, nil
}

// ParseMap reads CSV rows of area, region and planning area number after an
// "area,region,spa" header.
func ParseMap(r io.Reader) (*Map, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewConfigError("read region map header", err)
	}
	if strings.Join(header, ",") != "area,region,spa" {
		return nil, apperrors.NewConfigError(fmt.Sprintf("unexpected region map header %q", header), nil)
	}

	m := &Map{areas: map[string]string{}, spa: map[string]int{}}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewConfigError("read region map", err)
		}
		area, region := strings.TrimSpace(record[0]), strings.TrimSpace(record[1])
		spa, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil || spa <= 0 || area == "" || region == "" {
			return nil, apperrors.NewConfigError("invalid region map row", err).WithContext("line", line)
		}
		if prev, ok := m.areas[area]; ok && prev != region {
			return nil, apperrors.NewConfigError(fmt.Sprintf("area %q mapped to %s and %s", area, prev, region), nil).WithContext("line", line)
		}
		if prev, ok := m.spa[region]; ok && prev != spa {
			return nil, apperrors.NewConfigError(fmt.Sprintf("region %q numbered %d and %d", region, prev, spa), nil).WithContext("line", line)
		}
		m.areas[area] = region
		m.spa[region] = spa
	}
	return m, nil
}

// Region returns the region of area.
func (m *Map) Region(area string) (string, bool) {
	r, ok := m.areas[area]
	return r, ok
}

// SPA returns the planning area number of region. Unknown regions sort last.
func (m *Map) SPA(region string) int {
	if n, ok := m.spa[region]; ok {
		return n
	}
	return 1 << 30
}

// Regions lists the regions in planning area order.
func (m *Map) Regions() []string {
	out := make([]string, 0, len(m.spa))
	for r := range m.spa {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if m.spa[out[i]] != m.spa[out[j]] {
			return m.spa[out[i]] < m.spa[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

