// Package universe loads the list of instruments to screen.
package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"VolumeSentinel/internal/model"
)

// Classes are the board labels used in run statistics, in display order.
var Classes = []string{"60", "68", "other"}

// Class maps a code to its board label: Shanghai main board, STAR market,
// or everything else.
func Class(code string) string {
	switch {
	case strings.HasPrefix(code, "60"):
		return "60"
	case strings.HasPrefix(code, "68"):
		return "68"
	default:
		return "other"
	}
}

type yamlFile struct {
	Instruments []model.Instrument `yaml:"instruments"`
}

// Load reads instruments from a .yaml/.yml or .csv file, then applies Filter.
func Load(path string, prefixes []string) ([]model.Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe: %w", err)
	}
	defer f.Close()

	var list []model.Instrument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc yamlFile
		if err := yaml.NewDecoder(f).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse universe %s: %w", path, err)
		}
		list = doc.Instruments
	default:
		list, err = readCSV(f)
		if err != nil {
			return nil, fmt.Errorf("parse universe %s: %w", path, err)
		}
	}
	return Filter(list, prefixes), nil
}

// readCSV accepts "code,name" rows with an optional header line.
func readCSV(r io.Reader) ([]model.Instrument, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []model.Instrument
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		code := strings.TrimPrefix(strings.TrimSpace(rec[0]), "\ufeff")
		if code == "" || (line == 1 && !isDigits(code)) {
			continue
		}
		inst := model.Instrument{Code: code}
		if len(rec) > 1 {
			inst.Name = strings.TrimSpace(rec[1])
		}
		out = append(out, inst)
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Filter drops duplicate codes (first entry wins) and, when prefixes is
// non-empty, codes matching none of them. A missing name defaults to the code.
func Filter(list []model.Instrument, prefixes []string) []model.Instrument {
	seen := make(map[string]struct{}, len(list))
	out := make([]model.Instrument, 0, len(list))
	for _, inst := range list {
		inst.Code = strings.TrimSpace(inst.Code)
		if inst.Code == "" {
			continue
		}
		if _, dup := seen[inst.Code]; dup {
			continue
		}
		if !matchesAny(inst.Code, prefixes) {
			continue
		}
		seen[inst.Code] = struct{}{}
		if inst.Name == "" {
			inst.Name = inst.Code
		}
		out = append(out, inst)
	}
	return out
}

func matchesAny(code string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}
