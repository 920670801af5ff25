package perftester

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Signif rounds v to the given number of significant digits.
func Signif(v float64, digits int) float64 {
	if digits <= 0 || v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', digits, 64), 64)
	if err != nil {
		return v
	}
	return r
}

func signifSlice(vs []float64, digits int) []float64 {
	if vs == nil {
		return nil
	}
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = Signif(v, digits)
	}
	return out
}

// Rounded returns a copy with every figure rounded to digits.
func (r TimeResult) Rounded(digits int) TimeResult {
	return TimeResult{
		Min:              Signif(r.Min, digits),
		MinRelative:      Signif(r.MinRelative, digits),
		Mean:             Signif(r.Mean, digits),
		Max:              Signif(r.Max, digits),
		RawTimes:         signifSlice(r.RawTimes, digits),
		RawTimesRelative: signifSlice(r.RawTimesRelative, digits),
	}
}

// Rounded returns a copy with every figure rounded to digits.
func (r MemoryResult) Rounded(digits int) MemoryResult {
	out := MemoryResult{
		Max:                     Signif(r.Max, digits),
		MaxRelative:             Signif(r.MaxRelative, digits),
		Mean:                    Signif(r.Mean, digits),
		MaxResultPerRun:         signifSlice(r.MaxResultPerRun, digits),
		MaxResultPerRunRelative: signifSlice(r.MaxResultPerRunRelative, digits),
		MeanResultPerRun:        signifSlice(r.MeanResultPerRun, digits),
	}
	for _, run := range r.RawResults {
		out.RawResults = append(out.RawResults, signifSlice(run, digits))
	}
	for _, run := range r.RelativeResults {
		out.RelativeResults = append(out.RelativeResults, signifSlice(run, digits))
	}
	return out
}

// settingsView renders counts with thousands separators.
type settingsView struct {
	Time struct {
		Number string `yaml:"number"`
		Repeat string `yaml:"repeat"`
	} `yaml:"time"`
	Memory struct {
		Repeat string `yaml:"repeat"`
	} `yaml:"memory"`
}

func viewSettings(s Settings) settingsView {
	var v settingsView
	v.Time.Number = humanize.Comma(int64(s.Time.Number))
	v.Time.Repeat = humanize.Comma(int64(s.Time.Repeat))
	v.Memory.Repeat = humanize.Comma(int64(s.Memory.Repeat))
	return v
}

// PP pretty-prints values to w. Results are rounded to the store's display
// precision and rendered as YAML; other floats are rounded as well.
func (c *Config) PP(w io.Writer, values ...any) error {
	d := c.Digits()
	for _, v := range values {
		var out any
		switch x := v.(type) {
		case TimeResult:
			fmt.Fprintln(w, "Time data are printed in seconds.")
			out = x.Rounded(d)
		case MemoryResult:
			fmt.Fprintln(w, "Memory data are printed in MB.")
			out = x.Rounded(d)
		case Results:
			out = Results{Time: x.Time.Rounded(d), Memory: x.Memory.Rounded(d)}
		case Settings:
			out = viewSettings(x)
		case float64:
			out = Signif(x, d)
		case []float64:
			out = signifSlice(x, d)
		default:
			out = x
		}
		b, err := yaml.Marshal(out)
		if err != nil {
			return errors.Wrapf(err, "rendering %T", v)
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// SettingsTable returns the defaults and every configured subject's
// settings keyed by subject name, ready for PP.
func (c *Config) SettingsTable() map[string]any {
	table := map[string]any{"defaults": viewSettings(c.Defaults())}
	subjects := map[string]settingsView{}
	for _, s := range c.Subjects() {
		subjects[s.Name()] = viewSettings(c.Settings(s))
	}
	table["settings"] = subjects
	return table
}
