package dataset

import (
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// MissingMarkers are the cell values read as missing.
var MissingMarkers = []string{"", "NA", "NaN", "nan", "null", "<nil>"}

// LoadCSV reads the CSV file at path. See ReadCSV.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load dataset %s", path)
	}
	return t, nil
}

// ReadCSV parses a CSV stream with a header row. Column types are detected
// per column: integer and float columns become Numeric, everything else
// (strings, booleans) becomes Categorical. Cells matching MissingMarkers are
// missing.
func ReadCSV(r io.Reader) (*Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(MissingMarkers),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "parse CSV")
	}
	if df.Nrow() == 0 || df.Ncol() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "parse CSV: no data rows")
	}

	t := NewTable()
	for _, name := range df.Names() {
		s := df.Col(name)
		var err error
		switch s.Type() {
		case series.Int, series.Float:
			err = t.AddNumeric(name, s.Float())
		default:
			values := s.Records()
			missing := s.IsNaN()
			for i, m := range missing {
				if m {
					values[i] = ""
				}
			}
			err = t.AddCategorical(name, values, missing)
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}
