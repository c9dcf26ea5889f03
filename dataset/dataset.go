// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dataset holds table helpers built on gota dataframes: CSV input and output,
// column roles, train/test splitting and missing value statistics.
package dataset

import (
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gorse-io/imputer/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// NaNValues are the CSV cells read as missing values.
var NaNValues = []string{"", "NA", "NaN", "<nil>"}

// LoadCSV reads a table from a CSV stream with a header line. Column types are detected
// unless overridden by opts.
func LoadCSV(r io.Reader, opts ...dataframe.LoadOption) (dataframe.DataFrame, error) {
	opts = append([]dataframe.LoadOption{dataframe.NaNValues(NaNValues)}, opts...)
	df := dataframe.ReadCSV(r, opts...)
	if df.Err != nil {
		return df, errors.Annotate(df.Err, "failed to load csv")
	}
	return df, nil
}

// ReadCSVFile reads a table from a CSV file.
func ReadCSVFile(path string, opts ...dataframe.LoadOption) (dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, errors.Trace(err)
	}
	defer file.Close()
	df, err := LoadCSV(file, opts...)
	if err != nil {
		return df, errors.Trace(err)
	}
	log.Logger().Debug("load dataset",
		zap.String("path", path),
		zap.Int("rows", df.Nrow()),
		zap.Int("cols", df.Ncol()))
	return df, nil
}

// WriteCSVFile writes a table to a CSV file with a header line.
func WriteCSVFile(path string, df dataframe.DataFrame) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	if err = formatFloats(df).WriteCSV(file); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	return errors.Trace(file.Close())
}

// formatFloats replaces float columns by their shortest exact representations. A dot is
// kept on integral values so that the column is read back as float.
func formatFloats(df dataframe.DataFrame) dataframe.DataFrame {
	for _, name := range df.Names() {
		col := df.Col(name)
		if col.Type() != series.Float {
			continue
		}
		records := lo.Map(col.Float(), func(v float64, _ int) string {
			if math.IsNaN(v) {
				return "NaN"
			}
			text := strconv.FormatFloat(v, 'g', -1, 64)
			if !strings.ContainsAny(text, ".eIn") {
				text += ".0"
			}
			return text
		})
		df = df.Mutate(series.New(records, series.String, name))
	}
	return df
}

// SplitTarget separates the target column from the feature columns.
func SplitTarget(df dataframe.DataFrame, target string) (dataframe.DataFrame, series.Series, error) {
	if df.Err != nil {
		return df, series.Series{}, errors.Trace(df.Err)
	}
	if !lo.Contains(df.Names(), target) {
		return df, series.Series{}, errors.NotFoundf("target column %q", target)
	}
	if df.Ncol() == 1 {
		return df, series.Series{}, errors.NotValidf("no feature column besides target %q", target)
	}
	x := df.Drop(target)
	if x.Err != nil {
		return x, series.Series{}, errors.Trace(x.Err)
	}
	return x, df.Col(target), nil
}

// Matrix copies columns into a dense matrix. Missing values become NaN. Returns nil if
// there is no row or no column.
func Matrix(df dataframe.DataFrame, columns []string) (*mat.Dense, error) {
	if df.Err != nil {
		return nil, errors.Trace(df.Err)
	}
	if len(columns) == 0 || df.Nrow() == 0 {
		return nil, nil
	}
	m := mat.NewDense(df.Nrow(), len(columns), nil)
	for j, name := range columns {
		col := df.Col(name)
		if col.Err != nil {
			return nil, errors.NotFoundf("column %q", name)
		}
		m.SetCol(j, col.Float())
	}
	return m, nil
}

// ReplaceColumns replaces columns by the columns of m as float columns.
func ReplaceColumns(df dataframe.DataFrame, columns []string, m mat.Matrix) (dataframe.DataFrame, error) {
	if len(columns) == 0 {
		return df, nil
	}
	r, c := m.Dims()
	if c != len(columns) || r != df.Nrow() {
		return df, errors.NotValidf("%dx%d matrix for %d rows and %d columns", r, c, df.Nrow(), len(columns))
	}
	for j, name := range columns {
		df = df.Mutate(series.New(mat.Col(nil, j, m), series.Float, name))
		if df.Err != nil {
			return df, errors.Trace(df.Err)
		}
	}
	return df, nil
}

// SeriesFrame wraps a series into a single column table.
func SeriesFrame(s series.Series) dataframe.DataFrame {
	return dataframe.New(s)
}
