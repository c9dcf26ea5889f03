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

package dataset

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gorse-io/imputer/base/log"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ColumnMissing is the number of missing cells in a column.
type ColumnMissing struct {
	Column  string
	Missing int
}

// CountMissing counts missing cells of every column, in column order.
func CountMissing(df dataframe.DataFrame) []ColumnMissing {
	return lo.Map(df.Names(), func(name string, _ int) ColumnMissing {
		return ColumnMissing{Column: name, Missing: lo.Count(df.Col(name).IsNaN(), true)}
	})
}

// Mode returns the most frequent observed value of s. Ties go to the smallest value.
// Returns false if s has no observed value.
func Mode(s series.Series) (string, bool) {
	dict := NewFreqDict()
	for i := 0; i < s.Len(); i++ {
		if e := s.Elem(i); !e.IsNA() {
			dict.Id(e.String())
		}
	}
	id, ok := dict.Mode()
	if !ok {
		return "", false
	}
	mode, _ := dict.String(id)
	log.Logger().Debug("column mode",
		zap.String("column", s.Name),
		zap.String("mode", mode),
		zap.Int("freq", dict.Freq(id)),
		zap.Int("n_values", dict.Count()))
	return mode, true
}

// FillNaN returns a copy of s whose missing values are replaced by value.
func FillNaN(s series.Series, value string) series.Series {
	records := make([]string, s.Len())
	for i := range records {
		if e := s.Elem(i); e.IsNA() {
			records[i] = value
		} else {
			records[i] = e.String()
		}
	}
	return series.New(records, s.Type(), s.Name)
}
