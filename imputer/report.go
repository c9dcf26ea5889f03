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

package imputer

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/gorse-io/imputer/base/log"
	"github.com/gorse-io/imputer/dataset"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	StageBefore = "before imputing"
	StageAfter  = "after imputing"
)

// Rule separates report blocks.
var Rule = strings.Repeat("-", 100)

// Snapshot describes missing values of the train features at a stage.
type Snapshot struct {
	Stage   string
	Rows    int
	Cols    int
	Missing []dataset.ColumnMissing
}

// TakeSnapshot counts missing values of df.
func TakeSnapshot(stage string, df dataframe.DataFrame) Snapshot {
	rows, cols := df.Dims()
	return Snapshot{
		Stage:   stage,
		Rows:    rows,
		Cols:    cols,
		Missing: dataset.CountMissing(df),
	}
}

// TotalMissing returns the number of missing cells.
func (s Snapshot) TotalMissing() int {
	return lo.SumBy(s.Missing, func(c dataset.ColumnMissing) int {
		return c.Missing
	})
}

// Reporter receives snapshots before and after imputation.
type Reporter interface {
	Report(snapshot Snapshot)
}

// LogReporter writes snapshots to the logger.
type LogReporter struct{}

func (LogReporter) Report(snapshot Snapshot) {
	log.Logger().Info("x_train missing value "+snapshot.Stage,
		zap.Int("rows", snapshot.Rows),
		zap.Int("cols", snapshot.Cols),
		zap.Object("missing", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
			for _, c := range snapshot.Missing {
				enc.AddInt(c.Column, c.Missing)
			}
			return nil
		})))
}

// TextReporter prints snapshots as plain text blocks.
type TextReporter struct {
	W io.Writer
}

func (r TextReporter) Report(snapshot Snapshot) {
	width := lo.Max(lo.Map(snapshot.Missing, func(c dataset.ColumnMissing, _ int) int {
		return len(c.Column)
	}))
	var b strings.Builder
	fmt.Fprintf(&b, "x_train missing value %s\n", snapshot.Stage)
	for _, c := range snapshot.Missing {
		fmt.Fprintf(&b, "%-*s    %d\n", width, c.Column, c.Missing)
	}
	fmt.Fprintf(&b, "x_train shape %s (%d, %d)\n", snapshot.Stage, snapshot.Rows, snapshot.Cols)
	b.WriteString(Rule)
	b.WriteString("\n")
	if _, err := io.WriteString(r.W, b.String()); err != nil {
		log.Logger().Error("failed to write report", zap.Error(err))
	}
}
