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
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gorse-io/imputer/base/log"
	"github.com/gorse-io/imputer/common/util"
	"github.com/gorse-io/imputer/config"
	"github.com/gorse-io/imputer/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const bankCSV = `age,job,balance,y
30,admin,1200,no
41,technician,,yes
,services,800,no
52,admin,2300,yes
28,,400,no
35,technician,1500,no
NA,admin,1900,yes
47,services,,no
39,admin,1300,no
60,,3100,yes
33,technician,900,no
44,admin,,no
,services,1000,yes
51,technician,2700,no
26,admin,300,no
38,,1400,yes
45,services,2000,no
31,admin,,no
57,technician,2900,yes
36,admin,1100,no
`

type ImputeTestSuite struct {
	suite.Suite
	df dataframe.DataFrame
}

func (suite *ImputeTestSuite) SetupTest() {
	var err error
	suite.df, err = dataset.LoadCSV(strings.NewReader(bankCSV))
	suite.Require().NoError(err)
}

func (suite *ImputeTestSuite) impute(cfg *config.Config, opts ...Option) *Result {
	result, err := IterativeImpute(context.Background(), suite.df, "y", cfg, append([]Option{WithReporter(nil)}, opts...)...)
	suite.Require().NoError(err)
	return result
}

func (suite *ImputeTestSuite) TestImpute() {
	result := suite.impute(nil)
	// roles
	suite.Equal([]string{"age", "balance"}, result.Roles.Numerical)
	suite.Equal([]string{"job"}, result.Roles.Categorical)
	// sizes
	suite.Equal(15, result.TrainX.Nrow())
	suite.Equal(5, result.TestX.Nrow())
	suite.Equal(15, result.TrainY.Len())
	suite.Equal(5, result.TestY.Len())
	suite.Equal([]string{"age", "job", "balance"}, result.TrainX.Names())
	// no missing value left
	for _, df := range []dataframe.DataFrame{result.TrainX, result.TestX} {
		for _, c := range dataset.CountMissing(df) {
			suite.Zero(c.Missing, c.Column)
		}
	}
	suite.Zero(result.After.TotalMissing())
	suite.Equal(15, result.Before.Rows)
	suite.Equal(3, result.Before.Cols)
	// numerical columns become float columns
	suite.Equal(series.Float, result.TrainX.Col("age").Type())
	suite.Equal(series.Float, result.TestX.Col("balance").Type())
	suite.NotNil(result.Imputer)
	suite.Equal(2, result.Imputer.NFeatures)

	trainX, testX, trainY, testY := result.Unpack()
	suite.Equal(result.TrainX, trainX)
	suite.Equal(result.TestX, testX)
	suite.Equal(result.TrainY, trainY)
	suite.Equal(result.TestY, testY)
}

func (suite *ImputeTestSuite) TestAlignment() {
	result := suite.impute(nil)
	x, y, err := dataset.SplitTarget(suite.df, "y")
	suite.Require().NoError(err)
	check := func(imputed dataframe.DataFrame, target series.Series, index []int) {
		for i, row := range index {
			suite.Equal(y.Elem(row).String(), target.Elem(i).String())
			for _, name := range []string{"age", "balance"} {
				if original := x.Col(name).Elem(row); !original.IsNA() {
					suite.Equal(original.Float(), imputed.Col(name).Elem(i).Float())
				}
			}
			if original := x.Col("job").Elem(row); !original.IsNA() {
				suite.Equal(original.String(), imputed.Col("job").Elem(i).String())
			} else {
				suite.Equal(result.Modes["job"], imputed.Col("job").Elem(i).String())
			}
		}
	}
	check(result.TrainX, result.TrainY, result.TrainIndex)
	check(result.TestX, result.TestY, result.TestIndex)
	// every row is in exactly one partition
	suite.ElementsMatch(util.RangeInt(20), append(append([]int{}, result.TrainIndex...), result.TestIndex...))
}

func (suite *ImputeTestSuite) TestModeFromFullTable() {
	result := suite.impute(nil)
	// admin appears 8 times in the whole table
	suite.Equal(map[string]string{"job": "admin"}, result.Modes)
}

func (suite *ImputeTestSuite) TestReproducible() {
	a := suite.impute(nil)
	b := suite.impute(nil)
	suite.Equal(a.TrainIndex, b.TrainIndex)
	suite.Equal(a.TestIndex, b.TestIndex)
	suite.Equal(a.TrainX.Records(), b.TrainX.Records())
	suite.Equal(a.TestX.Records(), b.TestX.Records())

	cfg := config.GetDefaultConfig()
	cfg.Split.RandomSeed = 2
	c := suite.impute(cfg)
	suite.Len(c.TrainIndex, 15)
}

func (suite *ImputeTestSuite) TestTestFraction() {
	cfg := config.GetDefaultConfig()
	cfg.Split.TestFraction = 0.5
	result := suite.impute(cfg)
	suite.Equal(10, result.TrainX.Nrow())
	suite.Equal(10, result.TestX.Nrow())
}

func (suite *ImputeTestSuite) TestExplicitRoles() {
	cfg := config.GetDefaultConfig()
	cfg.Columns.Numerical = []string{"balance"}
	cfg.Columns.Categorical = []string{}
	result := suite.impute(cfg)
	suite.Equal([]string{"balance"}, result.Roles.Numerical)
	suite.Empty(result.Modes)
	// untouched columns keep missing values and types
	suite.Equal(series.Int, result.TrainX.Col("age").Type())
	suite.False(result.TrainX.Col("balance").HasNaN())
	suite.Equal(result.Before.Missing[0], result.After.Missing[0])
}

func (suite *ImputeTestSuite) TestCallback() {
	rounds := 0
	result := suite.impute(nil, WithCallback(func(round int, change float64) {
		rounds++
		suite.Equal(rounds, round)
	}))
	suite.Equal(result.Imputer.NIter, rounds)
}

func (suite *ImputeTestSuite) TestTextReporter() {
	var buf bytes.Buffer
	_, err := IterativeImpute(context.Background(), suite.df, "y", nil, WithReporter(TextReporter{W: &buf}))
	suite.Require().NoError(err)
	text := buf.String()
	suite.Contains(text, "x_train missing value before imputing\n")
	suite.Contains(text, "x_train shape before imputing (15, 3)\n")
	suite.Contains(text, "x_train missing value after imputing\n")
	suite.Contains(text, "balance    0\n")
	suite.Equal(2, strings.Count(text, Rule+"\n"))
}

func (suite *ImputeTestSuite) TestErrors() {
	_, err := IterativeImpute(context.Background(), suite.df, "unknown", nil, WithReporter(nil))
	suite.True(errors.Is(err, errors.NotFound))

	cfg := config.GetDefaultConfig()
	cfg.Columns.Numerical = []string{"job"}
	_, err = IterativeImpute(context.Background(), suite.df, "y", cfg, WithReporter(nil))
	suite.True(errors.Is(err, errors.NotValid))

	cfg = config.GetDefaultConfig()
	cfg.Split.TestFraction = 1
	_, err = IterativeImpute(context.Background(), suite.df, "y", cfg, WithReporter(nil))
	suite.True(errors.Is(err, errors.NotValid))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = IterativeImpute(ctx, suite.df, "y", nil, WithReporter(nil))
	suite.ErrorIs(err, context.Canceled)
}

func TestLogReporter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	defer log.ReplaceLogger(zap.New(core))()
	LogReporter{}.Report(Snapshot{
		Stage: StageBefore,
		Rows:  15,
		Cols:  2,
		Missing: []dataset.ColumnMissing{
			{Column: "rows", Missing: 2},
			{Column: "balance", Missing: 3},
		},
	})
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "x_train missing value before imputing", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, int64(15), fields["rows"])
	assert.Equal(t, int64(2), fields["cols"])
	assert.Equal(t, map[string]interface{}{"rows": int64(2), "balance": int64(3)}, fields["missing"])
}

func TestImpute(t *testing.T) {
	suite.Run(t, new(ImputeTestSuite))
}

func TestImpute_NoMissingValue(t *testing.T) {
	df := dataframe.New(
		series.New([]float64{1, 2, 3, 4, 5, 6, 7, 8}, series.Float, "a"),
		series.New([]float64{2, 1, 4, 3, 6, 5, 8, 7}, series.Float, "b"),
		series.New([]string{"x", "y", "x", "y", "x", "y", "x", "y"}, series.String, "c"),
		series.New([]bool{true, false, true, false, true, false, true, false}, series.Bool, "d"),
		series.New([]int{0, 1, 0, 1, 0, 1, 0, 1}, series.Int, "target"),
	)
	result, err := IterativeImpute(context.Background(), df, "target", nil, WithReporter(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, result.Roles.Passthrough(result.TrainX))
	assert.True(t, result.Converged)
	for _, p := range []struct {
		x     dataframe.DataFrame
		index []int
	}{{result.TrainX, result.TrainIndex}, {result.TestX, result.TestIndex}} {
		assert.Equal(t, df.Drop("target").Subset(p.index).Records(), p.x.Records())
	}
}

func TestImpute_ModeDiffersFromTrainMode(t *testing.T) {
	const n = 20
	numbers := make([]float64, n)
	targets := make([]int, n)
	for i := range numbers {
		numbers[i] = float64(i)
		targets[i] = i % 2
	}
	// partitions only depend on the number of rows and the seed
	cfg := config.GetDefaultConfig()
	train, test, err := dataset.TrainTestSplit(
		dataframe.New(series.New(numbers, series.Float, "a")),
		series.New(targets, series.Int, "target"),
		cfg.Split.TestFraction, cfg.Split.RandomSeed)
	require.NoError(t, err)
	require.Len(t, train.Index, 15)
	require.Len(t, test.Index, 5)

	// train: 4 a, 5 b, 4 c, 2 missing; test: 3 a, 2 missing; whole table: 7 a, 5 b
	jobs := make([]string, n)
	for k, row := range train.Index {
		jobs[row] = []string{"a", "a", "a", "a", "b", "b", "b", "b", "b", "c", "c", "c", "c", "NaN", "NaN"}[k]
	}
	for k, row := range test.Index {
		jobs[row] = []string{"a", "a", "a", "NaN", "NaN"}[k]
	}
	df := dataframe.New(
		series.New(numbers, series.Float, "a"),
		series.New(jobs, series.String, "job"),
		series.New(targets, series.Int, "target"),
	)
	trainMode, ok := dataset.Mode(df.Subset(train.Index).Col("job"))
	require.True(t, ok)
	require.Equal(t, "b", trainMode)

	result, err := IterativeImpute(context.Background(), df, "target", cfg, WithReporter(nil))
	require.NoError(t, err)
	assert.Equal(t, train.Index, result.TrainIndex)
	assert.Equal(t, test.Index, result.TestIndex)
	assert.Equal(t, map[string]string{"job": "a"}, result.Modes)
	assert.Equal(t, []string{"a", "a", "a", "a", "b", "b", "b", "b", "b", "c", "c", "c", "c", "a", "a"},
		result.TrainX.Col("job").Records())
	assert.Equal(t, []string{"a", "a", "a", "a", "a"}, result.TestX.Col("job").Records())
}

func TestImpute_UnobservedCategory(t *testing.T) {
	df := dataframe.New(
		series.New([]float64{1, math.NaN(), 3, 4, 5, 6, 7, 8}, series.Float, "a"),
		series.New([]float64{2, 4, 6, 8, 10, 12, math.NaN(), 16}, series.Float, "b"),
		series.New([]string{"NaN", "NaN", "NaN", "NaN", "NaN", "NaN", "NaN", "NaN"}, series.String, "c"),
		series.New([]int{0, 1, 0, 1, 0, 1, 0, 1}, series.Int, "target"),
	)
	result, err := IterativeImpute(context.Background(), df, "target", nil, WithReporter(nil))
	require.NoError(t, err)
	assert.Empty(t, result.Modes)
	assert.False(t, result.TrainX.Col("a").HasNaN())
	assert.False(t, result.TrainX.Col("b").HasNaN())
	assert.Equal(t, result.TrainX.Nrow(), lo.Count(result.TrainX.Col("c").IsNaN(), true))
}
