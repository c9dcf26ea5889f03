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

// Package imputer splits a table into train and test partitions and fills their missing
// values: numerical columns by an iterative imputer fitted on the train partition and
// categorical columns by the mode of the whole table.
package imputer

import (
	"context"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gorse-io/imputer/base/log"
	"github.com/gorse-io/imputer/config"
	"github.com/gorse-io/imputer/dataset"
	"github.com/gorse-io/imputer/model/impute"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Result holds imputed partitions and what was learned to impute them.
type Result struct {
	TrainX     dataframe.DataFrame
	TestX      dataframe.DataFrame
	TrainY     series.Series
	TestY      series.Series
	TrainIndex []int // rows of the input table in the train partition
	TestIndex  []int // rows of the input table in the test partition
	Roles      dataset.ColumnRoles
	Modes      map[string]string
	Imputer    *impute.IterativeImputer // nil if there is no numerical column
	Before     Snapshot
	After      Snapshot
	Converged  bool
}

// Unpack returns train features, test features, train target and test target.
func (r *Result) Unpack() (dataframe.DataFrame, dataframe.DataFrame, series.Series, series.Series) {
	return r.TrainX, r.TestX, r.TrainY, r.TestY
}

type options struct {
	reporter Reporter
	callback func(round int, change float64)
}

// Option configures IterativeImpute.
type Option func(*options)

// WithReporter sets where snapshots are reported. A nil reporter disables reports.
func WithReporter(reporter Reporter) Option {
	return func(o *options) {
		o.reporter = reporter
	}
}

// WithCallback sets the function called after every round of the iterative imputer.
func WithCallback(callback func(round int, change float64)) Option {
	return func(o *options) {
		o.callback = callback
	}
}

// IterativeImpute separates target from df, splits rows into train and test partitions
// and imputes missing feature values of both. The iterative imputer is fitted on the
// train partition only. Modes of categorical columns come from all rows of df.
func IterativeImpute(ctx context.Context, df dataframe.DataFrame, target string, cfg *config.Config, opts ...Option) (*Result, error) {
	o := &options{reporter: LogReporter{}}
	for _, opt := range opts {
		opt(o)
	}
	cfg = cfg.LoadDefaultIfNil()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	start := time.Now()

	x, y, err := dataset.SplitTarget(df, target)
	if err != nil {
		return nil, errors.Trace(err)
	}
	roles, err := dataset.ResolveRoles(x, cfg.Columns.Numerical, cfg.Columns.Categorical)
	if err != nil {
		return nil, errors.Trace(err)
	}
	train, test, err := dataset.TrainTestSplit(x, y, cfg.Split.TestFraction, cfg.Split.RandomSeed)
	if err != nil {
		return nil, errors.Trace(err)
	}
	result := &Result{
		TrainY:     train.Y,
		TestY:      test.Y,
		TrainIndex: train.Index,
		TestIndex:  test.Index,
		Roles:      roles,
		Modes:      make(map[string]string),
		Converged:  true,
	}
	result.Before = TakeSnapshot(StageBefore, train.X)
	if o.reporter != nil {
		o.reporter.Report(result.Before)
	}

	// numerical columns
	if len(roles.Numerical) > 0 {
		result.Imputer = impute.NewIterativeImputer(cfg.ImputerParams())
		fitConfig := impute.NewFitConfig().SetJobs(cfg.Jobs).SetCallback(o.callback)
		if train.X, err = imputeNumerical(ctx, result.Imputer, train.X, roles.Numerical, fitConfig); err != nil {
			return nil, errors.Trace(err)
		}
		if test.X, err = imputeNumerical(ctx, result.Imputer, test.X, roles.Numerical, nil); err != nil {
			return nil, errors.Trace(err)
		}
		result.Converged = result.Imputer.Converged
	}

	// categorical columns
	for _, name := range roles.Categorical {
		mode, ok := dataset.Mode(x.Col(name))
		if !ok {
			log.Logger().Warn("no observed value for mode", zap.String("column", name))
			continue
		}
		result.Modes[name] = mode
		train.X = train.X.Mutate(dataset.FillNaN(train.X.Col(name), mode))
		test.X = test.X.Mutate(dataset.FillNaN(test.X.Col(name), mode))
		if train.X.Err != nil {
			return nil, errors.Trace(train.X.Err)
		}
		if test.X.Err != nil {
			return nil, errors.Trace(test.X.Err)
		}
	}

	result.TrainX, result.TestX = train.X, test.X
	result.After = TakeSnapshot(StageAfter, train.X)
	if o.reporter != nil {
		o.reporter.Report(result.After)
	}
	log.Logger().Info("iterative imputation complete",
		zap.Int("n_train", train.Count()),
		zap.Int("n_test", test.Count()),
		zap.Strings("numerical", roles.Numerical),
		zap.Strings("categorical", roles.Categorical),
		zap.Strings("passthrough", roles.Passthrough(x)),
		zap.Bool("converged", result.Converged),
		zap.String("used_time", time.Since(start).String()))
	return result, nil
}

// imputeNumerical fits the imputer on columns of df if config is not nil, then replaces
// columns by their imputed values.
func imputeNumerical(ctx context.Context, imputer *impute.IterativeImputer, df dataframe.DataFrame,
	columns []string, config *impute.FitConfig) (dataframe.DataFrame, error) {
	m, err := dataset.Matrix(df, columns)
	if err != nil {
		return df, errors.Trace(err)
	} else if m == nil {
		return df, nil
	}
	if config != nil {
		if err = imputer.Fit(ctx, m, config); err != nil {
			return df, errors.Trace(err)
		}
	}
	var imputed *mat.Dense
	if imputed, err = imputer.Transform(m); err != nil {
		return df, errors.Trace(err)
	}
	return dataset.ReplaceColumns(df, columns, imputed)
}
