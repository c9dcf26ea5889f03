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

package impute

import (
	"context"
	"math"
	"slices"

	"github.com/gorse-io/imputer/common/parallel"
	"github.com/gorse-io/imputer/model"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SimpleImputer replaces missing values (NaN) of every column by a column statistic.
type SimpleImputer struct {
	model.BaseModel
	Statistics []float64 // fitted statistic per column
	strategy   string
	fillValue  float64
}

// NewSimpleImputer creates a SimpleImputer. Supported params are
// InitialStrategy (mean, median, most_frequent, constant) and FillValue.
func NewSimpleImputer(params model.Params) *SimpleImputer {
	imputer := new(SimpleImputer)
	imputer.SetParams(params)
	return imputer
}

func (imputer *SimpleImputer) SetParams(params model.Params) {
	imputer.BaseModel.SetParams(params)
	imputer.strategy = imputer.Params.GetString(model.InitialStrategy, model.Mean)
	imputer.fillValue = imputer.Params.GetFloat64(model.FillValue, 0)
}

func (imputer *SimpleImputer) Clear() {
	imputer.Statistics = nil
}

// Fit computes the statistic of every column from its observed values. A column
// without observed values gets statistic 0.
func (imputer *SimpleImputer) Fit(ctx context.Context, x mat.Matrix, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	switch imputer.strategy {
	case model.Mean, model.Median, model.MostFrequent, model.Constant:
	default:
		return errors.NotValidf("initial strategy %q", imputer.strategy)
	}
	nSamples, nFeatures := x.Dims()
	statistics := make([]float64, nFeatures)
	err := parallel.For(ctx, nFeatures, config.Jobs, func(j int) {
		observed := make([]float64, 0, nSamples)
		for i := 0; i < nSamples; i++ {
			if v := x.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		statistics[j] = imputer.statistic(observed)
	})
	if err != nil {
		return errors.Trace(err)
	}
	imputer.Statistics = statistics
	return nil
}

func (imputer *SimpleImputer) statistic(observed []float64) float64 {
	if imputer.strategy == model.Constant {
		return imputer.fillValue
	}
	if len(observed) == 0 {
		return 0
	}
	switch imputer.strategy {
	case model.Median:
		slices.Sort(observed)
		n := len(observed)
		if n%2 == 1 {
			return observed[n/2]
		}
		return (observed[n/2-1] + observed[n/2]) / 2
	case model.MostFrequent:
		// the smallest value wins ties
		slices.Sort(observed)
		best, bestCount := observed[0], 0
		for i := 0; i < len(observed); {
			j := i
			for j < len(observed) && observed[j] == observed[i] {
				j++
			}
			if j-i > bestCount {
				best, bestCount = observed[i], j-i
			}
			i = j
		}
		return best
	default:
		return stat.Mean(observed, nil)
	}
}

// Transform returns a copy of x in which missing values are replaced by the fitted statistics.
func (imputer *SimpleImputer) Transform(x mat.Matrix) (*mat.Dense, error) {
	nSamples, nFeatures := x.Dims()
	if imputer.Statistics == nil {
		return nil, errors.New("simple imputer is not fitted")
	}
	if nFeatures != len(imputer.Statistics) {
		return nil, errors.NotValidf("%d features but imputer fitted on %d", nFeatures, len(imputer.Statistics))
	}
	xt := mat.DenseCopyOf(x)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			if math.IsNaN(xt.At(i, j)) {
				xt.Set(i, j, imputer.Statistics[j])
			}
		}
	}
	return xt, nil
}

// FitTransform fits the imputer on x and then transforms x.
func (imputer *SimpleImputer) FitTransform(ctx context.Context, x mat.Matrix, config *FitConfig) (*mat.Dense, error) {
	if err := imputer.Fit(ctx, x, config); err != nil {
		return nil, errors.Trace(err)
	}
	return imputer.Transform(x)
}
