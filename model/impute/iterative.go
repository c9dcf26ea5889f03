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
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/gorse-io/imputer/base/log"
	"github.com/gorse-io/imputer/common/util"
	"github.com/gorse-io/imputer/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	corrTolerance     = 1e-6
	maxPosteriorDraws = 100
)

// Imputation is a fitted step of the round-robin: the feature being imputed, the
// features it is predicted from and the regressor doing so.
type Imputation struct {
	Feature   int
	Neighbors []int
	Estimator *model.BayesianRidge
}

// IterativeImputer models every feature with missing values as a function of the other
// features and imputes them in a round-robin fashion. Each round fits a BayesianRidge
// per feature on the rows where it is observed and predicts the rows where it is missing.
//
//	Van Buuren, S., & Groothuis-Oudshoorn, K. "mice: Multivariate imputation by chained
//	equations in R." Journal of statistical software 45 (2011): 1-67.
type IterativeImputer struct {
	model.BaseModel
	// Fitted state
	Sequence  []Imputation // imputation steps in the order they were fitted
	NIter     int          // number of rounds run during fitting
	Converged bool         // whether the early stopping criterion was reached
	NFeatures int
	initial   *SimpleImputer
	// Hyper parameters
	maxIter          int
	tol              float64
	initialStrategy  string
	imputationOrder  string
	nNearestFeatures int
	skipComplete     bool
	minValue         float64
	maxValue         float64
	samplePosterior  bool
}

// NewIterativeImputer creates an IterativeImputer.
func NewIterativeImputer(params model.Params) *IterativeImputer {
	imputer := new(IterativeImputer)
	imputer.SetParams(params)
	return imputer
}

func (imputer *IterativeImputer) SetParams(params model.Params) {
	imputer.BaseModel.SetParams(params)
	imputer.maxIter = imputer.Params.GetInt(model.MaxIter, 10)
	imputer.tol = imputer.Params.GetFloat64(model.Tol, 1e-3)
	imputer.initialStrategy = imputer.Params.GetString(model.InitialStrategy, model.Mean)
	imputer.imputationOrder = imputer.Params.GetString(model.ImputationOrder, model.Ascending)
	imputer.nNearestFeatures = imputer.Params.GetInt(model.NNearestFeatures, 0)
	imputer.skipComplete = imputer.Params.GetBool(model.SkipComplete, false)
	imputer.minValue = imputer.Params.GetFloat64(model.MinValue, math.Inf(-1))
	imputer.maxValue = imputer.Params.GetFloat64(model.MaxValue, math.Inf(1))
	imputer.samplePosterior = imputer.Params.GetBool(model.SamplePosterior, false)
}

func (imputer *IterativeImputer) Clear() {
	imputer.Sequence = nil
	imputer.NIter = 0
	imputer.Converged = false
	imputer.NFeatures = 0
	imputer.initial = nil
}

func (imputer *IterativeImputer) validate() error {
	if imputer.maxIter < 0 {
		return errors.NotValidf("max_iter %d", imputer.maxIter)
	}
	if imputer.tol < 0 {
		return errors.NotValidf("tol %v", imputer.tol)
	}
	if imputer.nNearestFeatures < 0 {
		return errors.NotValidf("n_nearest_features %d", imputer.nNearestFeatures)
	}
	if imputer.minValue > imputer.maxValue {
		return errors.NotValidf("min_value %v higher than max_value %v", imputer.minValue, imputer.maxValue)
	}
	switch imputer.imputationOrder {
	case model.Ascending, model.Descending, model.Roman, model.Arabic, model.Random:
	default:
		return errors.NotValidf("imputation order %q", imputer.imputationOrder)
	}
	return nil
}

// Fit the imputer on x, NaN marking missing values.
func (imputer *IterativeImputer) Fit(ctx context.Context, x mat.Matrix, config *FitConfig) error {
	_, err := imputer.FitTransform(ctx, x, config)
	return err
}

// FitTransform fits the imputer on x and returns x with missing values imputed.
func (imputer *IterativeImputer) FitTransform(ctx context.Context, x mat.Matrix, config *FitConfig) (*mat.Dense, error) {
	config = config.LoadDefaultIfNil()
	if err := imputer.validate(); err != nil {
		return nil, errors.Trace(err)
	}
	imputer.Clear()
	// the random generator restarts from the random state on every fit
	imputer.BaseModel.SetParams(imputer.Params)
	nSamples, nFeatures := x.Dims()
	imputer.NFeatures = nFeatures
	missing := missingMask(x)

	// initial imputation
	imputer.initial = NewSimpleImputer(imputer.Params.Copy())
	xt, err := imputer.initial.FitTransform(ctx, x, config)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("fit iterative imputer",
		zap.Int("n_samples", nSamples),
		zap.Int("n_features", nFeatures),
		zap.Int("n_missing", countMissing(missing)),
		zap.String("params", imputer.GetParams().ToString()),
		zap.Int("jobs", config.Jobs))
	if imputer.maxIter == 0 || allMissing(missing) {
		imputer.Converged = true
		return xt, nil
	}
	// a single feature has no neighbors to be predicted from
	if nFeatures == 1 {
		imputer.Converged = true
		return xt, nil
	}

	nNearest := nFeatures - 1
	if imputer.nNearestFeatures > 0 && imputer.nNearestFeatures < nNearest {
		nNearest = imputer.nNearestFeatures
	}
	var absCorr *mat.Dense
	if imputer.nNearestFeatures > 0 && imputer.nNearestFeatures < nFeatures {
		absCorr = absCorrelation(xt)
	}
	ordered := imputer.orderedFeatures(missing)
	normalizedTol := imputer.tol * maxAbsObserved(x, missing)
	previous := mat.DenseCopyOf(xt)
	rng := imputer.GetRandomGenerator()

	for round := 1; round <= imputer.maxIter; round++ {
		if err = ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		imputer.NIter = round
		fitStart := time.Now()
		if imputer.imputationOrder == model.Random {
			ordered = imputer.orderedFeatures(missing)
		}
		for _, feature := range ordered {
			var neighbors []int
			if absCorr != nil {
				neighbors = rng.WeightedSample(mat.Col(nil, feature, absCorr), nNearest)
			} else {
				neighbors = make([]int, 0, nFeatures-1)
				for j := 0; j < nFeatures; j++ {
					if j != feature {
						neighbors = append(neighbors, j)
					}
				}
			}
			step := Imputation{Feature: feature, Neighbors: neighbors}
			if step.Estimator, err = imputer.fitOne(xt, missing, feature, neighbors); err != nil {
				return nil, errors.Annotatef(err, "failed to fit feature %d", feature)
			}
			imputer.imputeOne(xt, missing, step)
			imputer.Sequence = append(imputer.Sequence, step)
		}

		change := math.NaN()
		if !imputer.samplePosterior {
			change = infNorm(xt, previous)
		}
		if (config.Verbose > 0 && round%config.Verbose == 0) || round == imputer.maxIter {
			log.Logger().Debug(fmt.Sprintf("fit iterative imputer %v/%v", round, imputer.maxIter),
				zap.String("fit_time", time.Since(fitStart).String()),
				zap.Float64("change", change),
				zap.Float64("tolerance", normalizedTol))
		}
		if config.Callback != nil {
			config.Callback(round, change)
		}
		if !imputer.samplePosterior {
			if change < normalizedTol {
				imputer.Converged = true
				log.Logger().Info("early stopping criterion reached",
					zap.Int("n_iter", round), zap.Float64("change", change))
				break
			}
			previous.Copy(xt)
		}
	}
	if imputer.samplePosterior {
		imputer.Converged = true
	} else if !imputer.Converged {
		log.Logger().Warn("early stopping criterion not reached",
			zap.Int("max_iter", imputer.maxIter), zap.Float64("tolerance", normalizedTol))
	}
	restoreObserved(xt, x, missing)
	return xt, nil
}

// Transform imputes missing values of x by replaying the fitted imputation sequence.
// Estimators are not refitted.
func (imputer *IterativeImputer) Transform(x mat.Matrix) (*mat.Dense, error) {
	if imputer.initial == nil {
		return nil, errors.New("iterative imputer is not fitted")
	}
	_, nFeatures := x.Dims()
	if nFeatures != imputer.NFeatures {
		return nil, errors.NotValidf("%d features but imputer fitted on %d", nFeatures, imputer.NFeatures)
	}
	missing := missingMask(x)
	xt, err := imputer.initial.Transform(x)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if imputer.NIter == 0 || allMissing(missing) {
		return xt, nil
	}
	perRound := len(imputer.Sequence) / imputer.NIter
	for i, step := range imputer.Sequence {
		imputer.imputeOne(xt, missing, step)
		if perRound > 0 && (i+1)%perRound == 0 {
			log.Logger().Debug(fmt.Sprintf("transform iterative imputer %v/%v", (i+1)/perRound, imputer.NIter))
		}
	}
	restoreObserved(xt, x, missing)
	return xt, nil
}

// orderedFeatures returns the features to impute in a round.
func (imputer *IterativeImputer) orderedFeatures(missing [][]bool) []int {
	nSamples, nFeatures := len(missing), len(missing[0])
	fraction := make([]float64, nFeatures)
	for j := 0; j < nFeatures; j++ {
		count := 0
		for i := 0; i < nSamples; i++ {
			if missing[i][j] {
				count++
			}
		}
		fraction[j] = float64(count) / float64(nSamples)
	}
	candidates := make([]int, 0, nFeatures)
	for j, f := range fraction {
		// features without observed values keep their initial imputation
		if f == 1 || (imputer.skipComplete && f == 0) {
			continue
		}
		candidates = append(candidates, j)
	}
	switch imputer.imputationOrder {
	case model.Arabic:
		slices.Reverse(candidates)
	case model.Ascending:
		slices.SortStableFunc(candidates, func(a, b int) int {
			return cmp.Compare(fraction[a], fraction[b])
		})
	case model.Descending:
		slices.SortStableFunc(candidates, func(a, b int) int {
			return cmp.Compare(fraction[a], fraction[b])
		})
		slices.Reverse(candidates)
	case model.Random:
		rng := imputer.GetRandomGenerator()
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}
	return candidates
}

// fitOne fits a regressor predicting feature from neighbors on rows where feature is observed.
func (imputer *IterativeImputer) fitOne(xt *mat.Dense, missing [][]bool, feature int, neighbors []int) (*model.BayesianRidge, error) {
	rows := make([]int, 0, len(missing))
	for i := range missing {
		if !missing[i][feature] {
			rows = append(rows, i)
		}
	}
	trainX := subMatrix(xt, rows, neighbors)
	trainY := make([]float64, len(rows))
	for k, i := range rows {
		trainY[k] = xt.At(i, feature)
	}
	estimator := model.NewBayesianRidge(nil)
	if err := estimator.Fit(trainX, trainY); err != nil {
		return nil, errors.Trace(err)
	}
	return estimator, nil
}

// imputeOne predicts the missing rows of a feature in place.
func (imputer *IterativeImputer) imputeOne(xt *mat.Dense, missing [][]bool, step Imputation) {
	rows := make([]int, 0)
	for i := range missing {
		if missing[i][step.Feature] {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return
	}
	testX := subMatrix(xt, rows, step.Neighbors)
	var imputed []float64
	if imputer.samplePosterior {
		mean, std := step.Estimator.PredictWithStd(testX)
		imputed = imputer.samplePosteriorValues(mean, std)
	} else {
		imputed = step.Estimator.Predict(testX)
		for k := range imputed {
			imputed[k] = util.Clip(imputed[k], imputer.minValue, imputer.maxValue)
		}
	}
	for k, i := range rows {
		xt.Set(i, step.Feature, imputed[k])
	}
}

// samplePosteriorValues draws from the normal posterior truncated to [min, max]. Draws
// out of bounds are rejected and the value is clipped after too many rejections.
func (imputer *IterativeImputer) samplePosteriorValues(mean, std []float64) []float64 {
	rng := imputer.GetRandomGenerator()
	values := make([]float64, len(mean))
	for k := range mean {
		switch {
		case mean[k] < imputer.minValue:
			values[k] = imputer.minValue
		case mean[k] > imputer.maxValue:
			values[k] = imputer.maxValue
		case !(std[k] > 0):
			values[k] = mean[k]
		default:
			values[k] = util.Clip(mean[k], imputer.minValue, imputer.maxValue)
			for draw := 0; draw < maxPosteriorDraws; draw++ {
				v := rng.NormFloat64()*std[k] + mean[k]
				if v >= imputer.minValue && v <= imputer.maxValue {
					values[k] = v
					break
				}
			}
		}
	}
	return values
}

// absCorrelation returns |corr| between features with columns normalized to sum to one.
// A feature is never its own neighbor.
func absCorrelation(xt *mat.Dense) *mat.Dense {
	_, nFeatures := xt.Dims()
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, xt, nil)
	absCorr := mat.NewDense(nFeatures, nFeatures, nil)
	for i := 0; i < nFeatures; i++ {
		for j := 0; j < nFeatures; j++ {
			v := math.Abs(corr.At(i, j))
			if math.IsNaN(v) || v < corrTolerance {
				v = corrTolerance
			}
			if i == j {
				v = 0
			}
			absCorr.Set(i, j, v)
		}
	}
	for j := 0; j < nFeatures; j++ {
		col := mat.Col(nil, j, absCorr)
		floats.Scale(1/floats.Sum(col), col)
		absCorr.SetCol(j, col)
	}
	return absCorr
}

func missingMask(x mat.Matrix) [][]bool {
	nSamples, nFeatures := x.Dims()
	missing := make([][]bool, nSamples)
	for i := range missing {
		missing[i] = make([]bool, nFeatures)
		for j := range missing[i] {
			missing[i][j] = math.IsNaN(x.At(i, j))
		}
	}
	return missing
}

func countMissing(missing [][]bool) int {
	count := 0
	for _, row := range missing {
		for _, m := range row {
			if m {
				count++
			}
		}
	}
	return count
}

func allMissing(missing [][]bool) bool {
	for _, row := range missing {
		if slices.Contains(row, false) {
			return false
		}
	}
	return true
}

func maxAbsObserved(x mat.Matrix, missing [][]bool) float64 {
	var maxAbs float64
	for i, row := range missing {
		for j, m := range row {
			if !m {
				maxAbs = math.Max(maxAbs, math.Abs(x.At(i, j)))
			}
		}
	}
	return maxAbs
}

// infNorm returns the maximum absolute row sum of a - b.
func infNorm(a, b *mat.Dense) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	return mat.Norm(&diff, math.Inf(1))
}

func restoreObserved(xt *mat.Dense, x mat.Matrix, missing [][]bool) {
	for i, row := range missing {
		for j, m := range row {
			if !m {
				xt.Set(i, j, x.At(i, j))
			}
		}
	}
}

func subMatrix(x *mat.Dense, rows, cols []int) *mat.Dense {
	sub := mat.NewDense(len(rows), len(cols), nil)
	for r, i := range rows {
		for c, j := range cols {
			sub.Set(r, c, x.At(i, j))
		}
	}
	return sub
}

