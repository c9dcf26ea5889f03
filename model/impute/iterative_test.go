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
	"testing"

	"github.com/gorse-io/imputer/base"
	"github.com/gorse-io/imputer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// linearData returns n rows of (i, 2i+1) with the second column missing at the given rows.
func linearData(n int, missingRows ...int) *mat.Dense {
	x := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i))
		x.Set(i, 1, float64(2*i+1))
	}
	for _, i := range missingRows {
		x.Set(i, 1, nan)
	}
	return x
}

// randomData returns n rows of correlated features with about 10% missing cells.
func randomData(n, nFeatures int, seed int64) *mat.Dense {
	rng := base.NewRandomGenerator(seed)
	x := mat.NewDense(n, nFeatures, nil)
	for i := 0; i < n; i++ {
		z := rng.NormFloat64()
		for j := 0; j < nFeatures; j++ {
			x.Set(i, j, float64(j+1)*z+rng.NormFloat64()*0.1)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < nFeatures; j++ {
			if rng.Float64() < 0.1 {
				x.Set(i, j, nan)
			}
		}
	}
	return x
}

func assertNoNaN(t *testing.T, x mat.Matrix) {
	r, c := x.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.False(t, math.IsNaN(x.At(i, j)), "NaN at (%d, %d)", i, j)
		}
	}
}

func TestIterativeImputer_FitTransform(t *testing.T) {
	x := linearData(20, 0, 5, 19)
	imputer := NewIterativeImputer(nil)
	xt, err := imputer.FitTransform(context.Background(), x, nil)
	require.NoError(t, err)
	assert.True(t, imputer.Converged)
	assert.Equal(t, 2, imputer.NIter)
	assert.Len(t, imputer.Sequence, 4)
	assert.InDelta(t, 1, xt.At(0, 1), 1e-3)
	assert.InDelta(t, 11, xt.At(5, 1), 1e-3)
	assert.InDelta(t, 39, xt.At(19, 1), 1e-3)
	// observed values are kept
	for i := 0; i < 20; i++ {
		assert.Equal(t, float64(i), xt.At(i, 0))
	}
	assert.Equal(t, 3.0, xt.At(1, 1))
	// input is not modified
	assert.True(t, math.IsNaN(x.At(0, 1)))
}

func TestIterativeImputer_Transform(t *testing.T) {
	imputer := NewIterativeImputer(nil)
	require.NoError(t, imputer.Fit(context.Background(), linearData(20, 0, 5, 19), nil))
	test := mat.NewDense(3, 2, []float64{
		30, nan,
		nan, 7,
		4, 9,
	})
	xt, err := imputer.Transform(test)
	require.NoError(t, err)
	assert.InDelta(t, 61, xt.At(0, 1), 1e-2)
	assert.InDelta(t, 3, xt.At(1, 0), 1e-2)
	assert.Equal(t, []float64{4, 9}, mat.Row(nil, 2, xt))
	// transform is deterministic
	again, err := imputer.Transform(test)
	require.NoError(t, err)
	assert.Equal(t, xt, again)
	// the training set gets the same values as fitting
	train := linearData(20, 0, 5, 19)
	fitted, err := NewIterativeImputer(nil).FitTransform(context.Background(), train, nil)
	require.NoError(t, err)
	transformed, err := imputer.Transform(train)
	require.NoError(t, err)
	assert.InDeltaSlice(t, mat.Col(nil, 1, fitted), mat.Col(nil, 1, transformed), 1e-9)
}

func TestIterativeImputer_NotConverged(t *testing.T) {
	imputer := NewIterativeImputer(model.Params{model.MaxIter: 1})
	xt, err := imputer.FitTransform(context.Background(), linearData(20, 0, 19), nil)
	require.NoError(t, err)
	assert.False(t, imputer.Converged)
	assert.Equal(t, 1, imputer.NIter)
	assertNoNaN(t, xt)
}

func TestIterativeImputer_SingleFeature(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, nan, 3, 5})
	imputer := NewIterativeImputer(nil)
	xt, err := imputer.FitTransform(context.Background(), x, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, imputer.NIter)
	assert.Empty(t, imputer.Sequence)
	assert.Equal(t, []float64{1, 3, 3, 5}, mat.Col(nil, 0, xt))
	xt, err = imputer.Transform(mat.NewDense(2, 1, []float64{nan, 2}))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2}, mat.Col(nil, 0, xt))
}

func TestIterativeImputer_AllMissing(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{nan, nan, nan, nan})
	imputer := NewIterativeImputer(nil)
	xt, err := imputer.FitTransform(context.Background(), x, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, imputer.NIter)
	assert.Equal(t, []float64{0, 0, 0, 0}, xt.RawMatrix().Data)
}

func TestIterativeImputer_EmptyFeature(t *testing.T) {
	x := mat.NewDense(4, 3, []float64{
		1, 3, nan,
		2, nan, nan,
		3, 7, nan,
		4, 9, nan,
	})
	imputer := NewIterativeImputer(nil)
	xt, err := imputer.FitTransform(context.Background(), x, nil)
	require.NoError(t, err)
	assertNoNaN(t, xt)
	assert.Equal(t, []float64{0, 0, 0, 0}, mat.Col(nil, 2, xt))
	for _, step := range imputer.Sequence {
		assert.NotEqual(t, 2, step.Feature)
	}
}

func TestIterativeImputer_Clip(t *testing.T) {
	imputer := NewIterativeImputer(model.Params{model.MaxValue: 20.0})
	xt, err := imputer.FitTransform(context.Background(), linearData(20, 0, 19), nil)
	require.NoError(t, err)
	assert.InDelta(t, 1, xt.At(0, 1), 1e-3)
	assert.Equal(t, 20.0, xt.At(19, 1))
}

func TestIterativeImputer_Order(t *testing.T) {
	x := mat.NewDense(5, 3, []float64{
		1, nan, nan,
		2, 4, nan,
		3, 6, 1,
		4, 8, 2,
		5, 10, 3,
	})
	testCases := []struct {
		order    string
		expected []int
	}{
		{model.Ascending, []int{0, 1, 2}},
		{model.Descending, []int{2, 1, 0}},
		{model.Roman, []int{0, 1, 2}},
		{model.Arabic, []int{2, 1, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.order, func(t *testing.T) {
			imputer := NewIterativeImputer(model.Params{model.ImputationOrder: tc.order, model.MaxIter: 1})
			require.NoError(t, imputer.Fit(context.Background(), x, nil))
			var features []int
			for _, step := range imputer.Sequence {
				features = append(features, step.Feature)
			}
			assert.Equal(t, tc.expected, features)
		})
	}
	// skip complete features
	imputer := NewIterativeImputer(model.Params{model.SkipComplete: true, model.MaxIter: 1})
	require.NoError(t, imputer.Fit(context.Background(), x, nil))
	assert.Len(t, imputer.Sequence, 2)
	assert.Equal(t, 1, imputer.Sequence[0].Feature)
	assert.Equal(t, 2, imputer.Sequence[1].Feature)
}

func TestIterativeImputer_Random(t *testing.T) {
	x := randomData(100, 4, 0)
	params := model.Params{
		model.ImputationOrder:  model.Random,
		model.NNearestFeatures: 2,
		model.RandomState:      int64(42),
	}
	a, err := NewIterativeImputer(params).FitTransform(context.Background(), x, nil)
	require.NoError(t, err)
	b, err := NewIterativeImputer(params).FitTransform(context.Background(), x, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assertNoNaN(t, a)

	imputer := NewIterativeImputer(params)
	require.NoError(t, imputer.Fit(context.Background(), x, nil))
	for _, step := range imputer.Sequence {
		assert.Len(t, step.Neighbors, 2)
		assert.NotContains(t, step.Neighbors, step.Feature)
	}
}

func TestIterativeImputer_SamplePosterior(t *testing.T) {
	x := randomData(100, 3, 1)
	params := model.Params{
		model.SamplePosterior: true,
		model.MinValue:        -1.0,
		model.MaxValue:        1.0,
		model.MaxIter:         3,
		model.RandomState:     int64(7),
	}
	imputer := NewIterativeImputer(params)
	xt, err := imputer.FitTransform(context.Background(), x, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, imputer.NIter)
	for i := 0; i < 100; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(x.At(i, j)) {
				assert.GreaterOrEqual(t, xt.At(i, j), -1.0)
				assert.LessOrEqual(t, xt.At(i, j), 1.0)
			}
		}
	}
	again, err := NewIterativeImputer(params).FitTransform(context.Background(), x, nil)
	require.NoError(t, err)
	assert.Equal(t, xt, again)
}

func TestIterativeImputer_Callback(t *testing.T) {
	var rounds []int
	config := NewFitConfig().SetVerbose(1).SetCallback(func(round int, change float64) {
		rounds = append(rounds, round)
		assert.False(t, math.IsNaN(change))
	})
	imputer := NewIterativeImputer(nil)
	require.NoError(t, imputer.Fit(context.Background(), randomData(50, 3, 2), config))
	assert.Len(t, rounds, imputer.NIter)
	assert.Equal(t, 1, rounds[0])
}

func TestIterativeImputer_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	imputer := NewIterativeImputer(nil)
	assert.ErrorIs(t, imputer.Fit(ctx, randomData(50, 3, 3), nil), context.Canceled)
}

func TestIterativeImputer_Error(t *testing.T) {
	x := linearData(10, 1)
	for _, params := range []model.Params{
		{model.ImputationOrder: "unknown"},
		{model.MaxIter: -1},
		{model.NNearestFeatures: -1},
		{model.MinValue: 1.0, model.MaxValue: 0.0},
		{model.InitialStrategy: "unknown"},
	} {
		assert.Error(t, NewIterativeImputer(params).Fit(context.Background(), x, nil), params.ToString())
	}
	// not fitted
	imputer := NewIterativeImputer(nil)
	_, err := imputer.Transform(x)
	assert.Error(t, err)
	// feature mismatch
	require.NoError(t, imputer.Fit(context.Background(), x, nil))
	_, err = imputer.Transform(mat.NewDense(1, 3, []float64{1, 2, 3}))
	assert.Error(t, err)
}
