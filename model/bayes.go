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

package model

import (
	"math"

	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const machineEpsilon = 2.220446049250313e-16

// BayesianRidge is a linear regression whose weights have a zero-mean gaussian prior
// with precision lambda and whose noise has precision alpha. Both precisions have
// gamma priors and are estimated by maximizing the marginal likelihood.
//
//	Tipping, Michael E. "Sparse Bayesian learning and the relevance vector machine."
//	Journal of machine learning research 1 (2001): 211-244.
type BayesianRidge struct {
	BaseModel
	// Model parameters
	Coef      []float64  // weights
	Intercept float64    // bias
	Alpha     float64    // estimated precision of the noise
	Lambda    float64    // estimated precision of the weights
	Sigma     *mat.Dense // posterior covariance of the weights
	NIter     int        // number of iterations until convergence
	// Hyper parameters
	maxIter      int
	tol          float64
	alpha1       float64
	alpha2       float64
	lambda1      float64
	lambda2      float64
	fitIntercept bool
}

// NewBayesianRidge creates a BayesianRidge model.
func NewBayesianRidge(params Params) *BayesianRidge {
	br := new(BayesianRidge)
	br.SetParams(params)
	return br
}

// SetParams sets hyper-parameters of the BayesianRidge model.
func (br *BayesianRidge) SetParams(params Params) {
	br.BaseModel.SetParams(params)
	br.maxIter = br.Params.GetInt(MaxIter, 300)
	br.tol = br.Params.GetFloat64(Tol, 1e-3)
	br.alpha1 = br.Params.GetFloat64(Alpha1, 1e-6)
	br.alpha2 = br.Params.GetFloat64(Alpha2, 1e-6)
	br.lambda1 = br.Params.GetFloat64(Lambda1, 1e-6)
	br.lambda2 = br.Params.GetFloat64(Lambda2, 1e-6)
	br.fitIntercept = br.Params.GetBool(FitIntercept, true)
}

// Clear removes fitted weights.
func (br *BayesianRidge) Clear() {
	br.Coef = nil
	br.Intercept = 0
	br.Alpha = 0
	br.Lambda = 0
	br.Sigma = nil
	br.NIter = 0
}

// Fit the model on x (n samples × p features) and targets y.
func (br *BayesianRidge) Fit(x mat.Matrix, y []float64) error {
	nSamples, nFeatures := x.Dims()
	if nSamples == 0 {
		return errors.NotValidf("empty training set")
	}
	if nSamples != len(y) {
		return errors.NotValidf("%d samples but %d targets", nSamples, len(y))
	}
	br.Clear()

	// center data
	xOffset := make([]float64, nFeatures)
	yOffset := 0.0
	xc := mat.DenseCopyOf(x)
	yc := make([]float64, nSamples)
	copy(yc, y)
	if br.fitIntercept {
		for j := 0; j < nFeatures; j++ {
			col := mat.Col(nil, j, xc)
			xOffset[j] = stat.Mean(col, nil)
			floats.AddConst(-xOffset[j], col)
			xc.SetCol(j, col)
		}
		yOffset = stat.Mean(yc, nil)
		floats.AddConst(-yOffset, yc)
	}

	// initial precisions
	br.Alpha = 1 / (stat.PopVariance(y, nil) + machineEpsilon)
	br.Lambda = 1
	if nFeatures == 0 {
		br.Coef = []float64{}
		br.Intercept = yOffset
		return nil
	}

	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return errors.New("singular value decomposition failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	eigenValues := svd.Values(nil)
	for i := range eigenValues {
		eigenValues[i] *= eigenValues[i]
	}
	yVec := mat.NewVecDense(nSamples, yc)
	xty := mat.NewVecDense(nFeatures, nil)
	xty.MulVec(xc.T(), yVec)

	var coefOld []float64
	var coef []float64
	var rmse float64
	br.NIter = br.maxIter
	for iter := 0; iter < br.maxIter; iter++ {
		coef, rmse = br.updateCoef(xc, yVec, xty, &u, &v, eigenValues, nSamples, nFeatures)
		// update alpha and lambda
		gamma := 0.0
		for _, ev := range eigenValues {
			gamma += br.Alpha * ev / (br.Lambda + br.Alpha*ev)
		}
		br.Lambda = (gamma + 2*br.lambda1) / (floats.Dot(coef, coef) + 2*br.lambda2)
		br.Alpha = (float64(nSamples) - gamma + 2*br.alpha1) / (rmse + 2*br.alpha2)
		// check for convergence
		if iter != 0 && floats.Distance(coefOld, coef, 1) < br.tol {
			br.NIter = iter + 1
			break
		}
		coefOld = coef
	}

	// weights with the final precisions
	br.Coef, _ = br.updateCoef(xc, yVec, xty, &u, &v, eigenValues, nSamples, nFeatures)
	br.Sigma = br.posteriorCovariance(&v, eigenValues, nFeatures)
	if br.fitIntercept {
		br.Intercept = yOffset - floats.Dot(xOffset, br.Coef)
	}
	return nil
}

// updateCoef solves the posterior mean of weights for the current alpha and lambda.
func (br *BayesianRidge) updateCoef(x *mat.Dense, y, xty *mat.VecDense, u, v *mat.Dense,
	eigenValues []float64, nSamples, nFeatures int) ([]float64, float64) {
	k := len(eigenValues)
	scale := make([]float64, k)
	for i, ev := range eigenValues {
		scale[i] = 1 / (ev + br.Lambda/br.Alpha)
	}
	coef := mat.NewVecDense(nFeatures, nil)
	tmp := mat.NewVecDense(k, nil)
	if nSamples > nFeatures {
		// coef = V diag(scale) Vᵀ Xᵀy
		tmp.MulVec(v.T(), xty)
		for i := 0; i < k; i++ {
			tmp.SetVec(i, tmp.AtVec(i)*scale[i])
		}
		coef.MulVec(v, tmp)
	} else {
		// coef = Xᵀ U diag(scale) Uᵀ y
		tmp.MulVec(u.T(), y)
		for i := 0; i < k; i++ {
			tmp.SetVec(i, tmp.AtVec(i)*scale[i])
		}
		uy := mat.NewVecDense(nSamples, nil)
		uy.MulVec(u, tmp)
		coef.MulVec(x.T(), uy)
	}
	residual := mat.NewVecDense(nSamples, nil)
	residual.MulVec(x, coef)
	residual.SubVec(y, residual)
	rmse := mat.Dot(residual, residual)
	return mat.Col(nil, 0, coef), rmse
}

// posteriorCovariance computes V diag(1/(eigen + lambda/alpha)) Vᵀ / alpha.
func (br *BayesianRidge) posteriorCovariance(v *mat.Dense, eigenValues []float64, nFeatures int) *mat.Dense {
	scaled := mat.DenseCopyOf(v)
	for i, ev := range eigenValues {
		col := mat.Col(nil, i, scaled)
		floats.Scale(1/(ev+br.Lambda/br.Alpha), col)
		scaled.SetCol(i, col)
	}
	sigma := mat.NewDense(nFeatures, nFeatures, nil)
	sigma.Mul(scaled, v.T())
	sigma.Scale(1/br.Alpha, sigma)
	return sigma
}

// Predict returns the posterior mean for every row of x.
func (br *BayesianRidge) Predict(x mat.Matrix) []float64 {
	nSamples, _ := x.Dims()
	pred := make([]float64, nSamples)
	for i := range pred {
		pred[i] = br.Intercept
		for j, w := range br.Coef {
			pred[i] += x.At(i, j) * w
		}
	}
	return pred
}

// PredictWithStd returns the posterior mean and standard deviation for every row of x.
func (br *BayesianRidge) PredictWithStd(x mat.Matrix) ([]float64, []float64) {
	mean := br.Predict(x)
	nSamples, _ := x.Dims()
	std := make([]float64, nSamples)
	for i := range std {
		var variance float64
		for j := range br.Coef {
			for k := range br.Coef {
				variance += x.At(i, j) * br.Sigma.At(j, k) * x.At(i, k)
			}
		}
		std[i] = math.Sqrt(variance + 1/br.Alpha)
	}
	return mean, std
}
