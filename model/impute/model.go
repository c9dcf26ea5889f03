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

// Package impute contains imputers filling missing values (NaN) of numerical matrices.
package impute

import (
	"context"

	"github.com/gorse-io/imputer/model"
	"gonum.org/v1/gonum/mat"
)

type FitConfig struct {
	Jobs     int
	Verbose  int
	Callback func(round int, change float64)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 1,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

// SetCallback sets the function called after every imputation round.
func (config *FitConfig) SetCallback(callback func(round int, change float64)) *FitConfig {
	config.Callback = callback
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// Imputer is the interface of imputers in this package.
type Imputer interface {
	model.Model
	// Fit the imputer on a matrix with missing values.
	Fit(ctx context.Context, x mat.Matrix, config *FitConfig) error
	// Transform returns a copy of x without missing values.
	Transform(x mat.Matrix) (*mat.Dense, error)
	// FitTransform fits the imputer on x and then transforms x.
	FitTransform(ctx context.Context, x mat.Matrix, config *FitConfig) (*mat.Dense, error)
}

var (
	_ Imputer = &SimpleImputer{}
	_ Imputer = &IterativeImputer{}
)
