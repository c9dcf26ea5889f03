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

/*
Package model provides the regressors and the hyper-parameter plumbing used by imputers.

	* Params: hyper-parameters keyed by ParamName, shared by every model.
	* BaseModel: parameters, random state and random generator of a model.
	* BayesianRidge: linear regression with gamma priors fitted by evidence maximization.

Imputers built on these models live in the impute subpackage.
*/
package model
