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
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// ColumnRoles tells which feature columns are imputed numerically and which by mode.
// Columns in neither group pass through unchanged.
type ColumnRoles struct {
	Numerical   []string
	Categorical []string
}

// Passthrough returns the columns of df in neither group.
func (roles ColumnRoles) Passthrough(df dataframe.DataFrame) []string {
	return lo.Without(df.Names(), slices.Concat(roles.Numerical, roles.Categorical)...)
}

// DetectRoles classifies columns by type: float and int columns are numerical, string
// columns are categorical and bool columns pass through.
func DetectRoles(df dataframe.DataFrame) ColumnRoles {
	var roles ColumnRoles
	for i, t := range df.Types() {
		name := df.Names()[i]
		switch t {
		case series.Float, series.Int:
			roles.Numerical = append(roles.Numerical, name)
		case series.String:
			roles.Categorical = append(roles.Categorical, name)
		}
	}
	return roles
}

// ResolveRoles combines explicit column groups with detected ones. A nil group is
// detected from column types, excluding columns named in the other group.
func ResolveRoles(df dataframe.DataFrame, numerical, categorical []string) (ColumnRoles, error) {
	if df.Err != nil {
		return ColumnRoles{}, errors.Trace(df.Err)
	}
	names := mapset.NewSet(df.Names()...)
	for _, name := range slices.Concat(numerical, categorical) {
		if !names.Contains(name) {
			return ColumnRoles{}, errors.NotValidf("unknown column %q", name)
		}
	}
	if both := mapset.NewSet(numerical...).Intersect(mapset.NewSet(categorical...)); both.Cardinality() > 0 {
		return ColumnRoles{}, errors.NotValidf("columns %v both numerical and categorical", both.ToSlice())
	}
	for _, name := range numerical {
		if df.Col(name).Type() == series.String {
			return ColumnRoles{}, errors.NotValidf("string column %q as numerical", name)
		}
	}
	detected := DetectRoles(df)
	roles := ColumnRoles{Numerical: numerical, Categorical: categorical}
	if roles.Numerical == nil {
		roles.Numerical = lo.Without(detected.Numerical, categorical...)
	}
	if roles.Categorical == nil {
		roles.Categorical = lo.Without(detected.Categorical, numerical...)
	}
	return roles, nil
}
