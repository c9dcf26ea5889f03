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
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gorse-io/imputer/base"
	"github.com/juju/errors"
)

// Partition is a subset of rows of a feature table and its target. Index[i] is the row
// in the original table that row i came from.
type Partition struct {
	X     dataframe.DataFrame
	Y     series.Series
	Index []int
}

// Count returns the number of rows.
func (p Partition) Count() int {
	return len(p.Index)
}

// TrainTestSplit shuffles rows with a seeded permutation. The first ceil(testFraction*n)
// rows of the permutation form the test partition and the rest form the train partition.
func TrainTestSplit(x dataframe.DataFrame, y series.Series, testFraction float64, seed int64) (Partition, Partition, error) {
	if x.Err != nil {
		return Partition{}, Partition{}, errors.Trace(x.Err)
	}
	if testFraction <= 0 || testFraction >= 1 {
		return Partition{}, Partition{}, errors.NotValidf("test fraction %v", testFraction)
	}
	n := y.Len()
	if x.Nrow() != n {
		return Partition{}, Partition{}, errors.NotValidf("%d feature rows but %d targets", x.Nrow(), n)
	}
	numTest := int(math.Ceil(testFraction * float64(n)))
	numTrain := n - numTest
	if numTrain <= 0 {
		return Partition{}, Partition{}, errors.NotValidf("%d rows with test fraction %v leave an empty train set", n, testFraction)
	}
	rng := base.NewRandomGenerator(seed)
	perm := rng.Perm(n)
	test, err := subset(x, y, perm[:numTest])
	if err != nil {
		return Partition{}, Partition{}, errors.Trace(err)
	}
	train, err := subset(x, y, perm[numTest:])
	if err != nil {
		return Partition{}, Partition{}, errors.Trace(err)
	}
	return train, test, nil
}

func subset(x dataframe.DataFrame, y series.Series, index []int) (Partition, error) {
	p := Partition{X: x.Subset(index), Y: y.Subset(index), Index: index}
	if p.X.Err != nil {
		return p, errors.Trace(p.X.Err)
	}
	if p.Y.Err != nil {
		return p, errors.Trace(p.Y.Err)
	}
	return p, nil
}
