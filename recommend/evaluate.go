// Copyright 2025 gorse Project Authors
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
package recommend

import (
	"context"
	"math"

	"github.com/gorse-io/usercf/base/json"
	"github.com/gorse-io/usercf/common/parallel"
	"github.com/gorse-io/usercf/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"modernc.org/mathutil"
)

// Score is the root-mean-square error over Count scored ratings. It is undefined
// (RMSE is NaN) if no rating could be scored.
type Score struct {
	RMSE  float64
	Count int
}

func (s Score) Defined() bool {
	return s.Count > 0
}

func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RMSE  json.Float `json:"rmse"`
		Count int        `json:"count"`
	}{json.Float(s.RMSE), s.Count})
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var v struct {
		RMSE  json.Float `json:"rmse"`
		Count int        `json:"count"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.RMSE, s.Count = float64(v.RMSE), v.Count
	return nil
}

type squaredError struct {
	sum   float64
	count int
}

func (e *squaredError) add(predicted, actual float64) {
	e.sum += (predicted - actual) * (predicted - actual)
	e.count++
}

func mergeSquaredErrors(partials []squaredError) Score {
	var total squaredError
	for _, partial := range partials {
		total.sum += partial.sum
		total.count += partial.count
	}
	if total.count == 0 {
		return Score{RMSE: math.NaN()}
	}
	return Score{RMSE: math.Sqrt(total.sum / float64(total.count)), Count: total.count}
}

func checkTable(ds *dataset.Dataset, table *SimilarityTable) error {
	if ds == nil {
		return errors.NotAssignedf("dataset")
	}
	if table == nil {
		return errors.NotAssignedf("similarity table")
	}
	if table.dataset != ds {
		return errors.NotValidf("similarity table computed from another dataset")
	}
	return nil
}

// Evaluate computes RMSE of predictions over every observed rating. The prediction
// of rating (u, m) uses the neighbors of u who rated m. The rating itself stays in
// the mean of u and in the similarities, so this is an in-sample fit.
func Evaluate(ctx context.Context, ds *dataset.Dataset, table *SimilarityTable, nJobs int) (Score, error) {
	if err := checkTable(ds, table); err != nil {
		return Score{}, errors.Trace(err)
	}
	nWorkers := mathutil.Max(nJobs, 1)
	accs := lo.Times(nWorkers, func(int) *accumulator {
		return newAccumulator(ds.CountMovies())
	})
	partials := make([]squaredError, ds.CountUsers())
	err := parallel.Parallel(ctx, ds.CountUsers(), nWorkers, func(workerId, userIndex int) error {
		acc := accs[workerId]
		target := ds.UserRatings(userIndex)
		acc.reset(target)
		acc.accumulate(ds, table.neighbors[userIndex], true)
		mean := ds.Mean(userIndex)
		for _, e := range target {
			if predicted, ok := acc.predict(mean, e.Index); ok {
				partials[userIndex].add(predicted, e.Value)
			}
		}
		return nil
	})
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	return mergeSquaredErrors(partials), nil
}

// EvaluateHeldOut computes RMSE with every rating (u, m) held out of its own
// prediction: the mean of u excludes it and the similarity between u and each
// neighbor is recomputed without movie m. Users with a single rating are skipped.
func EvaluateHeldOut(ctx context.Context, ds *dataset.Dataset, table *SimilarityTable, nJobs int) (Score, error) {
	if err := checkTable(ds, table); err != nil {
		return Score{}, errors.Trace(err)
	}
	nWorkers := mathutil.Max(nJobs, 1)
	accs := lo.Times(nWorkers, func(int) *heldOutAccumulator {
		return newHeldOutAccumulator(ds.CountMovies())
	})
	partials := make([]squaredError, ds.CountUsers())
	err := parallel.Parallel(ctx, ds.CountUsers(), nWorkers, func(workerId, userIndex int) error {
		target := ds.UserRatings(userIndex)
		if len(target) < 2 {
			return nil
		}
		acc := accs[workerId]
		acc.reset(target)
		for _, nb := range table.neighbors[userIndex] {
			acc.accumulate(ds, nb)
		}
		sum := lo.SumBy(target, func(e dataset.Entry) float64 { return e.Value })
		for _, e := range target {
			if acc.den[e.Index] == 0 {
				continue
			}
			mean := (sum - e.Value) / float64(len(target)-1)
			partials[userIndex].add(mean+acc.num[e.Index]/acc.den[e.Index], e.Value)
		}
		return nil
	})
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	return mergeSquaredErrors(partials), nil
}

// heldOutAccumulator sums neighbor contributions for movies rated by the target
// user with the similarities recomputed without each movie.
type heldOutAccumulator struct {
	num    []float64
	den    []float64
	value  []float64
	rated  []bool
	target []dataset.Entry
}

func newHeldOutAccumulator(numMovies int) *heldOutAccumulator {
	return &heldOutAccumulator{
		num:   make([]float64, numMovies),
		den:   make([]float64, numMovies),
		value: make([]float64, numMovies),
		rated: make([]bool, numMovies),
	}
}

func (a *heldOutAccumulator) reset(target []dataset.Entry) {
	for _, e := range a.target {
		a.num[e.Index] = 0
		a.den[e.Index] = 0
		a.rated[e.Index] = false
	}
	for _, e := range target {
		a.value[e.Index] = e.Value
		a.rated[e.Index] = true
	}
	a.target = target
}

// heldOutTolerance treats sums of squares that cancel to rounding noise as zero.
const heldOutTolerance = 1e-9

func (a *heldOutAccumulator) accumulate(ds *dataset.Dataset, nb neighbor) {
	if nb.sums.n < 2 {
		// no co-rated movie is left once any one is held out
		return
	}
	mean := ds.Mean(int(nb.index))
	for _, e := range ds.UserRatings(int(nb.index)) {
		if !a.rated[e.Index] {
			continue
		}
		x, y := a.value[e.Index], e.Value
		sx2 := nb.sums.sx2 - x*x
		sy2 := nb.sums.sy2 - y*y
		if sx2 <= heldOutTolerance*nb.sums.sx2 || sy2 <= heldOutTolerance*nb.sums.sy2 {
			continue
		}
		sim, ok := cosine(nb.sums.sxy-x*y, sx2, sy2)
		if !ok {
			continue
		}
		a.num[e.Index] += sim * (y - mean)
		a.den[e.Index] += sim
	}
}
