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
	"slices"

	"github.com/gorse-io/usercf/dataset"
	"github.com/juju/errors"
)

type Prediction struct {
	MovieId dataset.MovieId `json:"movie_id"`
	Rating  float64         `json:"rating"`
}

// accumulator sums similarity-weighted deviations of neighbors per movie. It is
// owned by one goroutine and reused across target users.
type accumulator struct {
	num     []float64
	den     []float64
	rated   []bool
	visited []bool
	touched []int32
	target  []dataset.Entry
}

func newAccumulator(numMovies int) *accumulator {
	return &accumulator{
		num:     make([]float64, numMovies),
		den:     make([]float64, numMovies),
		rated:   make([]bool, numMovies),
		visited: make([]bool, numMovies),
	}
}

func (a *accumulator) reset(target []dataset.Entry) {
	for _, movieIndex := range a.touched {
		a.num[movieIndex] = 0
		a.den[movieIndex] = 0
		a.visited[movieIndex] = false
	}
	a.touched = a.touched[:0]
	for _, e := range a.target {
		a.rated[e.Index] = false
	}
	for _, e := range target {
		a.rated[e.Index] = true
	}
	a.target = target
}

// accumulate adds contributions of every neighbor of the target user. If ratedOnly
// is true only movies rated by the target are accumulated, otherwise only movies
// not rated by the target.
func (a *accumulator) accumulate(ds *dataset.Dataset, neighbors []neighbor, ratedOnly bool) {
	for _, nb := range neighbors {
		mean := ds.Mean(int(nb.index))
		for _, e := range ds.UserRatings(int(nb.index)) {
			if a.rated[e.Index] != ratedOnly {
				continue
			}
			if !a.visited[e.Index] {
				a.visited[e.Index] = true
				a.touched = append(a.touched, e.Index)
			}
			a.num[e.Index] += nb.sim * (e.Value - mean)
			a.den[e.Index] += nb.sim
		}
	}
}

// predict returns the prediction for a movie. It is undefined if no neighbor
// contributed or the similarities sum to zero.
func (a *accumulator) predict(mean float64, movieIndex int32) (float64, bool) {
	if !a.visited[movieIndex] || a.den[movieIndex] == 0 {
		return 0, false
	}
	return mean + a.num[movieIndex]/a.den[movieIndex], true
}

// Predict predicts ratings of a user on every movie the user has not rated:
//
//	predicted(u, m) = mean(u) + Σ sim(u, v) * (r(v, m) - mean(v)) / Σ sim(u, v)
//
// where v ranges over users with a defined similarity to u who rated m. Movies
// without a prediction are left out. Predictions are ordered by movie id and the
// result is empty for an unknown user. The table must be computed from ds.
func Predict(ds *dataset.Dataset, table *SimilarityTable, userId dataset.UserId) ([]Prediction, error) {
	if err := checkTable(ds, table); err != nil {
		return nil, errors.Trace(err)
	}
	userIndex, ok := ds.UserIndex(userId)
	if !ok {
		return []Prediction{}, nil
	}
	acc := newAccumulator(ds.CountMovies())
	acc.reset(ds.UserRatings(userIndex))
	acc.accumulate(ds, table.neighbors[userIndex], false)
	slices.Sort(acc.touched)
	mean := ds.Mean(userIndex)
	predictions := make([]Prediction, 0, len(acc.touched))
	for _, movieIndex := range acc.touched {
		if rating, ok := acc.predict(mean, movieIndex); ok {
			predictions = append(predictions, Prediction{
				MovieId: ds.MovieId(int(movieIndex)),
				Rating:  rating,
			})
		}
	}
	return predictions, nil
}
