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
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gorse-io/usercf/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-9

type ratingMap map[dataset.UserId]map[dataset.MovieId]float64

func newDataset(t *testing.T, ratings ...dataset.Rating) *dataset.Dataset {
	b := dataset.NewBuilder()
	movies := make(map[dataset.MovieId]struct{})
	for _, rating := range ratings {
		if _, exist := movies[rating.MovieId]; !exist {
			movies[rating.MovieId] = struct{}{}
			require.NoError(t, b.AddMovie(dataset.Movie{MovieId: rating.MovieId, Title: fmt.Sprintf("Movie %d", rating.MovieId)}))
		}
		require.NoError(t, b.AddRating(rating))
	}
	return b.Build()
}

// newRandomRatings generates half-point ratings in [0.5, 5].
func newRandomRatings(seed uint64, numUsers, numMovies int, density float64) []dataset.Rating {
	rng := rand.New(rand.NewPCG(seed, seed))
	var ratings []dataset.Rating
	for u := 1; u <= numUsers; u++ {
		for m := 1; m <= numMovies; m++ {
			if rng.Float64() < density {
				ratings = append(ratings, dataset.Rating{
					UserId:  dataset.UserId(u),
					MovieId: dataset.MovieId(m * 10),
					Value:   float64(1+rng.IntN(10)) * 0.5,
				})
			}
		}
	}
	return ratings
}

func toRatingMap(ratings []dataset.Rating) ratingMap {
	m := make(ratingMap)
	for _, r := range ratings {
		if m[r.UserId] == nil {
			m[r.UserId] = make(map[dataset.MovieId]float64)
		}
		m[r.UserId][r.MovieId] = r.Value
	}
	return m
}

func (m ratingMap) mean(u dataset.UserId, skip dataset.MovieId) (float64, bool) {
	sum, n := 0.0, 0
	for movieId, value := range m[u] {
		if movieId != skip {
			sum += value
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// similarity is cosine over co-rated movies except skip.
func (m ratingMap) similarity(u, v dataset.UserId, skip dataset.MovieId) (float64, bool) {
	var sxy, sx2, sy2 float64
	for movieId, x := range m[u] {
		if y, ok := m[v][movieId]; ok && movieId != skip {
			sxy += x * y
			sx2 += x * x
			sy2 += y * y
		}
	}
	if sx2 == 0 || sy2 == 0 {
		return 0, false
	}
	return sxy / math.Sqrt(sx2*sy2), true
}

// predict predicts rating of u on m. If heldOut is true, rating (u, m) is excluded
// from the mean of u and from similarities.
func (m ratingMap) predict(u dataset.UserId, movieId dataset.MovieId, heldOut bool) (float64, bool) {
	skip := dataset.MovieId(math.MinInt64)
	if heldOut {
		skip = movieId
	}
	mean, ok := m.mean(u, skip)
	if !ok {
		return 0, false
	}
	var num, den float64
	found := false
	for v, ratings := range m {
		if v == u {
			continue
		}
		y, ok := ratings[movieId]
		if !ok {
			continue
		}
		sim, ok := m.similarity(u, v, skip)
		if !ok {
			continue
		}
		vMean, _ := m.mean(v, dataset.MovieId(math.MinInt64))
		num += sim * (y - vMean)
		den += sim
		found = true
	}
	if !found || den == 0 {
		return 0, false
	}
	return mean + num/den, true
}

func (m ratingMap) rmse(heldOut bool) (float64, int) {
	var sum float64
	var count int
	for u, ratings := range m {
		if heldOut && len(ratings) < 2 {
			continue
		}
		for movieId, actual := range ratings {
			if predicted, ok := m.predict(u, movieId, heldOut); ok {
				sum += (predicted - actual) * (predicted - actual)
				count++
			}
		}
	}
	if count == 0 {
		return math.NaN(), 0
	}
	return math.Sqrt(sum / float64(count)), count
}

func assertScore(t *testing.T, expected float64, expectedCount int, actual Score) {
	assert.Equal(t, expectedCount, actual.Count)
	if expectedCount == 0 {
		assert.True(t, math.IsNaN(actual.RMSE))
		assert.False(t, actual.Defined())
	} else {
		assert.True(t, actual.Defined())
		assert.InDelta(t, expected, actual.RMSE, delta)
	}
}
