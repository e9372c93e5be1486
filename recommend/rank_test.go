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
	"testing"

	"github.com/gorse-io/usercf/dataset"
	"github.com/stretchr/testify/assert"
)

func TestRank(t *testing.T) {
	ds := newDataset(t,
		dataset.Rating{UserId: 1, MovieId: 10, Value: 1},
		dataset.Rating{UserId: 1, MovieId: 20, Value: 1},
		dataset.Rating{UserId: 1, MovieId: 30, Value: 1},
		dataset.Rating{UserId: 1, MovieId: 40, Value: 1},
	)
	predictions := []Prediction{
		{MovieId: 10, Rating: 3.0},
		{MovieId: 20, Rating: 4.5},
		{MovieId: 30, Rating: 4.0},
		{MovieId: 40, Rating: 4.5},
	}
	assert.Equal(t, []Recommendation{
		{MovieId: 20, Title: "Movie 20", PredictedRating: 4.5},
		{MovieId: 40, Title: "Movie 40", PredictedRating: 4.5},
		{MovieId: 30, Title: "Movie 30", PredictedRating: 4.0},
	}, Rank(ds, predictions, 3))

	// tie-break does not depend on input order
	reversed := []Prediction{predictions[3], predictions[2], predictions[1], predictions[0]}
	assert.Equal(t, Rank(ds, predictions, 2), Rank(ds, reversed, 2))

	// n larger than the number of predictions
	assert.Len(t, Rank(ds, predictions, 10), 4)
}

func TestRank_NonPositive(t *testing.T) {
	predictions := []Prediction{{MovieId: 10, Rating: 3.0}}
	assert.Empty(t, Rank(nil, predictions, 0))
	assert.Empty(t, Rank(nil, predictions, -1))
	assert.NotNil(t, Rank(nil, predictions, 0))
	assert.Empty(t, Rank(nil, nil, 5))
}

func TestRank_UnknownTitle(t *testing.T) {
	recommendations := Rank(nil, []Prediction{{MovieId: 10, Rating: 3.0}}, 1)
	assert.Equal(t, []Recommendation{{MovieId: 10, PredictedRating: 3.0}}, recommendations)
}
