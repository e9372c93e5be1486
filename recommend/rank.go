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
	"github.com/gorse-io/usercf/common/heap"
	"github.com/gorse-io/usercf/dataset"
)

type Recommendation struct {
	MovieId         dataset.MovieId `json:"movie_id"`
	Title           string          `json:"title"`
	PredictedRating float64         `json:"predicted_rating"`
}

// Rank returns top n predictions by predicted rating. Equal ratings are ordered by
// ascending movie id. The result is empty if n is not positive.
func Rank(ds *dataset.Dataset, predictions []Prediction, n int) []Recommendation {
	if n <= 0 {
		return []Recommendation{}
	}
	filter := heap.NewTopKFilter[dataset.MovieId, float64](n)
	for _, prediction := range predictions {
		filter.Push(prediction.MovieId, prediction.Rating)
	}
	elems := filter.PopAll()
	recommendations := make([]Recommendation, len(elems))
	for i, elem := range elems {
		recommendations[i] = Recommendation{MovieId: elem.Value, PredictedRating: elem.Weight}
		if ds != nil {
			recommendations[i].Title, _ = ds.Title(elem.Value)
		}
	}
	return recommendations
}
