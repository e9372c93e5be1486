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

	"github.com/gorse-io/usercf/dataset"
	"github.com/juju/errors"
)

// Recommender binds a dataset to the similarity table computed from it.
type Recommender struct {
	dataset *dataset.Dataset
	table   *SimilarityTable
	nJobs   int
}

// Fit computes user similarities of a dataset.
func Fit(ctx context.Context, ds *dataset.Dataset, nJobs int) (*Recommender, error) {
	if ds == nil {
		return nil, errors.NotAssignedf("dataset")
	}
	table, err := ComputeSimilarity(ctx, ds, nJobs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Recommender{dataset: ds, table: table, nJobs: nJobs}, nil
}

func (r *Recommender) Dataset() *dataset.Dataset {
	return r.dataset
}

func (r *Recommender) Similarity() *SimilarityTable {
	return r.table
}

// HasUser checks whether a user has any rating.
func (r *Recommender) HasUser(userId dataset.UserId) bool {
	_, ok := r.dataset.UserIndex(userId)
	return ok
}

func (r *Recommender) Predict(userId dataset.UserId) ([]Prediction, error) {
	return Predict(r.dataset, r.table, userId)
}

// Recommend returns top n movies not rated by a user. It returns an empty list for
// an unknown user.
func (r *Recommender) Recommend(userId dataset.UserId, n int) ([]Recommendation, error) {
	if n <= 0 {
		return []Recommendation{}, nil
	}
	predictions, err := r.Predict(userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Rank(r.dataset, predictions, n), nil
}

func (r *Recommender) Evaluate(ctx context.Context) (Score, error) {
	return Evaluate(ctx, r.dataset, r.table, r.nJobs)
}

func (r *Recommender) EvaluateHeldOut(ctx context.Context) (Score, error) {
	return EvaluateHeldOut(ctx, r.dataset, r.table, r.nJobs)
}
