// Copyright 2020 gorse Project Authors
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
package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoDatabase(t *testing.T) {
	var database NoDatabase
	ctx := context.Background()
	assert.ErrorIs(t, database.Init(), ErrNoDatabase)
	assert.ErrorIs(t, database.Ping(), ErrNoDatabase)
	assert.ErrorIs(t, database.Close(), ErrNoDatabase)
	assert.ErrorIs(t, database.Purge(), ErrNoDatabase)
	assert.ErrorIs(t, database.BatchInsertMovies(ctx, nil), ErrNoDatabase)
	assert.ErrorIs(t, database.BatchInsertRatings(ctx, nil), ErrNoDatabase)
	_, err := database.CountRatings(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
	movieChan, errChan := database.GetMovieStream(ctx, 10)
	for range movieChan {
	}
	assert.ErrorIs(t, <-errChan, ErrNoDatabase)
	ratingChan, errChan := database.GetRatingStream(ctx, 10)
	for range ratingChan {
	}
	assert.ErrorIs(t, <-errChan, ErrNoDatabase)
}
