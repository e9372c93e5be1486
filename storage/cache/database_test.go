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
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpen(t *testing.T) {
	db, err := Open("", "", time.Hour)
	assert.NoError(t, err)
	assert.IsType(t, NoDatabase{}, db)

	_, err = Open("mysql://localhost", "", time.Hour)
	assert.Error(t, err)

	db, err = Open("rediss://localhost:6379/1", "ml_", 0)
	assert.NoError(t, err)
	assert.IsType(t, &Redis{}, db)
	assert.Equal(t, "ml_recommend/7", db.(*Redis).recommendKey(7))
	assert.NoError(t, db.Close())
}

func TestSortScores(t *testing.T) {
	scores := []Score{{Id: 10, Score: 1}, {Id: 2, Score: 1}, {Id: 5, Score: 3}}
	SortScores(scores)
	assert.Equal(t, []Score{{Id: 5, Score: 3}, {Id: 2, Score: 1}, {Id: 10, Score: 1}}, scores)
}

func TestNoDatabase(t *testing.T) {
	var database NoDatabase
	ctx := context.Background()
	assert.ErrorIs(t, database.Init(), ErrNoDatabase)
	assert.ErrorIs(t, database.Ping(), ErrNoDatabase)
	assert.ErrorIs(t, database.Close(), ErrNoDatabase)
	assert.ErrorIs(t, database.Purge(), ErrNoDatabase)
	assert.ErrorIs(t, database.SetRecommend(ctx, 1, nil), ErrNoDatabase)
	_, err := database.GetRecommend(ctx, 1, 10)
	assert.ErrorIs(t, err, ErrNoDatabase)
}
