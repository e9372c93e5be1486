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
	"sort"
	"strings"
	"time"

	"github.com/gorse-io/usercf/storage"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

// Score is a cached predicted rating of a movie.
type Score struct {
	Id    int64   `json:"id"`
	Score float64 `json:"score"`
}

// SortScores sorts scores by score descending, then by id ascending.
func SortScores(scores []Score) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Id < scores[j].Id
	})
}

// Database caches predictions of users.
type Database interface {
	Init() error
	Ping() error
	Close() error
	// Purge deletes all cached predictions.
	Purge() error
	// SetRecommend replaces cached predictions of a user. An empty list is cached as well.
	SetRecommend(ctx context.Context, userId int64, scores []Score) error
	// GetRecommend returns the top n cached predictions of a user. A user without
	// cached predictions gets errors.NotFound.
	GetRecommend(ctx context.Context, userId int64, n int) ([]Score, error)
}

// Open a connection to a cache store. Predictions expire after expire if it is positive.
func Open(path, tablePrefix string, expire time.Duration) (Database, error) {
	if path == "" {
		return NoDatabase{}, nil
	}
	if strings.HasPrefix(path, storage.RedisPrefix) || strings.HasPrefix(path, storage.RedissPrefix) {
		opt, err := redis.ParseURL(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database := new(Redis)
		database.client = redis.NewClient(opt)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		database.expire = expire
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
