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
	"fmt"
	"strconv"
	"time"

	"github.com/gorse-io/usercf/common/util"
	"github.com/gorse-io/usercf/storage"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

const (
	recommendKey = "recommend"
	// emptyMember marks a user without any prediction. It is the only member of its set.
	emptyMember = "-"
)

// Redis keeps the predictions of a user in a sorted set.
type Redis struct {
	storage.TablePrefix
	client *redis.Client
	expire time.Duration
}

func (r *Redis) recommendKey(userId int64) string {
	return r.Key(fmt.Sprintf("%s/%d", recommendKey, userId))
}

func (r *Redis) Init() error {
	return nil
}

func (r *Redis) Ping() error {
	return errors.Trace(r.client.Ping(context.Background()).Err())
}

func (r *Redis) Close() error {
	return errors.Trace(r.client.Close())
}

func (r *Redis) Purge() error {
	ctx := context.Background()
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.Key(recommendKey+"/*"), 1000).Result()
		if err != nil {
			return errors.Trace(err)
		}
		if len(keys) > 0 {
			if err = r.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Trace(err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *Redis) SetRecommend(ctx context.Context, userId int64, scores []Score) error {
	key := r.recommendKey(userId)
	pipeline := r.client.Pipeline()
	pipeline.Del(ctx, key)
	if len(scores) > 0 {
		pipeline.ZAdd(ctx, key, lo.Map(scores, func(score Score, _ int) redis.Z {
			return redis.Z{Member: util.FormatInt(score.Id), Score: score.Score}
		})...)
	} else {
		pipeline.ZAdd(ctx, key, redis.Z{Member: emptyMember})
	}
	if r.expire > 0 {
		pipeline.Expire(ctx, key, r.expire)
	}
	_, err := pipeline.Exec(ctx)
	return errors.Trace(err)
}

func (r *Redis) GetRecommend(ctx context.Context, userId int64, n int) ([]Score, error) {
	if n <= 0 {
		return []Score{}, nil
	}
	key := r.recommendKey(userId)
	members, err := r.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(members) == 0 {
		return nil, errors.NotFoundf("predictions of user %d", userId)
	}
	if members[0].Member == emptyMember {
		return []Score{}, nil
	}
	// members tied with the last one are ordered by id
	last := members[len(members)-1].Score
	tied, err := r.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatFloat(last, 'g', -1, 64),
		Max: strconv.FormatFloat(last, 'g', -1, 64),
	}).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	scores := make([]Score, 0, len(members)+len(tied))
	for _, member := range members {
		if member.Score != last {
			score, err := parseMember(member)
			if err != nil {
				return nil, errors.Trace(err)
			}
			scores = append(scores, score)
		}
	}
	for _, member := range tied {
		score, err := parseMember(member)
		if err != nil {
			return nil, errors.Trace(err)
		}
		scores = append(scores, score)
	}
	SortScores(scores)
	if len(scores) > n {
		scores = scores[:n]
	}
	return scores, nil
}

func parseMember(member redis.Z) (Score, error) {
	s, ok := member.Member.(string)
	if !ok {
		return Score{}, errors.NotValidf("member %v", member.Member)
	}
	id, err := util.ParseInt[int64](s)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	return Score{Id: id, Score: member.Score}, nil
}
