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
	"sort"
	"time"

	"github.com/gorse-io/usercf/base/log"
	"github.com/gorse-io/usercf/common/parallel"
	"github.com/gorse-io/usercf/common/util"
	"github.com/gorse-io/usercf/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"modernc.org/mathutil"
)

// pairSums are the sums of a user pair over co-rated movies. sx2 belongs to the
// owner of the neighbor list and sy2 to the neighbor.
type pairSums struct {
	sxy float64
	sx2 float64
	sy2 float64
	n   int32
}

func (s *pairSums) add(x, y float64) {
	s.sxy += x * y
	s.sx2 += x * x
	s.sy2 += y * y
	s.n++
}

func (s *pairSums) merge(other *pairSums) {
	s.sxy += other.sxy
	s.sx2 += other.sx2
	s.sy2 += other.sy2
	s.n += other.n
}

func (s pairSums) swap() pairSums {
	return pairSums{sxy: s.sxy, sx2: s.sy2, sy2: s.sx2, n: s.n}
}

// cosine returns sxy / sqrt(sx2 * sy2). It is undefined if either sum of squares
// is zero.
func cosine(sxy, sx2, sy2 float64) (float64, bool) {
	if sx2 <= 0 || sy2 <= 0 {
		return 0, false
	}
	sim := sxy / math.Sqrt(sx2*sy2)
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, false
	}
	// rounding may push identical vectors slightly above one
	return math.Max(-1, math.Min(1, sim)), true
}

type neighbor struct {
	index int32
	sim   float64
	sums  pairSums
}

type Neighbor struct {
	UserId     dataset.UserId `json:"user_id"`
	Similarity float64        `json:"similarity"`
}

// SimilarityTable stores cosine similarities between users who co-rated at least
// one movie. Pairs with an undefined similarity have no entry. It is read-only and
// safe for concurrent readers.
type SimilarityTable struct {
	dataset   *dataset.Dataset
	neighbors [][]neighbor
	numPairs  int
}

func packPair(i, j int32) uint64 {
	if i > j {
		i, j = j, i
	}
	return (uint64(uint32(i)) << 32) | uint64(uint32(j))
}

func unpackPair(k uint64) (int32, int32) {
	return int32(k >> 32), int32(k & 0xffffffff)
}

// ComputeSimilarity computes similarities of all user pairs. Movies are split into
// nJobs contiguous shards, every shard accumulates pair sums into its own map and
// the maps are merged in shard order.
func ComputeSimilarity(ctx context.Context, ds *dataset.Dataset, nJobs int) (*SimilarityTable, error) {
	if ds == nil {
		return nil, errors.NotAssignedf("dataset")
	}
	start := time.Now()
	shards := parallel.Split(util.RangeInt(ds.CountMovies()), mathutil.Max(nJobs, 1))
	partials := make([]map[uint64]*pairSums, len(shards))
	err := parallel.Parallel(ctx, len(shards), nJobs, func(_, shardId int) error {
		acc := make(map[uint64]*pairSums)
		for _, movieIndex := range shards[shardId] {
			column := ds.MovieRatings(movieIndex)
			for i := 0; i < len(column); i++ {
				for j := i + 1; j < len(column); j++ {
					// columns are sorted by user index
					key := packPair(column[i].Index, column[j].Index)
					sums, exist := acc[key]
					if !exist {
						sums = &pairSums{}
						acc[key] = sums
					}
					sums.add(column[i].Value, column[j].Value)
				}
			}
		}
		partials[shardId] = acc
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	// merge partial sums
	var merged map[uint64]*pairSums
	for _, partial := range partials {
		if merged == nil {
			merged = partial
			continue
		}
		for key, sums := range partial {
			if target, exist := merged[key]; exist {
				target.merge(sums)
			} else {
				merged[key] = sums
			}
		}
	}

	table := &SimilarityTable{
		dataset:   ds,
		neighbors: make([][]neighbor, ds.CountUsers()),
	}
	excluded := 0
	for key, sums := range merged {
		sim, ok := cosine(sums.sxy, sums.sx2, sums.sy2)
		if !ok {
			excluded++
			continue
		}
		i, j := unpackPair(key)
		table.neighbors[i] = append(table.neighbors[i], neighbor{index: j, sim: sim, sums: *sums})
		table.neighbors[j] = append(table.neighbors[j], neighbor{index: i, sim: sim, sums: sums.swap()})
		table.numPairs++
	}
	for _, neighbors := range table.neighbors {
		sort.Slice(neighbors, func(a, b int) bool {
			return neighbors[a].index < neighbors[b].index
		})
	}
	log.Logger().Debug("complete computing user similarity",
		zap.Int("n_users", ds.CountUsers()),
		zap.Int("n_pairs", table.numPairs),
		zap.Int("n_excluded", excluded),
		zap.Int("n_jobs", nJobs),
		zap.Duration("used_time", time.Since(start)))
	return table, nil
}

// Dataset returns the dataset the table was computed from.
func (t *SimilarityTable) Dataset() *dataset.Dataset {
	return t.dataset
}

// Len returns the number of unordered user pairs with a defined similarity.
func (t *SimilarityTable) Len() int {
	return t.numPairs
}

func (t *SimilarityTable) find(i, j int) (neighbor, bool) {
	neighbors := t.neighbors[i]
	k := sort.Search(len(neighbors), func(k int) bool {
		return neighbors[k].index >= int32(j)
	})
	if k < len(neighbors) && neighbors[k].index == int32(j) {
		return neighbors[k], true
	}
	return neighbor{}, false
}

// Similarity returns the similarity between two distinct users. It returns false
// if the users are the same, either user is unknown or the similarity is undefined.
func (t *SimilarityTable) Similarity(u1, u2 dataset.UserId) (float64, bool) {
	if u1 == u2 {
		return 0, false
	}
	i, ok := t.dataset.UserIndex(u1)
	if !ok {
		return 0, false
	}
	j, ok := t.dataset.UserIndex(u2)
	if !ok {
		return 0, false
	}
	nb, ok := t.find(i, j)
	return nb.sim, ok
}

// Neighbors returns users with a defined similarity to a user, ordered by user id.
func (t *SimilarityTable) Neighbors(userId dataset.UserId) []Neighbor {
	userIndex, ok := t.dataset.UserIndex(userId)
	if !ok {
		return []Neighbor{}
	}
	neighbors := make([]Neighbor, len(t.neighbors[userIndex]))
	for i, nb := range t.neighbors[userIndex] {
		neighbors[i] = Neighbor{UserId: t.dataset.UserId(int(nb.index)), Similarity: nb.sim}
	}
	return neighbors
}

// ForEach iterates over unordered pairs (u1 < u2) in ascending order.
func (t *SimilarityTable) ForEach(fn func(u1, u2 dataset.UserId, sim float64)) {
	for i, neighbors := range t.neighbors {
		u1 := t.dataset.UserId(i)
		for _, nb := range neighbors {
			if int(nb.index) > i {
				fn(u1, t.dataset.UserId(int(nb.index)), nb.sim)
			}
		}
	}
}
