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
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/gorse-io/usercf/base/log"
	"github.com/gorse-io/usercf/config"
	"github.com/gorse-io/usercf/dataset"
	"github.com/gorse-io/usercf/recommend"
	"github.com/gorse-io/usercf/storage/cache"
	"github.com/gorse-io/usercf/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Engine loads ratings from the data store, fits the recommender and serves
// recommendations. Cached predictions are kept in the cache store if configured.
type Engine struct {
	Config      *config.Config
	DataClient  data.Database
	CacheClient cache.Database

	mu          sync.RWMutex
	recommender *recommend.Recommender

	ready   atomic.Bool
	skipped atomic.Int64
}

// Open connects to the data store and the cache store.
func Open(cfg *config.Config) (*Engine, error) {
	dataClient, err := data.Open(cfg.Database.DataStore, cfg.Database.TablePrefix)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to connect data store %s", log.RedactDBURL(cfg.Database.DataStore))
	}
	cacheClient, err := cache.Open(cfg.Database.CacheStore, cfg.Database.TablePrefix, cfg.Recommend.CacheExpire)
	if err != nil {
		_ = dataClient.Close()
		return nil, errors.Annotatef(err, "failed to connect cache store %s", log.RedactDBURL(cfg.Database.CacheStore))
	}
	log.Logger().Info("connect to stores",
		zap.String("data_store", log.RedactDBURL(cfg.Database.DataStore)),
		zap.String("cache_store", log.RedactDBURL(cfg.Database.CacheStore)))
	return New(cfg, dataClient, cacheClient), nil
}

func New(cfg *config.Config, dataClient data.Database, cacheClient cache.Database) *Engine {
	if cacheClient == nil {
		cacheClient = cache.NoDatabase{}
	}
	return &Engine{Config: cfg, DataClient: dataClient, CacheClient: cacheClient}
}

// Ready returns true once the recommender has been fitted.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// SkippedRatings returns the number of ratings skipped by the last load.
func (e *Engine) SkippedRatings() int64 {
	return e.skipped.Load()
}

// LoadDataset reads movies and ratings from the data store. Ratings out of the
// configured range, ratings of unknown movies and duplicated ratings are skipped.
func (e *Engine) LoadDataset(ctx context.Context) (*dataset.Dataset, error) {
	startTime := time.Now()
	builder := dataset.NewBuilder()
	batchSize := e.Config.Dataset.BatchSize
	minRating, maxRating := e.Config.Dataset.MinRating, e.Config.Dataset.MaxRating
	e.skipped.Store(0)

	// load movies
	movieChan, errChan := e.DataClient.GetMovieStream(ctx, batchSize)
	for movies := range movieChan {
		for _, movie := range movies {
			if err := builder.AddMovie(movie); err != nil {
				log.Logger().Warn("skip movie", zap.Int64("movie_id", int64(movie.MovieId)), zap.Error(err))
			}
		}
	}
	if err := <-errChan; err != nil {
		return nil, errors.Trace(err)
	}

	// load ratings
	ratingChan, errChan := e.DataClient.GetRatingStream(ctx, batchSize)
	for ratings := range ratingChan {
		for _, rating := range ratings {
			var err error
			if rating.Value < minRating || rating.Value > maxRating {
				err = errors.NotValidf("rating %v out of [%v, %v]", rating.Value, minRating, maxRating)
			} else {
				err = builder.AddRating(rating)
			}
			if err != nil {
				e.skipped.Inc()
				log.Logger().Debug("skip rating",
					zap.Int64("user_id", int64(rating.UserId)),
					zap.Int64("movie_id", int64(rating.MovieId)),
					zap.Error(err))
			}
		}
	}
	if err := <-errChan; err != nil {
		return nil, errors.Trace(err)
	}

	ds := builder.Build()
	if skipped := e.skipped.Load(); skipped > 0 {
		log.Logger().Warn("some ratings are skipped", zap.Int64("n_skipped", skipped))
	}
	loadTime := time.Since(startTime)
	PhaseSecondsVec.WithLabelValues(PhaseLoadDataset).Set(loadTime.Seconds())
	UsersTotal.Set(float64(ds.CountUsers()))
	MoviesTotal.Set(float64(ds.CountMovies()))
	RatingsTotal.Set(float64(ds.CountRatings()))
	SkippedRatingsTotal.Set(float64(e.skipped.Load()))
	log.Logger().Info("load dataset complete",
		zap.Int("n_users", ds.CountUsers()),
		zap.Int("n_movies", ds.CountMovies()),
		zap.Int("n_ratings", ds.CountRatings()),
		zap.Duration("used_time", loadTime))
	return ds, nil
}

// Fit loads the dataset and computes user similarities. Cached predictions are purged
// before the new recommender is published. If the purge fails, the previous
// recommender is kept and an error is returned.
func (e *Engine) Fit(ctx context.Context) error {
	ds, err := e.LoadDataset(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	startTime := time.Now()
	recommender, err := recommend.Fit(ctx, ds, e.Config.Recommend.NumJobs)
	if err != nil {
		return errors.Trace(err)
	}
	fitTime := time.Since(startTime)
	PhaseSecondsVec.WithLabelValues(PhaseSimilarity).Set(fitTime.Seconds())
	SimilarityPairsTotal.Set(float64(recommender.Similarity().Len()))
	log.Logger().Info("compute similarity complete",
		zap.Int("n_pairs", recommender.Similarity().Len()),
		zap.Duration("used_time", fitTime))

	// readers hold the read lock through cache access
	e.mu.Lock()
	defer e.mu.Unlock()
	if err = e.CacheClient.Purge(); err != nil && !errors.Is(err, cache.ErrNoDatabase) {
		return errors.Annotate(err, "failed to purge cached predictions")
	}
	e.recommender = recommender
	e.ready.Store(true)
	return nil
}

// Recommender returns the fitted recommender.
func (e *Engine) Recommender() (*recommend.Recommender, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.recommender == nil {
		return nil, errors.NotAssignedf("recommender")
	}
	return e.recommender, nil
}

// Recommend returns top n movies for a user. Predictions are cached.
func (e *Engine) Recommend(ctx context.Context, userId dataset.UserId, n int) ([]recommend.Recommendation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	recommender := e.recommender
	if recommender == nil {
		return nil, errors.NotAssignedf("recommender")
	}
	if n <= 0 || !recommender.HasUser(userId) {
		return []recommend.Recommendation{}, nil
	}
	ds := recommender.Dataset()

	// read cache
	scores, cacheErr := e.CacheClient.GetRecommend(ctx, int64(userId), n)
	if cacheErr == nil {
		return lo.Map(scores, func(score cache.Score, _ int) recommend.Recommendation {
			movieId := dataset.MovieId(score.Id)
			title, _ := ds.Title(movieId)
			return recommend.Recommendation{MovieId: movieId, Title: title, PredictedRating: score.Score}
		}), nil
	} else if !errors.Is(cacheErr, errors.NotFound) && !errors.Is(cacheErr, cache.ErrNoDatabase) {
		log.Logger().Warn("failed to read cached predictions", zap.Int64("user_id", int64(userId)), zap.Error(cacheErr))
	}

	predictions, err := recommender.Predict(userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !errors.Is(cacheErr, cache.ErrNoDatabase) {
		if err = e.CacheClient.SetRecommend(ctx, int64(userId), lo.Map(predictions, func(p recommend.Prediction, _ int) cache.Score {
			return cache.Score{Id: int64(p.MovieId), Score: p.Rating}
		})); err != nil {
			log.Logger().Warn("failed to cache predictions", zap.Int64("user_id", int64(userId)), zap.Error(err))
		}
	}
	return recommend.Rank(ds, predictions, n), nil
}

// Similarity returns the similarity between two users.
func (e *Engine) Similarity(u1, u2 dataset.UserId) (float64, bool, error) {
	recommender, err := e.Recommender()
	if err != nil {
		return 0, false, errors.Trace(err)
	}
	sim, ok := recommender.Similarity().Similarity(u1, u2)
	return sim, ok, nil
}

// Movie returns a movie of the fitted dataset.
func (e *Engine) Movie(movieId dataset.MovieId) (dataset.Movie, error) {
	recommender, err := e.Recommender()
	if err != nil {
		return dataset.Movie{}, errors.Trace(err)
	}
	movie, ok := recommender.Dataset().Movie(movieId)
	if !ok {
		return dataset.Movie{}, errors.NotFoundf("movie %d", movieId)
	}
	return movie, nil
}

// Evaluate computes RMSE of the fitted recommender. Held-out evaluation excludes each
// rating from its own prediction.
func (e *Engine) Evaluate(ctx context.Context, heldOut bool) (recommend.Score, error) {
	recommender, err := e.Recommender()
	if err != nil {
		return recommend.Score{}, errors.Trace(err)
	}
	startTime := time.Now()
	var (
		score recommend.Score
		mode  string
	)
	if heldOut {
		score, err = recommender.EvaluateHeldOut(ctx)
		mode = ModeHeldOut
	} else {
		score, err = recommender.Evaluate(ctx)
		mode = ModeInSample
	}
	if err != nil {
		return recommend.Score{}, errors.Trace(err)
	}
	evaluateTime := time.Since(startTime)
	PhaseSecondsVec.WithLabelValues(PhaseEvaluate).Set(evaluateTime.Seconds())
	if score.Defined() {
		RMSEVec.WithLabelValues(mode).Set(score.RMSE)
	}
	log.Logger().Info("evaluate complete",
		zap.String("mode", mode),
		zap.Float64("rmse", score.RMSE),
		zap.Int("n_scored", score.Count),
		zap.Duration("used_time", evaluateTime))
	return score, nil
}

// Close closes the data store and the cache store.
func (e *Engine) Close() error {
	var errs []error
	if err := e.DataClient.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.CacheClient.Close(); err != nil && !errors.Is(err, cache.ErrNoDatabase) {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Trace(errs[0])
	}
	return nil
}
