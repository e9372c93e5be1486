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
package data

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gorse-io/usercf/dataset"
	"github.com/juju/errors"
)

const (
	moviesFile  = "movies.csv"
	ratingsFile = "ratings.csv"
)

// CSV reads a MovieLens directory containing movies.csv and ratings.csv. It is read-only.
type CSV struct {
	dir string
}

func (c *CSV) Init() error {
	return c.Ping()
}

func (c *CSV) Ping() error {
	for _, name := range []string{moviesFile, ratingsFile} {
		if _, err := os.Stat(filepath.Join(c.dir, name)); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (c *CSV) Close() error {
	return nil
}

func (c *CSV) Purge() error {
	return errors.NotSupportedf("purge csv directory")
}

func (c *CSV) BatchInsertMovies(_ context.Context, _ []Movie) error {
	return errors.NotSupportedf("insert movies into csv directory")
}

func (c *CSV) BatchInsertRatings(_ context.Context, _ []Rating) error {
	return errors.NotSupportedf("insert ratings into csv directory")
}

func (c *CSV) CountRatings(ctx context.Context) (int, error) {
	count := 0
	err := c.read(ratingsFile, func(f *os.File) error {
		return dataset.ReadRatings(f, func(dataset.Rating) error {
			count++
			return ctx.Err()
		})
	})
	if err != nil {
		return 0, errors.Trace(err)
	}
	return count, nil
}

func (c *CSV) read(name string, fn func(f *os.File) error) error {
	f, err := os.Open(filepath.Join(c.dir, name))
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	return fn(f)
}

func (c *CSV) GetMovieStream(ctx context.Context, batchSize int) (chan []Movie, chan error) {
	movieChan := make(chan []Movie, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(movieChan)
		defer close(errChan)
		movies := make([]Movie, 0, batchSize)
		err := c.read(moviesFile, func(f *os.File) error {
			return dataset.ReadMovies(f, func(movie dataset.Movie) error {
				movies = append(movies, movie)
				if len(movies) == batchSize {
					select {
					case movieChan <- movies:
					case <-ctx.Done():
						return ctx.Err()
					}
					movies = make([]Movie, 0, batchSize)
				}
				return nil
			})
		})
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		if len(movies) > 0 {
			movieChan <- movies
		}
		errChan <- nil
	}()
	return movieChan, errChan
}

func (c *CSV) GetRatingStream(ctx context.Context, batchSize int) (chan []Rating, chan error) {
	ratingChan := make(chan []Rating, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(ratingChan)
		defer close(errChan)
		ratings := make([]Rating, 0, batchSize)
		err := c.read(ratingsFile, func(f *os.File) error {
			return dataset.ReadRatings(f, func(rating dataset.Rating) error {
				ratings = append(ratings, rating)
				if len(ratings) == batchSize {
					select {
					case ratingChan <- ratings:
					case <-ctx.Done():
						return ctx.Err()
					}
					ratings = make([]Rating, 0, batchSize)
				}
				return nil
			})
		})
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		if len(ratings) > 0 {
			ratingChan <- ratings
		}
		errChan <- nil
	}()
	return ratingChan, errChan
}
