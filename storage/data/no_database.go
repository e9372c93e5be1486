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

	"github.com/juju/errors"
)

var ErrNoDatabase = errors.NotAssignedf("data store")

// NoDatabase is used when no data store is configured.
type NoDatabase struct{}

func (NoDatabase) Init() error {
	return ErrNoDatabase
}

func (NoDatabase) Ping() error {
	return ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Purge() error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertMovies(_ context.Context, _ []Movie) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertRatings(_ context.Context, _ []Rating) error {
	return ErrNoDatabase
}

func (NoDatabase) CountRatings(_ context.Context) (int, error) {
	return 0, ErrNoDatabase
}

func (NoDatabase) GetMovieStream(_ context.Context, _ int) (chan []Movie, chan error) {
	movieChan := make(chan []Movie, bufSize)
	errChan := make(chan error, 1)
	close(movieChan)
	errChan <- ErrNoDatabase
	close(errChan)
	return movieChan, errChan
}

func (NoDatabase) GetRatingStream(_ context.Context, _ int) (chan []Rating, chan error) {
	ratingChan := make(chan []Rating, bufSize)
	errChan := make(chan error, 1)
	close(ratingChan)
	errChan <- ErrNoDatabase
	close(errChan)
	return ratingChan, errChan
}
