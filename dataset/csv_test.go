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
package dataset

import (
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestReadMovies(t *testing.T) {
	text := "movieId,title,genres\n" +
		"1,Toy Story (1995),Adventure|Animation|Children|Comedy|Fantasy\n" +
		"11,\"American President, The (1995)\",Comedy|Drama|Romance\n"
	var movies []Movie
	err := ReadMovies(strings.NewReader(text), func(movie Movie) error {
		movies = append(movies, movie)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []Movie{
		{MovieId: 1, Title: "Toy Story (1995)", Genres: "Adventure|Animation|Children|Comedy|Fantasy"},
		{MovieId: 11, Title: "American President, The (1995)", Genres: "Comedy|Drama|Romance"},
	}, movies)
}

func TestReadRatings(t *testing.T) {
	text := "userId,movieId,rating,timestamp\n" +
		"1,1,4.0,964982703\n" +
		"1,3,4.5,964981247\n" +
		"2,1,3\n"
	var ratings []Rating
	err := ReadRatings(strings.NewReader(text), func(rating Rating) error {
		ratings = append(ratings, rating)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []Rating{
		{UserId: 1, MovieId: 1, Value: 4},
		{UserId: 1, MovieId: 3, Value: 4.5},
		{UserId: 2, MovieId: 1, Value: 3},
	}, ratings)
}

func TestReadRatings_NoHeader(t *testing.T) {
	count := 0
	err := ReadRatings(strings.NewReader("1,1,4.0\n2,1,3.0\n"), func(rating Rating) error {
		count++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReadRatings_Malformed(t *testing.T) {
	err := ReadRatings(strings.NewReader("userId,movieId,rating\n1,1,4.0\n1,x,4.0\n"), func(Rating) error {
		return nil
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	err = ReadRatings(strings.NewReader("1,1\n"), func(Rating) error {
		return nil
	})
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "line 1")

	err = ReadMovies(strings.NewReader("1\n"), func(Movie) error {
		return nil
	})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestReadMovies_HandlerError(t *testing.T) {
	err := ReadMovies(strings.NewReader("1,A,B\n2,C,D\n"), func(movie Movie) error {
		if movie.MovieId == 2 {
			return errors.AlreadyExistsf("movie %d", movie.MovieId)
		}
		return nil
	})
	assert.True(t, errors.Is(err, errors.AlreadyExists))
	assert.Contains(t, err.Error(), "line 2")
}
