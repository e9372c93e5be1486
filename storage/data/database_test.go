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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func env(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func readMovies(t *testing.T, db Database, batchSize int) []Movie {
	movieChan, errChan := db.GetMovieStream(context.Background(), batchSize)
	var movies []Movie
	for batch := range movieChan {
		assert.LessOrEqual(t, len(batch), batchSize)
		movies = append(movies, batch...)
	}
	assert.NoError(t, <-errChan)
	return movies
}

func readRatings(t *testing.T, db Database, batchSize int) []Rating {
	ratingChan, errChan := db.GetRatingStream(context.Background(), batchSize)
	var ratings []Rating
	for batch := range ratingChan {
		assert.LessOrEqual(t, len(batch), batchSize)
		ratings = append(ratings, batch...)
	}
	assert.NoError(t, <-errChan)
	return ratings
}

type baseTestSuite struct {
	suite.Suite
	db Database
}

func (s *baseTestSuite) SetupTest() {
	s.NoError(s.db.Init())
	s.NoError(s.db.Purge())
}

func (s *baseTestSuite) TearDownSuite() {
	s.NoError(s.db.Purge())
	s.NoError(s.db.Close())
}

func (s *baseTestSuite) TestPing() {
	s.NoError(s.db.Ping())
}

func (s *baseTestSuite) TestMovies() {
	ctx := context.Background()
	err := s.db.BatchInsertMovies(ctx, []Movie{
		{MovieId: 30, Title: "Movie 30", Genres: "Drama"},
		{MovieId: 10, Title: "Movie 10", Genres: "Comedy|Romance"},
		{MovieId: 20, Title: "Movie 20", Genres: "(no genres listed)"},
	})
	s.NoError(err)
	// overwrite
	err = s.db.BatchInsertMovies(ctx, []Movie{{MovieId: 20, Title: "Movie 20 (1999)", Genres: "Action"}})
	s.NoError(err)
	s.NoError(s.db.BatchInsertMovies(ctx, nil))

	movies := readMovies(s.T(), s.db, 2)
	s.Equal([]Movie{
		{MovieId: 10, Title: "Movie 10", Genres: "Comedy|Romance"},
		{MovieId: 20, Title: "Movie 20 (1999)", Genres: "Action"},
		{MovieId: 30, Title: "Movie 30", Genres: "Drama"},
	}, movies)
}

func (s *baseTestSuite) TestRatings() {
	ctx := context.Background()
	s.NoError(s.db.BatchInsertMovies(ctx, []Movie{
		{MovieId: 1, Title: "Movie 1"},
		{MovieId: 2, Title: "Movie 2"},
		{MovieId: 3, Title: "Movie 3"},
	}))
	err := s.db.BatchInsertRatings(ctx, []Rating{
		{UserId: 2, MovieId: 3, Value: 4.5},
		{UserId: 1, MovieId: 2, Value: 3},
		{UserId: 1, MovieId: 1, Value: 5},
		{UserId: 2, MovieId: 1, Value: 1},
		{UserId: 3, MovieId: 2, Value: 2.5},
	})
	s.NoError(err)
	// overwrite
	s.NoError(s.db.BatchInsertRatings(ctx, []Rating{{UserId: 3, MovieId: 2, Value: 0.5}}))
	s.NoError(s.db.BatchInsertRatings(ctx, nil))

	count, err := s.db.CountRatings(ctx)
	s.NoError(err)
	s.Equal(5, count)

	ratings := readRatings(s.T(), s.db, 2)
	s.Equal([]Rating{
		{UserId: 1, MovieId: 1, Value: 5},
		{UserId: 1, MovieId: 2, Value: 3},
		{UserId: 2, MovieId: 1, Value: 1},
		{UserId: 2, MovieId: 3, Value: 4.5},
		{UserId: 3, MovieId: 2, Value: 0.5},
	}, ratings)

	// purge
	s.NoError(s.db.Purge())
	count, err = s.db.CountRatings(ctx)
	s.NoError(err)
	s.Zero(count)
	s.Empty(readMovies(s.T(), s.db, 2))
}

func (s *baseTestSuite) TestStreamCanceled() {
	ctx := context.Background()
	s.NoError(s.db.BatchInsertMovies(ctx, []Movie{{MovieId: 1, Title: "Movie 1"}}))
	s.NoError(s.db.BatchInsertRatings(ctx, []Rating{{UserId: 1, MovieId: 1, Value: 5}}))
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	ratingChan, errChan := s.db.GetRatingStream(canceled, 10)
	for range ratingChan {
	}
	s.Error(<-errChan)
}

type SQLiteTestSuite struct {
	baseTestSuite
}

func (s *SQLiteTestSuite) SetupSuite() {
	var err error
	path := filepath.Join(s.T().TempDir(), "usercf.db")
	s.db, err = Open("sqlite://"+path, "ml_")
	s.NoError(err)
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}

type MySQLTestSuite struct {
	baseTestSuite
}

func (s *MySQLTestSuite) SetupSuite() {
	uri := env("MYSQL_URI", "")
	if uri == "" {
		s.T().Skip("MYSQL_URI is not set")
	}
	var err error
	s.db, err = Open(uri, "ml_")
	s.Require().NoError(err)
}

func TestMySQL(t *testing.T) {
	suite.Run(t, new(MySQLTestSuite))
}

type PostgresTestSuite struct {
	baseTestSuite
}

func (s *PostgresTestSuite) SetupSuite() {
	uri := env("POSTGRES_URI", "")
	if uri == "" {
		s.T().Skip("POSTGRES_URI is not set")
	}
	var err error
	s.db, err = Open(uri, "ml_")
	s.Require().NoError(err)
}

func TestPostgres(t *testing.T) {
	suite.Run(t, new(PostgresTestSuite))
}

type MongoTestSuite struct {
	baseTestSuite
}

func (s *MongoTestSuite) SetupSuite() {
	uri := env("MONGO_URI", "")
	if uri == "" {
		s.T().Skip("MONGO_URI is not set")
	}
	var err error
	s.db, err = Open(uri, "ml_")
	s.Require().NoError(err)
}

func TestMongo(t *testing.T) {
	suite.Run(t, new(MongoTestSuite))
}

type Neo4jTestSuite struct {
	baseTestSuite
}

func (s *Neo4jTestSuite) SetupSuite() {
	uri := env("NEO4J_URI", "")
	if uri == "" {
		s.T().Skip("NEO4J_URI is not set")
	}
	var err error
	s.db, err = Open(uri, "ml_")
	s.Require().NoError(err)
}

func TestNeo4j(t *testing.T) {
	suite.Run(t, new(Neo4jTestSuite))
}

func TestNeo4j_RatingOfUnknownMovie(t *testing.T) {
	uri := env("NEO4J_URI", "")
	if uri == "" {
		t.Skip("NEO4J_URI is not set")
	}
	db, err := Open(uri, "unknown_")
	assert.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.Init())
	assert.NoError(t, db.Purge())
	ctx := context.Background()
	assert.NoError(t, db.BatchInsertRatings(ctx, []Rating{{UserId: 1, MovieId: 1, Value: 5}}))
	count, err := db.CountRatings(ctx)
	assert.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpen(t *testing.T) {
	_, err := Open("unknown://", "")
	assert.Error(t, err)

	db, err := Open("csv:///data/ml-latest-small", "")
	assert.NoError(t, err)
	assert.IsType(t, &CSV{}, db)
	assert.Equal(t, "/data/ml-latest-small", db.(*CSV).dir)
}
