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
	"fmt"
	"strings"

	"github.com/gorse-io/usercf/dataset"
	"github.com/gorse-io/usercf/storage"
	"github.com/juju/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/samber/lo"
)

// Neo4j stores movies and users as nodes. A rating is a RATED relationship
// from a user to a movie.
type Neo4j struct {
	storage.TablePrefix
	driver neo4j.DriverWithContext
	dbName string
}

func (n *Neo4j) movieLabel() string {
	return n.Label("Movie")
}

func (n *Neo4j) userLabel() string {
	return n.Label("User")
}

func (n *Neo4j) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: n.dbName})
}

func (n *Neo4j) write(ctx context.Context, cypher string, params map[string]any) error {
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return errors.Trace(err)
}

func (n *Neo4j) Init() error {
	ctx := context.Background()
	for _, constraint := range []lo.Tuple2[string, string]{
		{A: n.movieLabel(), B: "movieId"},
		{A: n.userLabel(), B: "userId"},
	} {
		name := strings.ToLower(constraint.A) + "_" + strings.ToLower(constraint.B)
		cypher := fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			name, constraint.A, constraint.B)
		if err := n.write(ctx, cypher, nil); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (n *Neo4j) Ping() error {
	return errors.Trace(n.driver.VerifyConnectivity(context.Background()))
}

func (n *Neo4j) Close() error {
	return errors.Trace(n.driver.Close(context.Background()))
}

func (n *Neo4j) Purge() error {
	ctx := context.Background()
	for _, label := range []string{n.userLabel(), n.movieLabel()} {
		if err := n.write(ctx, fmt.Sprintf("MATCH (n:%s) DETACH DELETE n", label), nil); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (n *Neo4j) BatchInsertMovies(ctx context.Context, movies []Movie) error {
	if len(movies) == 0 {
		return nil
	}
	rows := lo.Map(movies, func(movie Movie, _ int) any {
		return map[string]any{
			"movieId": int64(movie.MovieId),
			"title":   movie.Title,
			"genres":  movie.Genres,
		}
	})
	cypher := fmt.Sprintf(`UNWIND $movies AS movie
MERGE (m:%s {movieId: movie.movieId})
SET m.title = movie.title, m.genres = movie.genres`, n.movieLabel())
	return n.write(ctx, cypher, map[string]any{"movies": rows})
}

// BatchInsertRatings links users to movies. Ratings of movies that do not exist are ignored.
func (n *Neo4j) BatchInsertRatings(ctx context.Context, ratings []Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	rows := lo.Map(ratings, func(rating Rating, _ int) any {
		return map[string]any{
			"userId":  int64(rating.UserId),
			"movieId": int64(rating.MovieId),
			"rating":  rating.Value,
		}
	})
	cypher := fmt.Sprintf(`UNWIND $ratings AS rating
MATCH (m:%s {movieId: rating.movieId})
MERGE (u:%s {userId: rating.userId})
MERGE (u)-[r:RATED]->(m)
SET r.rating = rating.rating`, n.movieLabel(), n.userLabel())
	return n.write(ctx, cypher, map[string]any{"ratings": rows})
}

func (n *Neo4j) CountRatings(ctx context.Context) (int, error) {
	session := n.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)
	count, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, fmt.Sprintf("MATCH (:%s)-[r:RATED]->(:%s) RETURN count(r) AS count",
			n.userLabel(), n.movieLabel()), nil)
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		count, _ := record.Get("count")
		return count, nil
	})
	if err != nil {
		return 0, errors.Trace(err)
	}
	value, ok := count.(int64)
	if !ok {
		return 0, errors.Errorf("unexpected count %v", count)
	}
	return int(value), nil
}

func recordInt64(record *neo4j.Record, key string) (int64, error) {
	value, ok := record.Get(key)
	if !ok {
		return 0, errors.NotFoundf("field %s", key)
	}
	i, ok := value.(int64)
	if !ok {
		return 0, errors.NotValidf("field %s = %v", key, value)
	}
	return i, nil
}

func recordString(record *neo4j.Record, key string) string {
	value, _ := record.Get(key)
	s, _ := value.(string)
	return s
}

func recordFloat64(record *neo4j.Record, key string) (float64, error) {
	value, ok := record.Get(key)
	if !ok {
		return 0, errors.NotFoundf("field %s", key)
	}
	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	}
	return 0, errors.NotValidf("field %s = %v", key, value)
}

func (n *Neo4j) GetMovieStream(ctx context.Context, batchSize int) (chan []Movie, chan error) {
	movieChan := make(chan []Movie, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(movieChan)
		defer close(errChan)
		session := n.session(ctx, neo4j.AccessModeRead)
		defer session.Close(ctx)
		// send query
		result, err := session.Run(ctx, fmt.Sprintf(
			"MATCH (m:%s) RETURN m.movieId AS movieId, m.title AS title, m.genres AS genres ORDER BY movieId",
			n.movieLabel()), nil)
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		// fetch result
		movies := make([]Movie, 0, batchSize)
		for result.Next(ctx) {
			record := result.Record()
			movieId, err := recordInt64(record, "movieId")
			if err != nil {
				errChan <- errors.Trace(err)
				return
			}
			movies = append(movies, Movie{
				MovieId: dataset.MovieId(movieId),
				Title:   recordString(record, "title"),
				Genres:  recordString(record, "genres"),
			})
			if len(movies) == batchSize {
				movieChan <- movies
				movies = make([]Movie, 0, batchSize)
			}
		}
		if err = result.Err(); err != nil {
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

func (n *Neo4j) GetRatingStream(ctx context.Context, batchSize int) (chan []Rating, chan error) {
	ratingChan := make(chan []Rating, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(ratingChan)
		defer close(errChan)
		session := n.session(ctx, neo4j.AccessModeRead)
		defer session.Close(ctx)
		// send query
		result, err := session.Run(ctx, fmt.Sprintf(
			"MATCH (u:%s)-[r:RATED]->(m:%s) RETURN u.userId AS userId, m.movieId AS movieId, r.rating AS rating ORDER BY userId, movieId",
			n.userLabel(), n.movieLabel()), nil)
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		// fetch result
		ratings := make([]Rating, 0, batchSize)
		for result.Next(ctx) {
			record := result.Record()
			userId, err := recordInt64(record, "userId")
			if err != nil {
				errChan <- errors.Trace(err)
				return
			}
			movieId, err := recordInt64(record, "movieId")
			if err != nil {
				errChan <- errors.Trace(err)
				return
			}
			value, err := recordFloat64(record, "rating")
			if err != nil {
				errChan <- errors.Trace(err)
				return
			}
			ratings = append(ratings, Rating{
				UserId:  dataset.UserId(userId),
				MovieId: dataset.MovieId(movieId),
				Value:   value,
			})
			if len(ratings) == batchSize {
				ratingChan <- ratings
				ratings = make([]Rating, 0, batchSize)
			}
		}
		if err = result.Err(); err != nil {
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
