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

	"github.com/gorse-io/usercf/dataset"
	"github.com/gorse-io/usercf/storage"
	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoMovie struct {
	MovieId int64  `bson:"movie_id"`
	Title   string `bson:"title"`
	Genres  string `bson:"genres"`
}

type mongoRating struct {
	UserId  int64   `bson:"user_id"`
	MovieId int64   `bson:"movie_id"`
	Rating  float64 `bson:"rating"`
}

// MongoDB stores movies and ratings in two collections.
type MongoDB struct {
	storage.TablePrefix
	client *mongo.Client
	dbName string
}

func (m MongoDB) Init() error {
	ctx := context.Background()
	d := m.client.Database(m.dbName)
	// list collections
	var hasMovies, hasRatings bool
	collections, err := d.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return errors.Trace(err)
	}
	for _, collectionName := range collections {
		switch collectionName {
		case m.MoviesTable():
			hasMovies = true
		case m.RatingsTable():
			hasRatings = true
		}
	}
	// create collections
	if !hasMovies {
		if err = d.CreateCollection(ctx, m.MoviesTable()); err != nil {
			return errors.Trace(err)
		}
	}
	if !hasRatings {
		if err = d.CreateCollection(ctx, m.RatingsTable()); err != nil {
			return errors.Trace(err)
		}
	}
	// create indices
	if _, err = d.Collection(m.MoviesTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "movie_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return errors.Trace(err)
	}
	if _, err = d.Collection(m.RatingsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "movie_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return errors.Trace(err)
	}
	_, err = d.Collection(m.RatingsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "movie_id", Value: 1}},
	})
	return errors.Trace(err)
}

func (m MongoDB) Ping() error {
	return errors.Trace(m.client.Ping(context.Background(), nil))
}

func (m MongoDB) Close() error {
	return errors.Trace(m.client.Disconnect(context.Background()))
}

func (m MongoDB) Purge() error {
	ctx := context.Background()
	d := m.client.Database(m.dbName)
	for _, name := range []string{m.RatingsTable(), m.MoviesTable()} {
		if _, err := d.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (m MongoDB) BatchInsertMovies(ctx context.Context, movies []Movie) error {
	if len(movies) == 0 {
		return nil
	}
	c := m.client.Database(m.dbName).Collection(m.MoviesTable())
	var models []mongo.WriteModel
	for _, movie := range movies {
		models = append(models, mongo.NewUpdateOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"movie_id": bson.M{"$eq": int64(movie.MovieId)}}).
			SetUpdate(bson.M{"$set": mongoMovie{
				MovieId: int64(movie.MovieId),
				Title:   movie.Title,
				Genres:  movie.Genres,
			}}))
	}
	_, err := c.BulkWrite(ctx, models)
	return errors.Trace(err)
}

func (m MongoDB) BatchInsertRatings(ctx context.Context, ratings []Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	c := m.client.Database(m.dbName).Collection(m.RatingsTable())
	var models []mongo.WriteModel
	for _, rating := range ratings {
		models = append(models, mongo.NewUpdateOneModel().
			SetUpsert(true).
			SetFilter(bson.M{
				"user_id":  bson.M{"$eq": int64(rating.UserId)},
				"movie_id": bson.M{"$eq": int64(rating.MovieId)},
			}).
			SetUpdate(bson.M{"$set": mongoRating{
				UserId:  int64(rating.UserId),
				MovieId: int64(rating.MovieId),
				Rating:  rating.Value,
			}}))
	}
	_, err := c.BulkWrite(ctx, models)
	return errors.Trace(err)
}

func (m MongoDB) CountRatings(ctx context.Context) (int, error) {
	n, err := m.client.Database(m.dbName).Collection(m.RatingsTable()).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Trace(err)
	}
	return int(n), nil
}

func (m MongoDB) GetMovieStream(ctx context.Context, batchSize int) (chan []Movie, chan error) {
	movieChan := make(chan []Movie, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(movieChan)
		defer close(errChan)
		// send query
		c := m.client.Database(m.dbName).Collection(m.MoviesTable())
		opt := options.Find().SetSort(bson.D{{Key: "movie_id", Value: 1}})
		r, err := c.Find(ctx, bson.M{}, opt)
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		defer r.Close(ctx)
		// fetch result
		movies := make([]Movie, 0, batchSize)
		for r.Next(ctx) {
			var doc mongoMovie
			if err = r.Decode(&doc); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			movies = append(movies, Movie{
				MovieId: dataset.MovieId(doc.MovieId),
				Title:   doc.Title,
				Genres:  doc.Genres,
			})
			if len(movies) == batchSize {
				movieChan <- movies
				movies = make([]Movie, 0, batchSize)
			}
		}
		if err = r.Err(); err != nil {
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

func (m MongoDB) GetRatingStream(ctx context.Context, batchSize int) (chan []Rating, chan error) {
	ratingChan := make(chan []Rating, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(ratingChan)
		defer close(errChan)
		// send query
		c := m.client.Database(m.dbName).Collection(m.RatingsTable())
		opt := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "movie_id", Value: 1}})
		r, err := c.Find(ctx, bson.M{}, opt)
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		defer r.Close(ctx)
		// fetch result
		ratings := make([]Rating, 0, batchSize)
		for r.Next(ctx) {
			var doc mongoRating
			if err = r.Decode(&doc); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			ratings = append(ratings, Rating{
				UserId:  dataset.UserId(doc.UserId),
				MovieId: dataset.MovieId(doc.MovieId),
				Value:   doc.Rating,
			})
			if len(ratings) == batchSize {
				ratingChan <- ratings
				ratings = make([]Rating, 0, batchSize)
			}
		}
		if err = r.Err(); err != nil {
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
