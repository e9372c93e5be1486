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
	"database/sql"

	"github.com/gorse-io/usercf/dataset"
	"github.com/gorse-io/usercf/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

func (d SQLDriver) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	}
	return "unknown"
}

type SQLMovie struct {
	MovieId int64  `gorm:"column:movie_id;primaryKey;autoIncrement:false"`
	Title   string `gorm:"column:title;type:varchar(512);not null"`
	Genres  string `gorm:"column:genres;type:varchar(512);not null"`
}

type SQLRating struct {
	UserId  int64   `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	MovieId int64   `gorm:"column:movie_id;primaryKey;autoIncrement:false;index"`
	Rating  float64 `gorm:"column:rating;not null"`
}

// SQLDatabase stores movies and ratings in MySQL, Postgres or SQLite.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

func (d *SQLDatabase) Init() error {
	db := d.gormDB
	if d.driver == MySQL {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	if err := db.AutoMigrate(SQLMovie{}, SQLRating{}); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) Ping() error {
	return errors.Trace(d.client.Ping())
}

func (d *SQLDatabase) Close() error {
	return errors.Trace(d.client.Close())
}

func (d *SQLDatabase) Purge() error {
	for _, table := range []string{d.RatingsTable(), d.MoviesTable()} {
		if err := d.gormDB.Exec("DELETE FROM " + table).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertMovies inserts movies. Existing movies are overwritten.
func (d *SQLDatabase) BatchInsertMovies(ctx context.Context, movies []Movie) error {
	if len(movies) == 0 {
		return nil
	}
	rows := lo.Map(movies, func(movie Movie, _ int) SQLMovie {
		return SQLMovie{MovieId: int64(movie.MovieId), Title: movie.Title, Genres: movie.Genres}
	})
	err := d.gormDB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
	return errors.Trace(err)
}

// BatchInsertRatings inserts ratings. Existing ratings are overwritten.
func (d *SQLDatabase) BatchInsertRatings(ctx context.Context, ratings []Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	rows := lo.Map(ratings, func(rating Rating, _ int) SQLRating {
		return SQLRating{UserId: int64(rating.UserId), MovieId: int64(rating.MovieId), Rating: rating.Value}
	})
	err := d.gormDB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
	return errors.Trace(err)
}

func (d *SQLDatabase) CountRatings(ctx context.Context) (int, error) {
	var count int64
	if err := d.gormDB.WithContext(ctx).Table(d.RatingsTable()).Count(&count).Error; err != nil {
		return 0, errors.Trace(err)
	}
	return int(count), nil
}

func (d *SQLDatabase) GetMovieStream(ctx context.Context, batchSize int) (chan []Movie, chan error) {
	movieChan := make(chan []Movie, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(movieChan)
		defer close(errChan)
		// send query
		result, err := d.gormDB.WithContext(ctx).Table(d.MoviesTable()).
			Select("movie_id, title, genres").Order("movie_id").Rows()
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		defer result.Close()
		// fetch result
		movies := make([]Movie, 0, batchSize)
		for result.Next() {
			var movie Movie
			if err = result.Scan(&movie.MovieId, &movie.Title, &movie.Genres); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			movies = append(movies, movie)
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

func (d *SQLDatabase) GetRatingStream(ctx context.Context, batchSize int) (chan []Rating, chan error) {
	ratingChan := make(chan []Rating, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(ratingChan)
		defer close(errChan)
		// send query
		result, err := d.gormDB.WithContext(ctx).Table(d.RatingsTable()).
			Select("user_id, movie_id, rating").Order("user_id, movie_id").Rows()
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		defer result.Close()
		// fetch result
		ratings := make([]Rating, 0, batchSize)
		for result.Next() {
			var rating dataset.Rating
			if err = result.Scan(&rating.UserId, &rating.MovieId, &rating.Value); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			ratings = append(ratings, rating)
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
