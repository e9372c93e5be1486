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
	"math"
	"slices"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

type UserId int64

type MovieId int64

type Movie struct {
	MovieId MovieId
	Title   string
	Genres  string
}

// GenreList splits MovieLens genres such as "Adventure|Comedy".
func (m Movie) GenreList() []string {
	if m.Genres == "" || m.Genres == "(no genres listed)" {
		return nil
	}
	return strings.Split(m.Genres, "|")
}

type Rating struct {
	UserId  UserId
	MovieId MovieId
	Value   float64
}

// Entry is a rating in an index. Index is the dense index of the movie in a user
// row, or the dense index of the user in a movie column.
type Entry struct {
	Index int32
	Value float64
}

type ratingKey struct {
	userId  UserId
	movieId MovieId
}

type Builder struct {
	movies  map[MovieId]Movie
	ratings []Rating
	keys    mapset.Set[ratingKey]
}

func NewBuilder() *Builder {
	return &Builder{
		movies: make(map[MovieId]Movie),
		keys:   mapset.NewThreadUnsafeSet[ratingKey](),
	}
}

func (b *Builder) AddMovie(movie Movie) error {
	if _, exist := b.movies[movie.MovieId]; exist {
		return errors.AlreadyExistsf("movie %d", movie.MovieId)
	}
	b.movies[movie.MovieId] = movie
	return nil
}

func (b *Builder) AddRating(rating Rating) error {
	if math.IsNaN(rating.Value) || math.IsInf(rating.Value, 0) {
		return errors.NotValidf("rating %v of user %d on movie %d", rating.Value, rating.UserId, rating.MovieId)
	}
	if _, exist := b.movies[rating.MovieId]; !exist {
		return errors.NotFoundf("movie %d", rating.MovieId)
	}
	if !b.keys.Add(ratingKey{userId: rating.UserId, movieId: rating.MovieId}) {
		return errors.AlreadyExistsf("rating of user %d on movie %d", rating.UserId, rating.MovieId)
	}
	b.ratings = append(b.ratings, rating)
	return nil
}

// Build creates an immutable dataset. Users and movies are indexed in ascending
// order of their ids. The builder must not be used afterwards.
func (b *Builder) Build() *Dataset {
	d := &Dataset{
		movieDict:  NewFreqDict[MovieId](),
		userDict:   NewFreqDict[UserId](),
		numRatings: len(b.ratings),
	}
	movieIds := lo.Keys(b.movies)
	slices.Sort(movieIds)
	d.movies = make([]Movie, len(movieIds))
	for i, movieId := range movieIds {
		d.movieDict.NotCount(movieId)
		d.movies[i] = b.movies[movieId]
	}
	userIds := lo.Uniq(lo.Map(b.ratings, func(r Rating, _ int) UserId { return r.UserId }))
	slices.Sort(userIds)
	for _, userId := range userIds {
		d.userDict.NotCount(userId)
	}

	d.userRatings = make([][]Entry, d.userDict.Count())
	d.movieRatings = make([][]Entry, d.movieDict.Count())
	for _, rating := range b.ratings {
		userIndex := d.userDict.Id(rating.UserId)
		movieIndex := d.movieDict.Id(rating.MovieId)
		d.userRatings[userIndex] = append(d.userRatings[userIndex], Entry{Index: int32(movieIndex), Value: rating.Value})
		d.movieRatings[movieIndex] = append(d.movieRatings[movieIndex], Entry{Index: int32(userIndex), Value: rating.Value})
	}
	d.means = make([]float64, len(d.userRatings))
	for userIndex, row := range d.userRatings {
		sortEntries(row)
		sum := 0.0
		for _, e := range row {
			sum += e.Value
		}
		d.means[userIndex] = sum / float64(len(row))
	}
	for _, column := range d.movieRatings {
		sortEntries(column)
	}
	b.ratings = nil
	return d
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Index < entries[j].Index
	})
}

// Dataset holds the movie catalog and the rating indices. It is read-only and safe
// for concurrent readers.
type Dataset struct {
	movies       []Movie
	movieDict    *FreqDict[MovieId]
	userDict     *FreqDict[UserId]
	userRatings  [][]Entry
	movieRatings [][]Entry
	means        []float64
	numRatings   int
}

func (d *Dataset) CountUsers() int {
	return d.userDict.Count()
}

func (d *Dataset) CountMovies() int {
	return len(d.movies)
}

func (d *Dataset) CountRatings() int {
	return d.numRatings
}

func (d *Dataset) UserIndex(userId UserId) (int, bool) {
	return d.userDict.Index(userId)
}

func (d *Dataset) UserId(userIndex int) UserId {
	userId, _ := d.userDict.Key(userIndex)
	return userId
}

func (d *Dataset) UserIds() []UserId {
	return d.userDict.Keys()
}

func (d *Dataset) MovieIndex(movieId MovieId) (int, bool) {
	return d.movieDict.Index(movieId)
}

func (d *Dataset) MovieId(movieIndex int) MovieId {
	return d.movies[movieIndex].MovieId
}

func (d *Dataset) Movies() []Movie {
	return d.movies
}

func (d *Dataset) Movie(movieId MovieId) (Movie, bool) {
	movieIndex, ok := d.movieDict.Index(movieId)
	if !ok {
		return Movie{}, false
	}
	return d.movies[movieIndex], true
}

func (d *Dataset) Title(movieId MovieId) (string, bool) {
	movie, ok := d.Movie(movieId)
	return movie.Title, ok
}

// UserRatings returns ratings of a user ordered by movie index.
func (d *Dataset) UserRatings(userIndex int) []Entry {
	return d.userRatings[userIndex]
}

// MovieRatings returns ratings on a movie ordered by user index.
func (d *Dataset) MovieRatings(movieIndex int) []Entry {
	return d.movieRatings[movieIndex]
}

// Mean returns the mean rating of a user.
func (d *Dataset) Mean(userIndex int) float64 {
	return d.means[userIndex]
}

// CountUserRatings returns the number of ratings given by a user.
func (d *Dataset) CountUserRatings(userIndex int) int {
	return d.userDict.Freq(userIndex)
}

// CountMovieRatings returns the number of ratings on a movie.
func (d *Dataset) CountMovieRatings(movieIndex int) int {
	return d.movieDict.Freq(movieIndex)
}

// Rating returns the rating of a user on a movie.
func (d *Dataset) Rating(userId UserId, movieId MovieId) (float64, bool) {
	userIndex, ok := d.userDict.Index(userId)
	if !ok {
		return 0, false
	}
	movieIndex, ok := d.movieDict.Index(movieId)
	if !ok {
		return 0, false
	}
	row := d.userRatings[userIndex]
	i := sort.Search(len(row), func(i int) bool {
		return row[i].Index >= int32(movieIndex)
	})
	if i < len(row) && row[i].Index == int32(movieIndex) {
		return row[i].Value, true
	}
	return 0, false
}
