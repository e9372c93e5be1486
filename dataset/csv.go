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
	"encoding/csv"
	"io"
	"strings"

	"github.com/gorse-io/usercf/common/util"
	"github.com/juju/errors"
)

// ReadMovies parses MovieLens movies.csv (movieId,title,genres). The header line is
// skipped if present.
func ReadMovies(r io.Reader, handler func(Movie) error) error {
	return readCSV(r, "movieid", 2, func(record []string) error {
		movieId, err := util.ParseInt[MovieId](record[0])
		if err != nil {
			return errors.Trace(err)
		}
		movie := Movie{MovieId: movieId, Title: strings.TrimSpace(record[1])}
		if len(record) > 2 {
			movie.Genres = strings.TrimSpace(record[2])
		}
		return handler(movie)
	})
}

// ReadRatings parses MovieLens ratings.csv (userId,movieId,rating[,timestamp]). The
// header line is skipped if present.
func ReadRatings(r io.Reader, handler func(Rating) error) error {
	return readCSV(r, "userid", 3, func(record []string) error {
		userId, err := util.ParseInt[UserId](record[0])
		if err != nil {
			return errors.Trace(err)
		}
		movieId, err := util.ParseInt[MovieId](record[1])
		if err != nil {
			return errors.Trace(err)
		}
		value, err := util.ParseFloat[float64](record[2])
		if err != nil {
			return errors.Trace(err)
		}
		return handler(Rating{UserId: userId, MovieId: movieId, Value: value})
	})
}

func readCSV(r io.Reader, header string, minFields int, handler func([]string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	for first := true; ; first = false {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Trace(err)
		}
		if first && len(record) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff")), header) {
			continue
		}
		line, _ := reader.FieldPos(0)
		if len(record) < minFields {
			return errors.NotValidf("line %d: expected %d fields, got %d", line, minFields, len(record))
		}
		if err = handler(record); err != nil {
			return errors.Annotatef(err, "line %d", line)
		}
	}
}
