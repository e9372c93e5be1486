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
package main

import (
	"context"
	"io"
	"os"

	"github.com/gorse-io/usercf/base/log"
	"github.com/gorse-io/usercf/dataset"
	"github.com/gorse-io/usercf/storage/data"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCommand = &cobra.Command{
	Use:   "import",
	Short: "Import MovieLens movies.csv and ratings.csv into the data store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		moviesPath, _ := cmd.Flags().GetString("movies")
		ratingsPath, _ := cmd.Flags().GetString("ratings")
		purge, _ := cmd.Flags().GetBool("purge")

		database, err := data.Open(cfg.Database.DataStore, cfg.Database.TablePrefix)
		if err != nil {
			return errors.Annotatef(err, "failed to connect data store %s", log.RedactDBURL(cfg.Database.DataStore))
		}
		defer database.Close()
		if err = database.Init(); err != nil {
			return errors.Annotate(err, "failed to init data store")
		}
		if purge {
			if err = database.Purge(); err != nil {
				return errors.Annotate(err, "failed to purge data store")
			}
			log.Logger().Info("purge data store")
		}

		ctx := cmd.Context()
		if moviesPath != "" {
			n, err := importFile(moviesPath, "import movies", func(r io.Reader) (int, error) {
				return importMovies(ctx, database, r, cfg.Dataset.BatchSize)
			})
			if err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("import movies complete", zap.String("path", moviesPath), zap.Int("n_movies", n))
		}
		if ratingsPath != "" {
			n, err := importFile(ratingsPath, "import ratings", func(r io.Reader) (int, error) {
				return importRatings(ctx, database, r, cfg.Dataset.BatchSize)
			})
			if err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("import ratings complete", zap.String("path", ratingsPath), zap.Int("n_ratings", n))
		}
		return nil
	},
}

// importFile opens a file and reports read bytes by a progress bar.
func importFile(path, description string, fn func(r io.Reader) (int, error)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return 0, errors.Trace(err)
	}
	bar := progressbar.DefaultBytes(stat.Size(), description)
	reader := progressbar.NewReader(f, bar)
	n, err := fn(&reader)
	if err != nil {
		return n, errors.Annotatef(err, "failed to import %s", path)
	}
	_ = bar.Finish()
	return n, nil
}

func importMovies(ctx context.Context, database data.Database, r io.Reader, batchSize int) (int, error) {
	count := 0
	batch := make([]data.Movie, 0, batchSize)
	flush := func() error {
		if err := database.BatchInsertMovies(ctx, batch); err != nil {
			return errors.Trace(err)
		}
		count += len(batch)
		batch = batch[:0]
		return nil
	}
	err := dataset.ReadMovies(r, func(movie dataset.Movie) error {
		batch = append(batch, movie)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return count, errors.Trace(err)
	}
	if err = flush(); err != nil {
		return count, errors.Trace(err)
	}
	return count, nil
}

func importRatings(ctx context.Context, database data.Database, r io.Reader, batchSize int) (int, error) {
	count := 0
	batch := make([]data.Rating, 0, batchSize)
	flush := func() error {
		if err := database.BatchInsertRatings(ctx, batch); err != nil {
			return errors.Trace(err)
		}
		count += len(batch)
		batch = batch[:0]
		return nil
	}
	err := dataset.ReadRatings(r, func(rating dataset.Rating) error {
		batch = append(batch, rating)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return count, errors.Trace(err)
	}
	if err = flush(); err != nil {
		return count, errors.Trace(err)
	}
	return count, nil
}

func init() {
	importCommand.Flags().String("movies", "", "path of movies.csv")
	importCommand.Flags().String("ratings", "", "path of ratings.csv")
	importCommand.Flags().Bool("purge", false, "delete all movies and ratings before import")
	rootCommand.AddCommand(importCommand)
}
