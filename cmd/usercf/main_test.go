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
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/usercf/recommend"
	"github.com/gorse-io/usercf/storage/data"
	"github.com/stretchr/testify/assert"
)

func TestImport(t *testing.T) {
	database, err := data.Open("sqlite://"+filepath.Join(t.TempDir(), "usercf.db"), "")
	assert.NoError(t, err)
	defer database.Close()
	assert.NoError(t, database.Init())
	ctx := context.Background()

	n, err := importMovies(ctx, database, strings.NewReader(
		"movieId,title,genres\n"+
			"1,Toy Story (1995),Animation\n"+
			"2,Jumanji (1995),Adventure\n"+
			"3,Heat (1995),Action\n"), 2)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = importRatings(ctx, database, strings.NewReader(
		"userId,movieId,rating,timestamp\n"+
			"1,1,4.0,964982703\n"+
			"1,3,4.0,964981247\n"+
			"2,2,3.5,1445714835\n"), 2)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	count, err := database.CountRatings(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = importRatings(ctx, database, strings.NewReader("1,1,x\n"), 2)
	assert.Error(t, err)
}

func TestPrintRecommendations(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, printRecommendations(&buf, []recommend.Recommendation{
		{MovieId: 3, Title: "Heat (1995)", PredictedRating: 4.5},
	}))
	assert.Contains(t, buf.String(), "Heat (1995)")
	assert.Contains(t, buf.String(), "4.5000")
}

func TestPrintScore(t *testing.T) {
	var buf bytes.Buffer
	printScore(&buf, recommend.Score{RMSE: 0.5, Count: 4})
	assert.Equal(t, "RMSE: 0.5000 (4 ratings scored)\n", buf.String())
	buf.Reset()
	printScore(&buf, recommend.Score{RMSE: math.NaN()})
	assert.Contains(t, buf.String(), "undefined")
}
