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
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/gorse-io/usercf/config"
	"github.com/gorse-io/usercf/engine"
	"github.com/gorse-io/usercf/recommend"
	"github.com/gorse-io/usercf/storage"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/suite"
)

const apiKey = "test_api_key"

type ServerTestSuite struct {
	suite.Suite
	*RestServer
	handler http.Handler
}

func (suite *ServerTestSuite) SetupSuite() {
	dir := suite.T().TempDir()
	suite.NoError(os.WriteFile(filepath.Join(dir, "movies.csv"), []byte(
		"movieId,title,genres\n"+
			"1,Movie 1,Drama\n"+
			"2,Movie 2,Comedy|Romance\n"+
			"3,Movie 3,(no genres listed)\n"), 0644))
	suite.NoError(os.WriteFile(filepath.Join(dir, "ratings.csv"), []byte(
		"userId,movieId,rating\n"+
			"1,1,4\n"+
			"1,2,4\n"+
			"2,1,2\n"+
			"2,2,2\n"+
			"2,3,3.5\n"+
			"3,3,1\n"), 0644))
	cfg := config.GetDefaultConfig()
	cfg.Database.DataStore = storage.CSVPrefix + dir
	cfg.Server.APIKey = apiKey
	e, err := engine.Open(cfg)
	suite.Require().NoError(err)
	suite.RestServer = NewRestServer(cfg, e)
	suite.handler = suite.Handler()
}

func (suite *ServerTestSuite) TearDownSuite() {
	suite.NoError(suite.Engine.Close())
}

func (suite *ServerTestSuite) marshal(v any) string {
	s, err := json.Marshal(v)
	suite.NoError(err)
	return string(s)
}

func (suite *ServerTestSuite) fit() {
	suite.NoError(suite.Engine.Fit(context.Background()))
}

func (suite *ServerTestSuite) TestAuth() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/1").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/1").
		Header("X-API-Key", "wrong").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		End()
}

func (suite *ServerTestSuite) TestRecommend() {
	t := suite.T()
	suite.fit()
	// mean(1) + (3.5 - mean(2))
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/1").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal([]recommend.Recommendation{{MovieId: 3, Title: "Movie 3", PredictedRating: 5}})).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/1").
		Header("X-API-Key", apiKey).
		Query("n", "0").
		Expect(t).
		Status(http.StatusOK).
		Body("[]").
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/42").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body("[]").
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/abc").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/1").
		Header("X-API-Key", apiKey).
		Query("n", "abc").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestSimilarity() {
	t := suite.T()
	suite.fit()
	apitest.New().
		Handler(suite.handler).
		Get("/api/similarity/1/2").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(Similarity{Similarity: 1})).
		End()
	// no co-rated movie
	apitest.New().
		Handler(suite.handler).
		Get("/api/similarity/1/3").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusNotFound).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/similarity/1/x").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestMovie() {
	t := suite.T()
	suite.fit()
	apitest.New().
		Handler(suite.handler).
		Get("/api/movie/2").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(Movie{MovieId: 2, Title: "Movie 2", Genres: []string{"Comedy", "Romance"}})).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/movie/3").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"movie_id":3,"title":"Movie 3","genres":null}`).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/movie/99").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func (suite *ServerTestSuite) TestEvaluate() {
	t := suite.T()
	suite.fit()
	score, err := suite.Engine.Evaluate(context.Background(), false)
	suite.NoError(err)
	apitest.New().
		Handler(suite.handler).
		Get("/api/evaluate").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(score)).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/evaluate").
		Header("X-API-Key", apiKey).
		Query("held_out", "maybe").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestHealth() {
	t := suite.T()
	suite.fit()
	apitest.New().
		Handler(suite.handler).
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(Health{Ready: true})).
		End()
}

func (suite *ServerTestSuite) TestMetrics() {
	apitest.New().
		Handler(suite.handler).
		Get("/metrics").
		Expect(suite.T()).
		Status(http.StatusOK).
		End()
}

func (suite *ServerTestSuite) TestRequestID() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/health").
		Header("X-Request-ID", "test-request").
		Expect(t).
		Status(http.StatusOK).
		Header("X-Request-ID", "test-request").
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			if _, err := uuid.Parse(resp.Header.Get("X-Request-ID")); err != nil {
				return err
			}
			return nil
		}).
		End()
}

func (suite *ServerTestSuite) TestAPIDocs() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get(apiDocsPath).
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var docs struct {
				Paths map[string]any `json:"paths"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
				return err
			}
			suite.Contains(docs.Paths, "/api/recommend/{user-id}")
			suite.Contains(docs.Paths, "/api/health")
			return nil
		}).
		End()
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestNotReady(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Database.DataStore = storage.CSVPrefix + t.TempDir()
	e, err := engine.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	s := NewRestServer(cfg, e)
	apitest.New().
		Handler(s.Handler()).
		Get("/api/recommend/1").
		Expect(t).
		Status(http.StatusServiceUnavailable).
		End()
	apitest.New().
		Handler(s.Handler()).
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"ready":false}`).
		End()
}
