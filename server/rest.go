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
	"fmt"
	"net/http"
	"strconv"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/gorse-io/usercf/base/log"
	"github.com/gorse-io/usercf/common/util"
	"github.com/gorse-io/usercf/config"
	"github.com/gorse-io/usercf/dataset"
	"github.com/gorse-io/usercf/engine"
	"github.com/gorse-io/usercf/recommend"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RestServer implements a REST-ful API server.
type RestServer struct {
	Config     *config.Config
	Engine     *engine.Engine
	WebService *restful.WebService
	HttpServer *http.Server
}

type Movie struct {
	MovieId dataset.MovieId `json:"movie_id"`
	Title   string          `json:"title"`
	Genres  []string        `json:"genres"`
}

type Similarity struct {
	Similarity float64 `json:"similarity"`
}

type Health struct {
	Ready bool `json:"ready"`
}

func NewRestServer(cfg *config.Config, e *engine.Engine) *RestServer {
	s := &RestServer{Config: cfg, Engine: e, WebService: new(restful.WebService)}
	s.CreateWebService()
	return s
}

const apiDocsPath = "/apidocs.json"

// Handler returns the handler of REST APIs, API docs and metrics.
func (s *RestServer) Handler() http.Handler {
	container := restful.NewContainer()
	container.Add(s.WebService)
	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: []*restful.WebService{s.WebService},
		APIPath:     apiDocsPath,
	}))
	container.Handle("/metrics", promhttp.Handler())
	return container
}

// StartHttpServer starts the REST-ful API server.
func (s *RestServer) StartHttpServer() error {
	s.HttpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port),
		Handler: s.Handler(),
	}
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s:%d", s.Config.Server.Host, s.Config.Server.Port)))
	if err := s.HttpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Trace(err)
	}
	return nil
}

func (s *RestServer) Shutdown(ctx context.Context) error {
	if s.HttpServer == nil {
		return nil
	}
	return errors.Trace(s.HttpServer.Shutdown(ctx))
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	requestId := req.HeaderParameter("X-Request-ID")
	if requestId == "" {
		requestId = uuid.New().String()
	}
	resp.Header().Set("X-Request-ID", requestId)
	chain.ProcessFilter(req, resp)
	if req.Request.URL.Path != "/api/health" {
		log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
			zap.Int("status_code", resp.StatusCode()))
	}
}

func (s *RestServer) AuthFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	if s.Config.Server.APIKey == "" || req.Request.URL.Path == "/api/health" {
		chain.ProcessFilter(req, resp)
		return
	}
	apikey := req.HeaderParameter("X-API-Key")
	if apikey == s.Config.Server.APIKey {
		chain.ProcessFilter(req, resp)
		return
	}
	log.ResponseLogger(resp).Error("unauthorized", zap.String("X-API-Key", apikey))
	if err := resp.WriteError(http.StatusUnauthorized, fmt.Errorf("unauthorized")); err != nil {
		log.ResponseLogger(resp).Error("failed to write error", zap.Error(err))
	}
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(LogFilter)
	ws.Filter(s.AuthFilter)

	ws.Route(ws.GET("/recommend/{user-id}").To(s.getRecommend).
		Doc("Get recommended movies for a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommend"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes([]recommend.Recommendation{}))
	ws.Route(ws.GET("/similarity/{user-id}/{other-id}").To(s.getSimilarity).
		Doc("Get the similarity between two users.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"similarity"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.PathParameter("other-id", "identifier of the other user").DataType("integer")).
		Writes(Similarity{}))
	ws.Route(ws.GET("/movie/{movie-id}").To(s.getMovie).
		Doc("Get a movie.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"movie"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("movie-id", "identifier of the movie").DataType("integer")).
		Writes(Movie{}))
	ws.Route(ws.GET("/evaluate").To(s.getEvaluate).
		Doc("Evaluate the root-mean-square error of predictions.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"evaluate"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.QueryParameter("held_out", "exclude each rating from its own prediction").DataType("boolean")).
		Writes(recommend.Score{}))
	ws.Route(ws.GET("/health").To(s.getHealth).
		Doc("Check whether the recommender is ready.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(Health{}))
}

// ParseInt parses integers from the query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.Atoi(valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

// ParseBool parses booleans from the query parameter.
func ParseBool(request *restful.Request, name string, fallback bool) (value bool, err error) {
	valueString := request.QueryParameter(name)
	if valueString == "" {
		return fallback, nil
	}
	return strconv.ParseBool(valueString)
}

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	userId, err := util.ParseInt[dataset.UserId](request.PathParameter("user-id"))
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.Recommend.TopN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	recommendations, err := s.Engine.Recommend(request.Request.Context(), userId, n)
	if err != nil {
		s.writeEngineError(response, err)
		return
	}
	Ok(response, recommendations)
}

func (s *RestServer) getSimilarity(request *restful.Request, response *restful.Response) {
	userId, err := util.ParseInt[dataset.UserId](request.PathParameter("user-id"))
	if err != nil {
		BadRequest(response, err)
		return
	}
	otherId, err := util.ParseInt[dataset.UserId](request.PathParameter("other-id"))
	if err != nil {
		BadRequest(response, err)
		return
	}
	sim, ok, err := s.Engine.Similarity(userId, otherId)
	if err != nil {
		s.writeEngineError(response, err)
		return
	}
	if !ok {
		PageNotFound(response, errors.NotFoundf("similarity between user %d and user %d", userId, otherId))
		return
	}
	Ok(response, Similarity{Similarity: sim})
}

func (s *RestServer) getMovie(request *restful.Request, response *restful.Response) {
	movieId, err := util.ParseInt[dataset.MovieId](request.PathParameter("movie-id"))
	if err != nil {
		BadRequest(response, err)
		return
	}
	movie, err := s.Engine.Movie(movieId)
	if err != nil {
		s.writeEngineError(response, err)
		return
	}
	Ok(response, Movie{MovieId: movie.MovieId, Title: movie.Title, Genres: movie.GenreList()})
}

func (s *RestServer) getEvaluate(request *restful.Request, response *restful.Response) {
	heldOut, err := ParseBool(request, "held_out", s.Config.Recommend.HeldOut)
	if err != nil {
		BadRequest(response, err)
		return
	}
	score, err := s.Engine.Evaluate(request.Request.Context(), heldOut)
	if err != nil {
		s.writeEngineError(response, err)
		return
	}
	Ok(response, score)
}

func (s *RestServer) getHealth(_ *restful.Request, response *restful.Response) {
	Ok(response, Health{Ready: s.Engine.Ready()})
}

func (s *RestServer) writeEngineError(response *restful.Response, err error) {
	switch {
	case errors.Is(err, errors.NotFound):
		PageNotFound(response, err)
	case errors.Is(err, errors.NotAssigned):
		ServiceUnavailable(response, err)
	default:
		InternalServerError(response, err)
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

func ServiceUnavailable(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err = response.WriteError(http.StatusServiceUnavailable, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content any) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}
