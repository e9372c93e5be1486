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
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelPhase = "phase"
	LabelMode  = "mode"

	PhaseLoadDataset = "load_dataset"
	PhaseSimilarity  = "similarity"
	PhaseEvaluate    = "evaluate"

	ModeInSample = "in_sample"
	ModeHeldOut  = "held_out"
)

var (
	PhaseSecondsVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "usercf",
		Subsystem: "engine",
		Name:      "phase_seconds",
	}, []string{LabelPhase})
	UsersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "usercf",
		Subsystem: "engine",
		Name:      "users_total",
	})
	MoviesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "usercf",
		Subsystem: "engine",
		Name:      "movies_total",
	})
	RatingsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "usercf",
		Subsystem: "engine",
		Name:      "ratings_total",
	})
	SkippedRatingsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "usercf",
		Subsystem: "engine",
		Name:      "skipped_ratings_total",
	})
	SimilarityPairsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "usercf",
		Subsystem: "engine",
		Name:      "similarity_pairs_total",
	})
	RMSEVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "usercf",
		Subsystem: "engine",
		Name:      "rmse",
	}, []string{LabelMode})
)
