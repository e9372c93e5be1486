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
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gorse-io/usercf/common/util"
	"github.com/gorse-io/usercf/dataset"
	"github.com/gorse-io/usercf/recommend"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend movies for a user.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		defer e.Close()
		userId, _ := cmd.Flags().GetInt64("user")
		n, _ := cmd.Flags().GetInt("n")
		if !cmd.Flags().Changed("n") {
			n = e.Config.Recommend.TopN
		}
		if err = e.Fit(cmd.Context()); err != nil {
			return errors.Trace(err)
		}
		recommendations, err := e.Recommend(cmd.Context(), dataset.UserId(userId), n)
		if err != nil {
			return errors.Trace(err)
		}
		return printRecommendations(os.Stdout, recommendations)
	},
}

func printRecommendations(w io.Writer, recommendations []recommend.Recommendation) error {
	table := tablewriter.NewWriter(w)
	table.Header("Movie ID", "Title", "Predicted Rating")
	for _, r := range recommendations {
		if err := table.Append(util.FormatInt(r.MovieId), r.Title, strconv.FormatFloat(r.PredictedRating, 'f', 4, 64)); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the root-mean-square error of predicted ratings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		defer e.Close()
		heldOut, _ := cmd.Flags().GetBool("held-out")
		if !cmd.Flags().Changed("held-out") {
			heldOut = e.Config.Recommend.HeldOut
		}
		if err = e.Fit(cmd.Context()); err != nil {
			return errors.Trace(err)
		}
		score, err := e.Evaluate(cmd.Context(), heldOut)
		if err != nil {
			return errors.Trace(err)
		}
		printScore(os.Stdout, score)
		return nil
	},
}

func printScore(w io.Writer, score recommend.Score) {
	if !score.Defined() {
		_, _ = fmt.Fprintln(w, "RMSE: undefined (no rating scored)")
		return
	}
	_, _ = fmt.Fprintf(w, "RMSE: %.4f (%d ratings scored)\n", score.RMSE, score.Count)
}

func init() {
	recommendCommand.Flags().Int64("user", 0, "identifier of the user")
	recommendCommand.Flags().Int("n", 10, "number of recommended movies")
	_ = recommendCommand.MarkFlagRequired("user")
	evaluateCommand.Flags().Bool("held-out", false, "exclude each rating from its own prediction")
	rootCommand.AddCommand(recommendCommand, evaluateCommand)
}
