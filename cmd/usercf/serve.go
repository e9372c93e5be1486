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
	"os"
	"os/signal"
	"time"

	"github.com/gorse-io/usercf/base/log"
	"github.com/gorse-io/usercf/common/util"
	"github.com/gorse-io/usercf/server"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Fit the recommender and start the REST server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		defer e.Close()
		s := server.NewRestServer(e.Config, e)
		// fit in background, the health API reports readiness
		go func() {
			defer util.CheckPanic()
			if err := e.Fit(context.Background()); err != nil {
				log.Logger().Error("failed to fit recommender", zap.Error(err))
			}
		}()
		// stop server
		done := make(chan struct{})
		go func() {
			sigint := make(chan os.Signal, 1)
			signal.Notify(sigint, os.Interrupt)
			<-sigint
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				log.Logger().Error("failed to shutdown http server", zap.Error(err))
			}
			close(done)
		}()
		if err = s.StartHttpServer(); err != nil {
			return errors.Trace(err)
		}
		<-done
		log.Logger().Info("stop usercf server successfully")
		return nil
	},
}

func init() {
	rootCommand.AddCommand(serveCommand)
}
