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
package cache

import (
	"context"

	"github.com/juju/errors"
)

var ErrNoDatabase = errors.NotAssignedf("cache store")

// NoDatabase is used when no cache store is configured.
type NoDatabase struct{}

func (NoDatabase) Init() error {
	return ErrNoDatabase
}

func (NoDatabase) Ping() error {
	return ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Purge() error {
	return ErrNoDatabase
}

func (NoDatabase) SetRecommend(_ context.Context, _ int64, _ []Score) error {
	return ErrNoDatabase
}

func (NoDatabase) GetRecommend(_ context.Context, _ int64, _ int) ([]Score, error) {
	return nil, ErrNoDatabase
}
