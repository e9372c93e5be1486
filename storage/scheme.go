// Copyright 2022 gorse Project Authors
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

package storage

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gorse-io/usercf/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	MySQLPrefix      = "mysql://"
	MongoPrefix      = "mongodb://"
	MongoSrvPrefix   = "mongodb+srv://"
	PostgresPrefix   = "postgres://"
	PostgreSQLPrefix = "postgresql://"
	SQLitePrefix     = "sqlite://"
	Neo4jPrefix      = "neo4j://"
	Neo4jSPrefix     = "neo4j+s://"
	BoltPrefix       = "bolt://"
	CSVPrefix        = "csv://"
	RedisPrefix      = "redis://"
	RedissPrefix     = "rediss://"
)

var (
	DataStorePrefixes = []string{
		MySQLPrefix, MongoPrefix, MongoSrvPrefix, PostgresPrefix, PostgreSQLPrefix,
		SQLitePrefix, Neo4jPrefix, Neo4jSPrefix, BoltPrefix, CSVPrefix,
	}
	CacheStorePrefixes = []string{RedisPrefix, RedissPrefix}
)

func AppendURLParams(rawURL string, params []lo.Tuple2[string, string]) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Trace(err)
	}
	q := parsed.Query()
	for _, tuple := range params {
		q.Add(tuple.A, tuple.B)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func AppendMySQLParams(dsn string, params map[string]string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Trace(err)
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	for key, value := range params {
		if _, exist := cfg.Params[key]; !exist {
			cfg.Params[key] = value
		}
	}
	return cfg.FormatDSN(), nil
}

type TablePrefix string

func (tp TablePrefix) MoviesTable() string {
	return string(tp) + "movies"
}

func (tp TablePrefix) RatingsTable() string {
	return string(tp) + "ratings"
}

// UsersTable is only used by stores which keep users as separate records (graph nodes).
func (tp TablePrefix) UsersTable() string {
	return string(tp) + "users"
}

func (tp TablePrefix) Key(key string) string {
	return string(tp) + key
}

// Label converts the prefix to a graph label, e.g. "ml_" + "Movie" -> "Ml_Movie".
func (tp TablePrefix) Label(label string) string {
	if tp == "" {
		return label
	}
	return strings.ToUpper(string(tp)[:1]) + string(tp)[1:] + label
}

func NewGORMConfig(tablePrefix string) *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Logger()), logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		CreateBatchSize:        1000,
		SkipDefaultTransaction: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   tablePrefix,
			SingularTable: true,
			NameReplacer: strings.NewReplacer(
				"SQLMovie", "Movies",
				"SQLRating", "Ratings",
			),
		},
	}
}
