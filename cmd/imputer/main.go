// Copyright 2026 gorse Project Authors
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
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/gorse-io/imputer/base/log"
	"github.com/gorse-io/imputer/cmd/version"
	"github.com/gorse-io/imputer/config"
	"github.com/gorse-io/imputer/dataset"
	"github.com/gorse-io/imputer/imputer"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var imputeCommand = &cobra.Command{
	Use:   "imputer",
	Short: "Split a CSV table into train and test sets and impute missing values.",
	Run: func(cmd *cobra.Command, args []string) {
		// Show version
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}

		// setup logger
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debug)

		if err := run(cmd.Context(), cmd.PersistentFlags(), os.Stdout, os.Stderr); err != nil {
			log.Logger().Fatal("failed to impute", zap.Error(err))
		}
	},
}

func init() {
	addFlags(imputeCommand.PersistentFlags())
}

func addFlags(flagSet *pflag.FlagSet) {
	log.AddFlags(flagSet)
	flagSet.BoolP("version", "v", false, "imputer version")
	flagSet.Bool("debug", false, "use debug log mode")
	flagSet.StringP("config", "c", "", "configuration file path")
	flagSet.StringP("input", "i", "", "input CSV file path")
	flagSet.StringP("target", "t", "y", "target column name")
	flagSet.StringP("output-dir", "o", ".", "directory of output CSV files")
	flagSet.Float64("test-fraction", 0.25, "fraction of rows held out as the test set")
	flagSet.Int64("seed", 1, "seed of the row permutation")
	flagSet.StringSlice("numerical", nil, "columns imputed by regression")
	flagSet.StringSlice("categorical", nil, "columns imputed by mode")
}

// loadConfig reads the configuration file and applies flags set on the command line.
func loadConfig(flagSet *pflag.FlagSet) (*config.Config, error) {
	configPath, _ := flagSet.GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if flagSet.Changed("test-fraction") {
		cfg.Split.TestFraction, _ = flagSet.GetFloat64("test-fraction")
	}
	if flagSet.Changed("seed") {
		cfg.Split.RandomSeed, _ = flagSet.GetInt64("seed")
	}
	if flagSet.Changed("numerical") {
		cfg.Columns.Numerical, _ = flagSet.GetStringSlice("numerical")
	}
	if flagSet.Changed("categorical") {
		cfg.Columns.Categorical, _ = flagSet.GetStringSlice("categorical")
	}
	return cfg, nil
}

func run(ctx context.Context, flagSet *pflag.FlagSet, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(flagSet)
	if err != nil {
		return errors.Trace(err)
	}
	if configMap, err := cfg.ToMap(); err == nil {
		log.Logger().Debug("config", zap.Any("config", configMap))
	}

	input, _ := flagSet.GetString("input")
	if input == "" {
		return errors.NotValidf("empty input path")
	}
	df, err := dataset.ReadCSVFile(input)
	if err != nil {
		return errors.Annotatef(err, "failed to read %s", input)
	}

	bar := progressbar.NewOptions(cfg.Imputer.MaxIter,
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetDescription("Imputing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish())
	target, _ := flagSet.GetString("target")
	result, err := imputer.IterativeImpute(ctx, df, target, cfg,
		imputer.WithReporter(tableReporter{w: stdout}),
		imputer.WithCallback(func(int, float64) {
			_ = bar.Add(1)
		}))
	if err != nil {
		return errors.Trace(err)
	}
	_ = bar.Finish()

	outputDir, _ := flagSet.GetString("output-dir")
	if err = os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	trainX, testX, trainY, testY := result.Unpack()
	outputs := []struct {
		name  string
		table dataframe.DataFrame
	}{
		{"x_train.csv", trainX},
		{"x_test.csv", testX},
		{"y_train.csv", dataset.SeriesFrame(trainY)},
		{"y_test.csv", dataset.SeriesFrame(testY)},
	}
	for _, output := range outputs {
		path := filepath.Join(outputDir, output.name)
		if err = dataset.WriteCSVFile(path, output.table); err != nil {
			return errors.Annotatef(err, "failed to write %s", path)
		}
		log.Logger().Info("save output", zap.String("path", path),
			zap.Int("rows", output.table.Nrow()))
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := imputeCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
