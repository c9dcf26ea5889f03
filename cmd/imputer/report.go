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
	"fmt"
	"io"
	"strconv"

	"github.com/gorse-io/imputer/base/log"
	"github.com/gorse-io/imputer/imputer"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

// tableReporter renders missing value counts as a table.
type tableReporter struct {
	w io.Writer
}

func (r tableReporter) Report(snapshot imputer.Snapshot) {
	if err := r.report(snapshot); err != nil {
		log.Logger().Error("failed to render report", zap.Error(err))
	}
}

func (r tableReporter) report(snapshot imputer.Snapshot) error {
	if _, err := fmt.Fprintf(r.w, "x_train missing value %s\n", snapshot.Stage); err != nil {
		return err
	}
	table := tablewriter.NewWriter(r.w)
	table.Header([]string{"column", "missing"})
	for _, c := range snapshot.Missing {
		if err := table.Append([]string{c.Column, strconv.Itoa(c.Missing)}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(r.w, "x_train shape %s (%d, %d)\n%s\n",
		snapshot.Stage, snapshot.Rows, snapshot.Cols, imputer.Rule)
	return err
}
