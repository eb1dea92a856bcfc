// Copyright 2025 PlantPulse Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sentry

import (
	"fmt"

	sentrygo "github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type IssueType string

const (
	IssueTypeWarning IssueType = "warning"
	IssueTypeError   IssueType = "error"
	IssueTypeFatal   IssueType = "fatal"
)

// ReportIssue logs err and forwards it to sentry when reporting is enabled.
func ReportIssue(err error, issueType IssueType, log *zap.SugaredLogger) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	switch issueType {
	case IssueTypeFatal:
		log.Errorf("FATAL: %s", err.Error())
	case IssueTypeError:
		log.Errorf("%s", err.Error())
	case IssueTypeWarning:
		log.Warnf("%s", err.Error())
	}

	if !enabled.Load() {
		return
	}

	sentrygo.WithScope(func(scope *sentrygo.Scope) {
		switch issueType {
		case IssueTypeFatal:
			scope.SetLevel(sentrygo.LevelFatal)
		case IssueTypeError:
			scope.SetLevel(sentrygo.LevelError)
		case IssueTypeWarning:
			scope.SetLevel(sentrygo.LevelWarning)
		}
		sentrygo.CaptureException(err)
	})
}

func ReportIssuef(issueType IssueType, log *zap.SugaredLogger, template string, args ...interface{}) {
	ReportIssue(fmt.Errorf(template, args...), issueType, log)
}
