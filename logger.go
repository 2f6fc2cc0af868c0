// Copyright The Statline Authors
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

package statline // import "github.com/statline/go-statline"

import (
	"log"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

var (
	loggerMu sync.RWMutex
	logger   = stdr.New(log.New(os.Stderr, "", log.LstdFlags))
)

// SetLogger replaces the package-wide default logger. Components
// accept their own logger options; this is the fallback they start
// from. Wire zap through github.com/go-logr/zapr:
//
//	statline.SetLogger(zapr.NewLogger(zapLogger))
func SetLogger(l logr.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// Logger returns the package-wide default logger.
func Logger() logr.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}
