// Copyright 2025 Tom Barlow
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

package worker

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// workerRequests tracks HTTP requests served by path and status code
	workerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardend_http_requests_total",
			Help: "Total HTTP requests by path and status code",
		},
		[]string{"path", "status"},
	)

	// workerReady reports whether startup has completed
	workerReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardend_ready",
			Help: "Whether the worker finished starting (1 ready, 0 starting)",
		},
	)

	// workerStartTime records when the worker process came up
	workerStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardend_start_time_seconds",
			Help: "Unix time the worker started",
		},
	)
)

// recordRequest increments the request counter
func recordRequest(path string, status int) {
	workerRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
}

// setReady updates the readiness gauge
func setReady(ready bool) {
	if ready {
		workerReady.Set(1)
		return
	}
	workerReady.Set(0)
}

// setStartTime records the start timestamp
func setStartTime(t time.Time) {
	workerStartTime.Set(float64(t.Unix()))
}
