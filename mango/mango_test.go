// Copyright 2024 Mango Authors
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

package mango

import (
	"testing"

	"github.com/AlekSi/pointer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangodb/mango/internal/connmetrics"
	"github.com/mangodb/mango/internal/util/testutil"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	l := testutil.SLogger(t)
	m := connmetrics.NewConnMetrics()

	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()

		client := newClient(&fakeConn{}, l, m, new(Config))
		assert.Equal(t, defaultBatchSize, client.batchSize)
		assert.False(t, client.strictWrites)
	})

	t.Run("BatchSizeOverride", func(t *testing.T) {
		t.Parallel()

		client := newClient(&fakeConn{}, l, m, &Config{BatchSize: pointer.ToInt32(10)})
		assert.Equal(t, int32(10), client.batchSize)
	})

	t.Run("Close", func(t *testing.T) {
		t.Parallel()

		conn := &fakeConn{}
		client := newClient(conn, l, m, new(Config))
		require.NoError(t, client.Close())
		assert.True(t, conn.closed)
	})

	t.Run("Metrics", func(t *testing.T) {
		t.Parallel()

		client := newClient(&fakeConn{}, l, m, new(Config))

		reg := prometheus.NewRegistry()
		require.NoError(t, reg.Register(client.MetricsCollector()))
	})
}
