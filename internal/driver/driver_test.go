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

package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangodb/mango/bson"
	"github.com/mangodb/mango/internal/util/must"
	"github.com/mangodb/mango/internal/util/testutil"
	"github.com/mangodb/mango/internal/wire"
)

func TestConnectInvalidURI(t *testing.T) {
	ctx := testutil.Ctx(t)
	l := testutil.SLogger(t)

	for _, uri := range []string{
		"postgres://127.0.0.1:5432/",
		"mongodb:127.0.0.1:27017",
		"mongodb://127.0.0.1:27017/?readPreference=primary",
	} {
		_, err := Connect(ctx, uri, l, nil)
		assert.Error(t, err, uri)
	}
}

func TestDriver(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in -short mode")
	}

	ctx := testutil.Ctx(t)

	c, err := Connect(ctx, "mongodb://127.0.0.1:27017/", testutil.SLogger(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })

	ping := must.NotFail(must.NotFail(bson.NewDocument("ping", int32(1), "$db", "admin")).Encode())

	body, err := wire.NewOpMsg(ping)
	require.NoError(t, err)

	_, resBody, err := c.Request(ctx, nil, body)
	require.NoError(t, err)

	res, err := resBody.(*wire.OpMsg).Document()
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Get("ok"))
}
